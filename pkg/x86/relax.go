package x86

import "fmt"

// relaxState is a jump candidate's convergence state (spec §4.7 step 2):
// Candidate is still open, OneByte/FourByte are terminal. FourByte is
// monotonic — once a jump's best-case distance exceeds the short-jump
// range it can only get farther as other candidates around it settle, so
// a jump marked FourByte never reverts.
type relaxState uint8

const (
	candidate relaxState = iota
	oneByte
	fourByte
)

// EncodeRelaxed is spec §4.7's iterative relaxation mode: every jump
// starts as an open Candidate and is narrowed to OneByte or FourByte by
// repeatedly recomputing two cursors per event — relaxed (conservative:
// every still-open candidate assumed full-size) and optimal (optimistic:
// every still-open candidate assumed short-size) — until neither cursor
// moves between passes, then emits using each jump's final size.
func (b *Builder) EncodeRelaxed() ([]byte, error) {
	n := len(b.instrs)
	fixedSize := make([]int, n)
	for i, ins := range b.instrs {
		if _, isJump := b.jumpAt[i]; isJump {
			continue
		}
		fixedSize[i] = len(ins.Encode(nil))
	}

	labelIdx := make(map[Label]int, len(b.labelAt))
	for idx, l := range b.labelAt {
		labelIdx[l] = idx
	}

	state := make([]relaxState, n)
	for i := range state {
		if _, ok := b.jumpAt[i]; ok {
			state[i] = candidate
		}
	}

	for pass := 0; pass < n+4; pass++ {
		optimalPos, relaxedPos := cursorPositions(b, fixedSize, state)
		changed := false
		for i := 0; i < n; i++ {
			jr, ok := b.jumpAt[i]
			if !ok || state[i] != candidate {
				continue
			}
			targetIdx, ok := labelIdx[jr.label]
			if !ok {
				return nil, fmt.Errorf("x86: out-of-range label index %d", jr.label)
			}

			optDist := jumpDistance(optimalPos, i, targetIdx, jumpShortSize(jr.kind))
			if abs64(optDist) > 127 {
				state[i] = fourByte
				changed = true
				continue
			}
			relDist := jumpDistance(relaxedPos, i, targetIdx, jumpShortSize(jr.kind))
			if abs64(relDist) <= 127 {
				state[i] = oneByte
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	for i := range state {
		if _, ok := b.jumpAt[i]; ok && state[i] == candidate {
			state[i] = fourByte // safety net: never leave a jump unresolved
		}
	}

	return emitRelaxed(b, fixedSize, state)
}

// cursorPositions computes the byte offset at every instr boundary (index
// i is the offset at the start of instrs[i], index n is the offset just
// past the last instr) under the optimal (best-case) and relaxed
// (worst-case) size assumptions for still-open candidates.
func cursorPositions(b *Builder, fixedSize []int, state []relaxState) (optimal, relaxed []int) {
	n := len(b.instrs)
	optimal, relaxed = make([]int, n+1), make([]int, n+1)
	for i := 0; i < n; i++ {
		jr, isJump := b.jumpAt[i]
		optSz, relSz := fixedSize[i], fixedSize[i]
		if isJump {
			switch state[i] {
			case oneByte:
				optSz, relSz = jumpShortSize(jr.kind), jumpShortSize(jr.kind)
			case fourByte:
				optSz, relSz = jumpFullSize(jr.kind), jumpFullSize(jr.kind)
			default: // candidate: optimistic short, conservative full
				optSz, relSz = jumpShortSize(jr.kind), jumpFullSize(jr.kind)
			}
		}
		optimal[i+1] = optimal[i] + optSz
		relaxed[i+1] = relaxed[i] + relSz
	}
	return optimal, relaxed
}

// jumpDistance is the displacement a jump at jumpIdx, assumed to occupy
// size bytes, would encode against the instr boundary at targetIdx, using
// pos (either the optimal or relaxed cursor array). The same expression
// covers both forward and backward jumps: pos[targetIdx] already reflects
// cumulative size up to that boundary regardless of which side of jumpIdx
// it falls on.
func jumpDistance(pos []int, jumpIdx, targetIdx, size int) int64 {
	return int64(pos[targetIdx]) - int64(pos[jumpIdx]+size)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func emitRelaxed(b *Builder, fixedSize []int, state []relaxState) ([]byte, error) {
	n := len(b.instrs)
	labelOffset := make(map[Label]int)
	pos := 0
	finalSize := make([]int, n)
	for i := 0; i < n; i++ {
		if l, ok := b.labelAt[i]; ok {
			labelOffset[l] = pos
		}
		jr, isJump := b.jumpAt[i]
		sz := fixedSize[i]
		if isJump {
			if state[i] == oneByte {
				sz = jumpShortSize(jr.kind)
			} else {
				sz = jumpFullSize(jr.kind)
			}
		}
		finalSize[i] = sz
		pos += sz
	}
	if l, ok := b.labelAt[n]; ok {
		labelOffset[l] = pos
	}

	var out []byte
	for i, ins := range b.instrs {
		jr, isJump := b.jumpAt[i]
		if !isJump {
			out = ins.Encode(out)
			continue
		}
		target, ok := labelOffset[jr.label]
		if !ok {
			return out, fmt.Errorf("x86: out-of-range label index %d", jr.label)
		}
		if state[i] == oneByte {
			out = shortenJump(ins, jr.kind).Encode(out)
			out[len(out)-1] = byte(int8(int64(target) - int64(len(out))))
			continue
		}
		full := fullJump(ins, jr.kind)
		full.Imm32 = int32(int64(target) - int64(len(out)+finalSize[i]))
		out = full.Encode(out)
	}
	return out, nil
}
