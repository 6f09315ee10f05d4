package x86

import "fmt"

// Label names a position in a Builder's instruction sequence that a jump
// can target, bound before or after the jump that references it (spec
// §4.7).
type Label int

// jumpRef records that instruction instrs[idx] is a jump to label, so
// Encode/EncodeRelaxed can resolve its displacement once the label's
// position is known.
type jumpRef struct {
	label Label
	kind  relKind
	cc    string // only meaningful when kind == relJcc
}

// Builder accumulates Instr descriptors and label bindings (spec §4.7).
// Jumps are recorded separately from their placeholder Instr so later
// passes can rewrite opcode and displacement width without re-deriving
// which Instr is a jump from its encoded bytes.
type Builder struct {
	instrs   []Instr
	jumpAt   map[int]jumpRef // instr index -> jump descriptor
	labelAt  map[int]Label   // instr index -> label bound there
	nextLbl  Label
	finished bool // a trailing label (no following Instr) was bound
}

func NewBuilder() *Builder {
	return &Builder{jumpAt: make(map[int]jumpRef), labelAt: make(map[int]Label)}
}

// NewLabel allocates a fresh, unbound label.
func (b *Builder) NewLabel() Label {
	l := b.nextLbl
	b.nextLbl++
	return l
}

// Emit appends a non-jump Instr, returning its index.
func (b *Builder) Emit(ins Instr) int {
	b.instrs = append(b.instrs, ins)
	return len(b.instrs) - 1
}

// BindLabel marks l as pointing at the next Instr to be emitted.
func (b *Builder) BindLabel(l Label) {
	b.labelAt[len(b.instrs)] = l
}

// Jmp emits an unconditional jump to l, initially in 32-bit form.
func (b *Builder) Jmp(l Label) int {
	idx := b.Emit(jmpRel32(0))
	b.jumpAt[idx] = jumpRef{label: l, kind: relJmp}
	return idx
}

// Jcc emits a conditional jump (condition cc, e.g. "E", "NE", "L") to l,
// initially in 32-bit form.
func (b *Builder) Jcc(cc string, l Label) int {
	idx := b.Emit(jccRel32(cc, 0))
	b.jumpAt[idx] = jumpRef{label: l, kind: relJcc, cc: cc}
	return idx
}

// EncodeNoRIP concatenates every Instr's encoding in order, ignoring
// labels and jump targets entirely (spec §4.7's "Sequential" mode) — any
// jump is emitted with whatever displacement its placeholder Instr
// currently holds (zero, for jumps built via Jmp/Jcc).
func (b *Builder) EncodeNoRIP() []byte {
	var out []byte
	for _, ins := range b.instrs {
		out = ins.Encode(out)
	}
	return out
}

// jumpFullSize/jumpShortSize are each jump kind's byte length in 32-bit
// and 8-bit displacement form.
func jumpFullSize(k relKind) int {
	if k == relJmp {
		return 5 // E9 + imm32
	}
	return 6 // 0F 8x + imm32
}
func jumpShortSize(k relKind) int {
	if k == relJmp {
		return 2 // EB + imm8
	}
	return 2 // 7x + imm8
}

// shortenJump rewrites a 32-bit jump's opcode to its short form (spec
// §4.7: "conditional jump from 0F 8x to 7x (distinct by opcode-0x10);
// unconditional E9 to EB").
func shortenJump(ins Instr, k relKind) Instr {
	ins.HasImm, ins.ImmSize = true, Imm8
	ins.CodeMap = MapNone
	if k == relJmp {
		ins.Opcode = 0xeb
		return ins
	}
	ins.Opcode = ins.Opcode - 0x10
	return ins
}

func fullJump(ins Instr, k relKind) Instr {
	ins.HasImm, ins.ImmSize = true, Imm32
	if k == relJcc {
		ins.CodeMap = Map0F
	}
	return ins
}

// Encode is spec §4.7's forward-patch mode: every jump is emitted with a
// 32-bit displacement, except that a backward jump (whose target offset
// is already known when the jump is reached) is immediately shrunk to an
// 8-bit displacement if it fits. Forward jumps stay 32-bit and are
// back-patched once their label is bound.
func (b *Builder) Encode() ([]byte, error) {
	var out []byte
	labelOffset := make(map[Label]int)
	type patch struct {
		pos int
		l   Label
	}
	var patches []patch

	for i, ins := range b.instrs {
		if l, ok := b.labelAt[i]; ok {
			labelOffset[l] = len(out)
		}
		jr, isJump := b.jumpAt[i]
		if !isJump {
			out = ins.Encode(out)
			continue
		}
		if target, bound := labelOffset[jr.label]; bound {
			shortDisp := int64(target) - int64(len(out)+jumpShortSize(jr.kind))
			if shortDisp >= -127 && shortDisp <= 127 {
				out = shortenJump(ins, jr.kind).Encode(out)
				out[len(out)-1] = byte(int8(shortDisp))
				continue
			}
			full := fullJump(ins, jr.kind)
			full.Imm32 = int32(int64(target) - int64(len(out)+jumpFullSize(jr.kind)))
			out = full.Encode(out)
			continue
		}
		full := fullJump(ins, jr.kind)
		out = full.Encode(out)
		patches = append(patches, patch{pos: len(out) - 4, l: jr.label})
	}
	if l, ok := b.labelAt[len(b.instrs)]; ok {
		labelOffset[l] = len(out)
	}

	for _, p := range patches {
		target, ok := labelOffset[p.l]
		if !ok {
			return out, fmt.Errorf("x86: out-of-range label index %d", p.l)
		}
		disp := int64(target) - int64(p.pos+4)
		if disp > int64(1<<31-1) || disp < -int64(1<<31) {
			return out, fmt.Errorf("x86: 32-bit displacement overflow for label %d", p.l)
		}
		writeInt32At(out, p.pos, int32(disp))
	}
	return out, nil
}

func writeInt32At(p []byte, pos int, v int32) {
	u := uint32(v)
	p[pos] = byte(u)
	p[pos+1] = byte(u >> 8)
	p[pos+2] = byte(u >> 16)
	p[pos+3] = byte(u >> 24)
}
