package events

import "github.com/ohmu-lang/x64backend/internal/assert"

// Stream is the packed parallel-array event stream (spec §3.2): Code and
// Data are kept the same length, with a zero-initialized Prefix of size
// ceil(N/3) addressed by negative indices so algorithms reading events[i-k]
// near a block's first event never fault.
//
// The original lays Prefix physically before index 0 in one allocation; we
// keep it a separate slice and translate negative indices through At/Set,
// which preserves the contract (spec §9, "Ownership in native form")
// without depending on unsafe pointer arithmetic.
type Stream struct {
	Code   []Opcode
	Data   []uint32
	Prefix []uint32 // indexed by At(-1), At(-2), ...; always reads as 0

	// Orig mirrors Data at the moment each event was emitted and is never
	// touched again. The allocator's final step overwrites a value event's
	// Data with its assigned register mask (spec §4.5 step 7's "Output"),
	// which would otherwise destroy the packed TypeDesc/CompareKind/
	// LogicKind sub-opcode arithmetic, compare, and logic events carry in
	// Data before allocation — pkg/codegen reads Orig to recover it when
	// choosing an instruction encoding.
	Orig []uint32
}

// NewStream allocates a stream with capacity for n events and a prefix of
// ceil(n/3) zeroed slots.
func NewStream(n int) *Stream {
	prefixLen := (n + 2) / 3
	return &Stream{
		Code:   make([]Opcode, 0, n),
		Data:   make([]uint32, 0, n),
		Orig:   make([]uint32, 0, n),
		Prefix: make([]uint32, prefixLen),
	}
}

// Len is the number of real (non-prefix) events.
func (s *Stream) Len() int { return len(s.Code) }

// Emit appends one event, returning its index.
func (s *Stream) Emit(op Opcode, data uint32) int {
	s.Code = append(s.Code, op)
	s.Data = append(s.Data, data)
	s.Orig = append(s.Orig, data)
	return len(s.Code) - 1
}

// At reads the data word at i, which may be negative (prefix region, always
// 0) or a valid index into Data.
func (s *Stream) At(i int) uint32 {
	if i < 0 {
		assert.True(-i <= len(s.Prefix), "events: prefix read out of range: %d", i)
		return 0
	}
	return s.Data[i]
}

// OpAt returns the opcode at i, or NOP for any prefix index (the prefix is
// never traversed as a real event, but a NOP default keeps callers that
// defensively inspect op simple).
func (s *Stream) OpAt(i int) Opcode {
	if i < 0 {
		return NOP
	}
	return s.Code[i]
}

// Key walks data -> data -> ... from i until it reaches a fixed point: the
// canonical key event for i's SSA equivalence class (spec §3.2 invariant,
// §8.1 "fixed point in <= log2(N) steps").
//
// Only the SSA-marker opcodes that actually forward through data this way
// (PHI, COPY, DESTRUCTIVE_VALUE) are chased; every other value-producing
// opcode packs a sub-opcode struct into data instead (spec §3.2's
// arithmetic/compare/logic row), so it is always its own key. JOIN_COPY is
// excluded even though it is an SSA marker: its data holds a packed
// (targetFirstEvent, slot) pair for PhiElimination, never a forwarding
// index (see PackJoinCopyTarget) — chasing it here would misread those
// packed bits as an event index.
func (s *Stream) Key(i int) int {
	for isRedirect(s.Code[i]) {
		next := int(s.Data[i])
		if next == i {
			return i
		}
		i = next
	}
	return i
}

func isRedirect(op Opcode) bool {
	switch op {
	case PHI, COPY, DESTRUCTIVE_VALUE:
		return true
	}
	return false
}

// IsRedirect is the exported form of isRedirect, used by pkg/regalloc's
// key-compression pass (spec §4.5 step 2).
func IsRedirect(op Opcode) bool { return isRedirect(op) }
