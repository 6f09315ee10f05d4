// Package lower walks a normalized CFG (pkg/cfg) and flattens it into a
// packed event stream (pkg/events), per spec §4.2.
package lower

import (
	"github.com/ohmu-lang/x64backend/internal/assert"
	"github.com/ohmu-lang/x64backend/pkg/cfg"
	"github.com/ohmu-lang/x64backend/pkg/events"
	"github.com/ohmu-lang/x64backend/pkg/til"
)

// Lower runs the full four-step algorithm of spec §4.2 and returns the
// resulting event stream. m must already be normalized (pkg/cfg.Normalize).
func Lower(m *cfg.Module) *events.Stream {
	computeHeads(m)

	sizes := make([]int, len(m.Blocks))
	for i, b := range m.Blocks {
		sizes[i] = countBlock(m, b)
	}

	firstEvent := 0
	for i, b := range m.Blocks {
		b.FirstEvent = firstEvent
		b.BoundEvent = firstEvent + sizes[i]
		firstEvent = b.BoundEvent
	}

	resetStackIDs(m)

	s := events.NewStream(firstEvent)
	for _, b := range m.Blocks {
		emit := func(op events.Opcode, data uint32) int { return s.Emit(op, data) }
		emitBlock(m, b, emit)
		assert.True(s.Len() == b.BoundEvent, "lower: block produced %d total events, expected bound %d", s.Len(), b.BoundEvent)
	}
	return s
}

// computeHeads is spec §4.2 step 2: link each block's head to its
// dominator's head when the dominator post-dominates it or the two are
// adjacent in block order, so no new live-range scope is needed; otherwise
// the block opens its own scope.
func computeHeads(m *cfg.Module) {
	for _, b := range m.Blocks {
		if b.Dominator == cfg.SentinelIndex {
			b.Head = b.Index
			continue
		}
		dom := m.Blocks[b.Dominator]
		if cfg.PostDominates(m, dom, b) || b.Index == dom.Index+1 {
			b.Head = dom.Head
		} else {
			b.Head = b.Index
		}
	}
}

func resetStackIDs(m *cfg.Module) {
	for _, b := range m.Blocks {
		bb := b.BasicBlock
		for _, phi := range bb.Arguments {
			phi.StackID = til.NoStackID
			for _, in := range phi.Incoming {
				resetExpr(in)
			}
		}
		for _, e := range bb.Instructions {
			resetExpr(e)
		}
		switch t := bb.Terminator.(type) {
		case *til.Branch:
			resetExpr(t.Cond)
		case *til.Return:
			resetExpr(t.Value)
		}
	}
}

func resetExpr(e *til.Expr) {
	if e == nil {
		return
	}
	e.StackID = til.NoStackID
	if e.Kind == til.ExprBinaryOp {
		resetExpr(e.Operands[0])
		resetExpr(e.Operands[1])
	}
}

// countBlock runs the dry-run pass for one block (spec §4.2 step 1): the
// same walk as the real emission, with an emit func that only counts.
// The header's exact opcode (NOP vs CASE_HEADER vs JOIN_HEADER) depends on
// FirstEvent/BoundEvent, which do not exist yet during counting — but every
// header variant occupies exactly one slot, so the count is unaffected.
func countBlock(m *cfg.Module, b *cfg.Block) int {
	n := 0
	emit := func(op events.Opcode, data uint32) int {
		n++
		return n - 1
	}
	emitBlockBody(m, b, emit, false)
	return n
}

// emitBlock runs the real emission for b: header (decided against the now-
// final dominator/head event bounds), phis, instructions, terminator.
func emitBlock(m *cfg.Module, b *cfg.Block, emit func(events.Opcode, uint32) int) {
	emitHeader(m, b, emit)
	emitBlockBody(m, b, emit, true)
}

// emitHeader emits exactly the block-header event (spec §4.2, "Block
// header"):
//   - the entry block of a function: NOP
//   - a non-head block whose position is its dominator's straight-line
//     successor (FirstEvent == dominator.BoundEvent): NOP
//   - a block that opens its own scope (Head == self): CASE_HEADER(dom's
//     last event)
//   - otherwise: JOIN_HEADER(head's last event)
func emitHeader(m *cfg.Module, b *cfg.Block, emit func(events.Opcode, uint32) int) {
	if b.Dominator == cfg.SentinelIndex {
		emit(events.NOP, 0)
		return
	}
	dom := m.Blocks[b.Dominator]
	if b.Head != b.Index && b.FirstEvent == dom.BoundEvent {
		emit(events.NOP, 0)
		return
	}
	if b.Head == b.Index {
		emit(events.CASE_HEADER, uint32(dom.BoundEvent-1))
		return
	}
	head := m.Blocks[b.Head]
	emit(events.JOIN_HEADER, uint32(head.BoundEvent-1))
}

// emitBlockBody emits phis, instructions, and the terminator — the part of
// a block shared identically between the counting and real passes.
// headerAlreadyEmitted is false during counting (emitHeader's decision
// logic needs final event bounds, so counting instead emits a one-slot
// placeholder here) and true during real emission (emitHeader already
// emitted the real header event).
func emitBlockBody(m *cfg.Module, b *cfg.Block, emit func(events.Opcode, uint32) int, headerAlreadyEmitted bool) {
	if !headerAlreadyEmitted {
		emit(events.NOP, 0) // placeholder: header always costs exactly one slot
	}

	bb := b.BasicBlock
	for _, phi := range bb.Arguments {
		phi.StackID = emit(events.PHI, 0)
	}

	for _, instr := range bb.Instructions {
		lowerExpr(instr, emit)
	}

	lowerTerminator(m, b, emit)
}
