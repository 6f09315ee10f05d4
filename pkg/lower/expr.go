package lower

import (
	"github.com/ohmu-lang/x64backend/internal/assert"
	"github.com/ohmu-lang/x64backend/pkg/cfg"
	"github.com/ohmu-lang/x64backend/pkg/events"
	"github.com/ohmu-lang/x64backend/pkg/til"
)

// RetVoid marks a RET event whose function returns no value.
const RetVoid = ^uint32(0)

// lowerExpr emits e (and, if e.StackID is already set, returns that cached
// index instead — the "if trivial, inline before the use" rule of spec
// §4.2 falls out of this check: an operand that was already lowered as an
// earlier top-level instruction or phi is reused, while one that was never
// separately lowered — a literal folded directly into its use — gets
// emitted here, right before the use that needs it).
func lowerExpr(e *til.Expr, emit func(events.Opcode, uint32) int) int {
	if e.StackID != til.NoStackID {
		return e.StackID
	}

	switch e.Kind {
	case til.ExprLiteral:
		e.StackID = emit(events.IMMEDIATE_BYTES, uint32(e.Lit))

	case til.ExprVariable:
		if e.DefPhi != nil {
			assert.True(e.DefPhi.StackID != til.NoStackID, "lower: variable references a phi not yet lowered")
			e.StackID = e.DefPhi.StackID
		} else {
			e.StackID = lowerExpr(e.Def, emit)
		}

	case til.ExprUndefined:
		// Type-mismatch recovery (spec §7): the lowerer already printed a
		// diagnostic and substituted this placeholder; emit a harmless
		// zero value so the rest of the block still lowers.
		e.StackID = emit(events.IMMEDIATE_BYTES, 0)

	case til.ExprBinaryOp:
		lhs := lowerExpr(e.Operands[0], emit)
		rhs := lowerExpr(e.Operands[1], emit)
		e.StackID = lowerBinOp(e, lhs, rhs, emit)

	default:
		assert.Unreachable("lower: unhandled expr kind %d", e.Kind)
	}

	return e.StackID
}

// lowerBinOp emits the LAST_USE pair and result event for a binary
// operator (spec §4.2, "Binary op"), inserting the CLOBBER_LIST/
// REGISTER_HINT sequence divide and modulo need (spec §4.5 scenario 5,
// grounded on original_source's x64alloc.cpp X64RegisterBuilder::mul).
func lowerBinOp(e *til.Expr, lhs, rhs int, emit func(events.Opcode, uint32) int) int {
	op, data := binOpOpcode(e.BinOp, e.Type)

	emit(events.LAST_USE, uint32(lhs))
	emit(events.LAST_USE, uint32(rhs))

	switch op {
	case events.DIV, events.IDIV, events.IMOD:
		clobberIdx := emit(events.CLOBBER_LIST_EDX, 0)
		// the result event is always clobberIdx+2 (hint at clobberIdx+1,
		// result right after) — computed arithmetically since emit always
		// appends one slot per call, letting the hint name its target
		// before that event exists.
		emit(events.REGISTER_HINT_EAX, uint32(clobberIdx+2))
	case events.MUL:
		emit(events.CLOBBER_LIST_EDX, 0)
	}

	return emit(op, data)
}

// binOpOpcode maps a TIL binary operator to an event opcode and packed
// sub-opcode data word (spec §4.2: "opcode comes from a fixed table").
func binOpOpcode(op til.BinOp, t til.ValueType) (events.Opcode, uint32) {
	desc := events.FromValueType(t)
	switch op {
	case til.BOpAdd:
		return events.ADD, events.PackArith(desc)
	case til.BOpSub:
		return events.SUB, events.PackArith(desc)
	case til.BOpMul:
		return events.MUL, events.PackArith(desc)
	case til.BOpDiv:
		if t.Signed {
			return events.IDIV, events.PackArith(desc)
		}
		return events.DIV, events.PackArith(desc)
	case til.BOpMod:
		return events.IMOD, events.PackArith(desc)
	case til.BOpEq:
		return events.COMPARE, events.PackCompare(desc, events.CmpEq)
	case til.BOpLt:
		return events.COMPARE, events.PackCompare(desc, events.CmpLt)
	case til.BOpLeq:
		return events.COMPARE, events.PackCompare(desc, events.CmpLe)
	case til.BOpBitAnd:
		return events.LOGIC, events.PackLogic(desc, events.LogicAnd)
	case til.BOpBitOr:
		return events.LOGIC, events.PackLogic(desc, events.LogicOr)
	case til.BOpBitXor:
		return events.LOGIC, events.PackLogic(desc, events.LogicXor)
	}
	assert.Unreachable("lower: unhandled BinOp %d", op)
	return events.NOP, 0
}

// lowerTerminator lowers the tail of b's block (spec §4.2: "Goto",
// "Branch", "Return").
func lowerTerminator(m *cfg.Module, b *cfg.Block, emit func(events.Opcode, uint32) int) {
	switch t := b.BasicBlock.Terminator.(type) {
	case *til.Goto:
		target := m.BlockOf(t.Target)
		for phiOffset, phi := range t.Target.Arguments {
			arg := phi.Incoming[b.PhiSlot]
			argIdx := lowerExpr(arg, emit)
			emit(events.LAST_USE, uint32(argIdx))
			emit(events.JOIN_COPY, events.PackJoinCopyTarget(target.FirstEvent, phiOffset))
		}
		emit(events.JUMP, uint32(target.FirstEvent))

	case *til.Branch:
		condIdx := lowerExpr(t.Cond, emit)
		emit(events.LAST_USE, uint32(condIdx))
		elseBlock := m.BlockOf(t.Else)
		thenBlock := m.BlockOf(t.Then)
		emit(events.BRANCH, uint32(elseBlock.FirstEvent))
		emit(events.BRANCH_TARGET, uint32(thenBlock.FirstEvent))

	case *til.Return:
		if t.Value == nil {
			emit(events.RET, RetVoid)
			return
		}
		valIdx := lowerExpr(t.Value, emit)
		emit(events.RET, uint32(valIdx))

	default:
		assert.Unreachable("lower: unhandled terminator %T", t)
	}
}
