// Package codegen is the top-level glue (spec §1, component (F)/(G) glue
// driving (B)/(C)): it walks a fully-allocated event stream and drives an
// x86.Builder to produce the final byte buffer (spec §6.2).
//
// It depends only on pkg/events and pkg/x86, not pkg/cfg/pkg/til — every
// jump target a lowered stream ever carries (JUMP, BRANCH, JOIN_COPY) is
// already an absolute event index, so the stream alone is enough to drive
// code generation once pkg/regalloc.Allocate has run.
package codegen

import (
	"github.com/ohmu-lang/x64backend/internal/assert"
	"github.com/ohmu-lang/x64backend/pkg/events"
	"github.com/ohmu-lang/x64backend/pkg/x86"
)

// Generate turns an allocated event stream into the final machine code
// (spec §6.2). relaxed selects between the Builder's iterative jump
// relaxation (EncodeRelaxed, spec §4.7) and its cheaper single-pass
// back-jump-only shrink (Encode); callers that only need a quick encoding
// of straight-line code can pass false.
func Generate(s *events.Stream, relaxed bool) ([]byte, error) {
	g := &generator{s: s, b: x86.NewBuilder(), labels: make(map[int]x86.Label)}
	for i := 0; i < s.Len(); i++ {
		if op := s.Code[i]; op == events.JUMP || op == events.BRANCH {
			g.labelFor(int(s.Data[i]))
		}
	}
	for i := 0; i < s.Len(); i++ {
		g.bindIfTarget(i)
		g.emit(i)
	}
	if relaxed {
		return g.b.EncodeRelaxed()
	}
	return g.b.Encode()
}

type generator struct {
	s      *events.Stream
	b      *x86.Builder
	labels map[int]x86.Label
}

// labelFor returns the Builder label for absolute event index target,
// creating it on first reference. Generate references every JUMP/BRANCH
// target before its forward walk, so each label exists by the time the
// walk reaches its target and binds it, for backward and forward jumps
// alike.
func (g *generator) labelFor(target int) x86.Label {
	if l, ok := g.labels[target]; ok {
		return l
	}
	l := g.b.NewLabel()
	g.labels[target] = l
	return l
}

// bindIfTarget binds i's label if some jump targets event i.
func (g *generator) bindIfTarget(i int) {
	if l, ok := g.labels[i]; ok {
		g.b.BindLabel(l)
	}
}

// regOf returns the physical register holding the value defined at
// valueIdx, read from its (post-allocation) Data mask.
func (g *generator) regOf(valueIdx int) x86.Reg {
	r, ok := x86.FromMask(g.s.Data[valueIdx])
	assert.True(ok, "codegen: value event %d has no assigned register", valueIdx)
	return r
}

// useTarget resolves a USE-category event back to the absolute index of
// the value it references (unmodified by allocation, since USE events are
// never themselves in the allocator's worklist).
func (g *generator) useTarget(useIdx int) int { return int(g.s.Data[useIdx]) }

// lastTwoUses walks backward from opIdx, skipping the CLOBBER_LIST_*/
// REGISTER_HINT_* markers the divide/multiply lowering sequence inserts
// (spec §4.5 scenario 5), and returns the two use events immediately
// preceding the op in source order (lhsUse, rhsUse).
func (g *generator) lastTwoUses(opIdx int) (lhsUse, rhsUse int) {
	var found []int
	for i := opIdx - 1; i >= 0 && len(found) < 2; i-- {
		op := g.s.OpAt(i)
		if op == events.CLOBBER_LIST_EAX || op == events.CLOBBER_LIST_EDX ||
			op == events.REGISTER_HINT_EAX || op == events.REGISTER_HINT_EDX {
			continue
		}
		assert.True(op.IsUse(), "codegen: expected a use event before %d, got %s", opIdx, op)
		found = append(found, i)
	}
	assert.True(len(found) == 2, "codegen: binary op %d missing its two operand uses", opIdx)
	return found[1], found[0]
}

func (g *generator) emit(i int) {
	s := g.s
	op := s.Code[i]

	switch {
	case op.IsBlockHeader(), op.IsUse(), op == events.PHI, op == events.BRANCH_TARGET,
		op == events.CLOBBER_LIST_EAX, op == events.CLOBBER_LIST_EDX,
		op == events.REGISTER_HINT_EAX, op == events.REGISTER_HINT_EDX:
		return // pure stream markers: no code

	case op == events.VALUE || op == events.DESTRUCTIVE_VALUE || op == events.COPY:
		// pkg/lower never emits these opcodes for this TIL's current
		// feature set (no standalone materialized/destructive values, no
		// direct COPY — only the JOIN_COPY path carries a copy across a
		// block boundary), so there is nothing to lower here; see
		// pkg/events' opcode table for the rest of the opcode space this
		// lowering pipeline doesn't exercise (LOGIC3, LOAD, STORE, NEG,
		// SHUFFLE, USE_EAX/EDX/EFLAGS).
		return

	case op == events.JOIN_COPY:
		g.emitJoinCopy(i)

	case op == events.IMMEDIATE_BYTES || op == events.INT32:
		g.b.Emit(x86.MovImm32(g.regOf(i), int32(s.Orig[i])))

	case op == events.ADD || op == events.SUB:
		g.emitAlu(i, map[events.Opcode]string{events.ADD: "ADD", events.SUB: "SUB"}[op])

	case op == events.LOGIC:
		_, kind := events.UnpackLogic(s.Orig[i])
		g.emitAlu(i, map[events.LogicKind]string{events.LogicAnd: "AND", events.LogicOr: "OR", events.LogicXor: "XOR"}[kind])

	case op == events.MUL:
		g.emitMul(i)

	case op == events.DIV, op == events.IDIV, op == events.IMOD:
		g.emitDivide(i, op)

	case op == events.COMPARE:
		g.emitCompare(i)

	case op == events.JUMP:
		g.b.Jmp(g.labelFor(int(s.Data[i])))

	case op == events.BRANCH:
		g.emitBranch(i)

	case op == events.RET:
		g.emitRet(i)

	default:
		assert.Unreachable("codegen: unhandled event opcode %s at %d", op, i)
	}
}

// emitJoinCopy reconciles a phi argument's register with the phi's own
// register at the join point (spec §4.2's Goto lowering, §4.5 step 3's
// co-allocation goal) — a real MOV only when the allocator could not
// coalesce the two.
func (g *generator) emitJoinCopy(i int) {
	s := g.s
	// JOIN_COPY is IsValue() but not IsRedirect(), so regalloc.Allocate's
	// worklist pass treats it as self-keyed and overwrites Data with its
	// own register mask (spec §4.5 step 7) — the packed phi target survives
	// only in Orig.
	phiIdx := events.JoinCopyPhiIndex(s.Orig[i])
	argTarget := g.useTarget(i - 1)
	phiReg, argReg := g.regOf(phiIdx), g.regOf(argTarget)
	if phiReg != argReg {
		g.b.Emit(x86.MovRR(phiReg, argReg))
	}
}

func (g *generator) emitAlu(i int, mnemonic string) {
	lhsUse, rhsUse := g.lastTwoUses(i)
	lhsReg := g.regOf(g.useTarget(lhsUse))
	rhsReg := g.regOf(g.useTarget(rhsUse))
	dst := g.regOf(i)
	if dst != lhsReg {
		g.b.Emit(x86.MovRR(dst, lhsReg))
	}
	g.b.Emit(x86.AluRR(mnemonic, dst, rhsReg))
}

// emitMul lowers the MUL event to the two-operand IMUL r32,r32 form
// (0F AF /r), which needs no implicit EAX:EDX operand pair — unlike
// DIV/IDIV/IMOD, the lowering sequence never attaches a REGISTER_HINT_EAX
// to MUL (only a CLOBBER_LIST_EDX, see pkg/lower/expr.go), so there is no
// fixed destination to honor and the general two-operand form fits the
// allocator's output directly.
func (g *generator) emitMul(i int) {
	lhsUse, rhsUse := g.lastTwoUses(i)
	lhsReg := g.regOf(g.useTarget(lhsUse))
	rhsReg := g.regOf(g.useTarget(rhsUse))
	dst := g.regOf(i)
	if dst != lhsReg {
		g.b.Emit(x86.MovRR(dst, lhsReg))
	}
	g.b.Emit(x86.Imul(dst, rhsReg))
}

// emitDivide lowers DIV/IDIV/IMOD to the one-operand group-3 form, whose
// fixed EAX (dividend-low/quotient) and EDX (dividend-high/remainder)
// operands are exactly what CLOBBER_LIST_EDX/REGISTER_HINT_EAX reserved
// in pkg/lower (spec §4.5 scenario 5).
func (g *generator) emitDivide(i int, op events.Opcode) {
	lhsUse, rhsUse := g.lastTwoUses(i)
	lhsReg := g.regOf(g.useTarget(lhsUse))
	rhsReg := g.regOf(g.useTarget(rhsUse))
	dst := g.regOf(i)

	if lhsReg != x86.RAX {
		g.b.Emit(x86.MovRR(x86.RAX, lhsReg))
	}
	if op == events.IDIV {
		g.b.Emit(x86.Cdq())
	} else {
		g.b.Emit(x86.AluRR("XOR", x86.RDX, x86.RDX))
	}

	name := map[events.Opcode]string{events.DIV: "DIV", events.IDIV: "IDIV", events.IMOD: "IDIV"}[op]
	g.b.Emit(x86.Group3(name, rhsReg))

	result := x86.RAX
	if op == events.IMOD {
		result = x86.RDX
	}
	if dst != result {
		g.b.Emit(x86.MovRR(dst, result))
	}
}

func (g *generator) emitCompare(i int) {
	lhsUse, rhsUse := g.lastTwoUses(i)
	lhsReg := g.regOf(g.useTarget(lhsUse))
	rhsReg := g.regOf(g.useTarget(rhsUse))
	g.b.Emit(x86.AluRR("CMP", lhsReg, rhsReg))
}

// ccForCompare maps a CompareKind to the condition code that should be
// true when BRANCH's jump is taken. BRANCH(else)'s data is the absolute
// index of the else block (spec §4.2's Branch lowering); the direction
// that makes spec §8.4 scenario 2's worked example come out as a plain
// JE (not JNE) is "jump to else exactly when the compared condition
// holds" — i.e. BRANCH encodes the *taken* edge directly, not a
// jump-if-false guard around a fallthrough then-block.
func ccForCompare(kind events.CompareKind) string {
	switch kind {
	case events.CmpEq:
		return "E"
	case events.CmpNe:
		return "NE"
	case events.CmpLt:
		return "L"
	case events.CmpLe:
		return "LE"
	case events.CmpGt:
		return "G"
	case events.CmpGe:
		return "GE"
	}
	assert.Unreachable("codegen: unhandled compare kind %d", kind)
	return ""
}

func (g *generator) emitBranch(i int) {
	s := g.s
	condUse := i - 1
	condTarget := g.useTarget(condUse)
	_, kind := events.UnpackCompare(s.Orig[condTarget])
	g.b.Jcc(ccForCompare(kind), g.labelFor(int(s.Data[i])))
}

func (g *generator) emitRet(i int) {
	data := g.s.Data[i]
	if data == ^uint32(0) { // lower.RetVoid, matched by value to avoid a pkg/lower import
		g.b.Emit(x86.Ret())
		return
	}
	reg := g.regOf(int(data))
	if reg != x86.RAX {
		g.b.Emit(x86.MovRR(x86.RAX, reg))
	}
	g.b.Emit(x86.Ret())
}
