// Package til describes the front-end interface this backend consumes: a
// typed, SSA-form control-flow graph in the Thread-Intensive Language.
//
// TIL itself — parser, lexer, type-check/rewrite to CFG, high-level scope
// and copy traversal — is out of scope for this module (spec §1, §6.1).
// This package is the narrow, stable seam the front end is expected to
// hand a CFG across: BasicBlocks with predecessors/successors, phi
// arguments, a straight-line instruction list, and a terminator.
package til

// BaseType is the base scalar kind of a ValueType, matching ohmu's
// ValueType::BaseType.
type BaseType uint8

const (
	Void BaseType = iota
	Bool
	Int
	Float
	String
	Pointer
	ValueRef
)

// SizeBits is the scalar width in bits (0 for untyped/void).
type SizeBits uint8

const (
	Size0 SizeBits = 0
	Size1 SizeBits = 1
	Size8 SizeBits = 8
	Size16 SizeBits = 16
	Size32 SizeBits = 32
	Size64 SizeBits = 64
	Size128 SizeBits = 128
)

// ValueType is the type of anything that can live in a register: a base
// kind, a bit width, a signedness flag, and a vector lane count (0 means
// scalar).
type ValueType struct {
	Base     BaseType
	Size     SizeBits
	Signed   bool
	VectSize uint8
}

func (vt ValueType) IsNumeric() bool { return vt.Base == Int || vt.Base == Float }

// BinOp is a primitive binary operator.
type BinOp uint8

const (
	BOpAdd BinOp = iota
	BOpSub
	BOpMul
	BOpDiv
	BOpMod
	BOpEq
	BOpLt
	BOpLeq
	BOpBitAnd
	BOpBitOr
	BOpBitXor
)

func (op BinOp) IsCommutative() bool {
	switch op {
	case BOpAdd, BOpMul, BOpBitAnd, BOpBitOr, BOpBitXor, BOpEq:
		return true
	}
	return false
}

// ExprKind distinguishes the small set of expression shapes the lowerer
// understands.
type ExprKind uint8

const (
	ExprLiteral ExprKind = iota
	ExprVariable
	ExprBinaryOp
	ExprUndefined
)

// Expr is one TIL expression node: a literal, a reference to a phi or
// another expression's definition, or a binary operator over two operands.
//
// StackID is the mutable back-pointer slot the lowerer uses to record the
// event index of this node's defining event, so that later consumers of
// the same node reuse rather than re-emit it (spec §4.2, "Stack IDs").
type Expr struct {
	Kind     ExprKind
	Type     ValueType
	Lit      int64
	BinOp    BinOp
	Operands [2]*Expr
	Def      *Expr // set when this ExprVariable refers to another Expr's value
	DefPhi   *Phi  // set when this ExprVariable refers to a block argument
	StackID  int
}

// NoStackID marks an Expr that has not yet been lowered.
const NoStackID = -1

func NewLiteral(t ValueType, v int64) *Expr {
	return &Expr{Kind: ExprLiteral, Type: t, Lit: v, StackID: NoStackID}
}

func NewBinary(op BinOp, t ValueType, a, b *Expr) *Expr {
	return &Expr{Kind: ExprBinaryOp, Type: t, BinOp: op, Operands: [2]*Expr{a, b}, StackID: NoStackID}
}

func NewVariable(def *Expr) *Expr {
	return &Expr{Kind: ExprVariable, Type: def.Type, Def: def, StackID: NoStackID}
}

// NewPhiRef builds a variable reference to a block argument.
func NewPhiRef(phi *Phi) *Expr {
	return &Expr{Kind: ExprVariable, Type: phi.Type, DefPhi: phi, StackID: NoStackID}
}

// Phi is a block argument: one incoming Expr per predecessor, aligned with
// BasicBlock.Predecessors.
type Phi struct {
	Type     ValueType
	Incoming []*Expr
	StackID  int
}

// Terminator is the tail of a BasicBlock: Goto, Branch, or Return.
type Terminator interface{ isTerminator() }

type Goto struct{ Target *BasicBlock }
type Branch struct {
	Cond       *Expr
	Then, Else *BasicBlock
}
type Return struct{ Value *Expr } // nil Value means a void return

func (*Goto) isTerminator()   {}
func (*Branch) isTerminator() {}
func (*Return) isTerminator() {}

// BasicBlock is one block of the front-end CFG.
type BasicBlock struct {
	Predecessors []*BasicBlock
	Successors   []*BasicBlock
	Arguments    []*Phi
	Instructions []*Expr
	Terminator   Terminator
}

// PhiIndex returns which predecessor slot pred occupies in b's arguments,
// i.e. which element of each Phi.Incoming belongs to the pred -> b edge.
func (b *BasicBlock) PhiIndex(pred *BasicBlock) int {
	for i, p := range b.Predecessors {
		if p == pred {
			return i
		}
	}
	return 0
}

// Function is an ordered list of BasicBlocks; Blocks[0] is the entry.
type Function struct {
	Blocks []*BasicBlock
}

// Module is the complete unit the core compiles: an immutable set of CFGs.
type Module struct {
	Functions []*Function
}
