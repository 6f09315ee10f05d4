package events

import (
	"math/bits"

	"github.com/ohmu-lang/x64backend/internal/assert"
	"github.com/ohmu-lang/x64backend/pkg/til"
)

// BaseKind is the 2-bit base-type field of a packed TypeDesc (spec §4.2).
type BaseKind uint8

const (
	BinaryData BaseKind = iota
	Unsigned
	Signed
	Float
)

// TypeDesc is the packed byte {vectorWidth:3, logBits:3, type:2} carried in
// sub-opcode data fields (spec §4.2, §3.2's arithmetic/compare/logic row,
// Glossary "Type descriptor").
type TypeDesc uint8

// NewTypeDesc packs a scalar bit width, its base kind, and a vector lane
// count (0 or 1 both mean scalar) into a TypeDesc.
func NewTypeDesc(sizeBits uint8, kind BaseKind, vectWidth uint8) TypeDesc {
	logBits := log2Exact(sizeBits)
	logVect := uint8(0)
	if vectWidth > 1 {
		logVect = log2Exact(vectWidth)
	}
	assert.True(kind <= 3, "events: TypeDesc kind out of range: %d", kind)
	return TypeDesc(logVect<<5 | logBits<<2 | uint8(kind))
}

// FromValueType derives a TypeDesc from a TIL value type (spec §4.2:
// "Signed integer is derived from TIL's ValueType.Signed").
func FromValueType(vt til.ValueType) TypeDesc {
	kind := BinaryData
	switch vt.Base {
	case til.Float:
		kind = Float
	case til.Int, til.Pointer:
		if vt.Signed {
			kind = Signed
		} else {
			kind = Unsigned
		}
	}
	size := uint8(vt.Size)
	if size == 0 {
		size = 1 // Void/Bool: treat as the smallest scalar width
	}
	vectWidth := vt.VectSize
	if vectWidth == 0 {
		vectWidth = 1
	}
	return NewTypeDesc(size, kind, vectWidth)
}

func (t TypeDesc) Kind() BaseKind    { return BaseKind(t & 0x3) }
func (t TypeDesc) LogBits() uint8    { return uint8(t>>2) & 0x7 }
func (t TypeDesc) LogVector() uint8  { return uint8(t>>5) & 0x7 }
func (t TypeDesc) SizeBits() uint8   { return uint8(1) << t.LogBits() }
func (t TypeDesc) VectorWidth() uint8 {
	if t.LogVector() == 0 {
		return 1
	}
	return uint8(1) << t.LogVector()
}

// log2Exact returns log2(n) for n a power of two; used for the 1,8,16,32,
// 64,128 scalar widths and the 1,2,4,...,128 vector widths spec.md names.
func log2Exact(n uint8) uint8 {
	assert.True(n != 0 && n&(n-1) == 0, "events: expected a power of two, got %d", n)
	return uint8(bits.TrailingZeros8(n))
}

// CompareKind is the 4-bit comparison kind packed into a COMPARE event's
// data (spec §3.2: "{type:8, kind:4} for COMPARE").
type CompareKind uint8

const (
	CmpEq CompareKind = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// PackCompare builds a COMPARE event's data word: type descriptor in the
// low byte, comparison kind in the next nibble.
func PackCompare(t TypeDesc, kind CompareKind) uint32 {
	return uint32(t) | uint32(kind)<<8
}

func UnpackCompare(data uint32) (TypeDesc, CompareKind) {
	return TypeDesc(data & 0xFF), CompareKind((data >> 8) & 0xF)
}

// LogicKind distinguishes the bitwise operator family packed into a LOGIC
// event's data (AND/OR/XOR), alongside its type descriptor.
type LogicKind uint8

const (
	LogicAnd LogicKind = iota
	LogicOr
	LogicXor
)

func PackLogic(t TypeDesc, kind LogicKind) uint32 {
	return uint32(t) | uint32(kind)<<8
}

func UnpackLogic(data uint32) (TypeDesc, LogicKind) {
	return TypeDesc(data & 0xFF), LogicKind((data >> 8) & 0xF)
}

// PackArith builds the data word for ADD/SUB/MUL/DIV/IMOD/IDIV/NEG: just
// the type descriptor, in the low byte.
func PackArith(t TypeDesc) uint32 { return uint32(t) }

func UnpackArith(data uint32) TypeDesc { return TypeDesc(data & 0xFF) }
