// Package events implements the packed parallel-array event stream that the
// lowerer (pkg/lower) produces and the register allocator (pkg/regalloc)
// mutates in place (spec §3.2, §4.2-§4.5).
package events

// Opcode is the 8-bit tag of one event-stream slot. Exact byte values are
// implementation-defined but fixed within a build (spec §3.2); ordering
// below follows the categories spec.md lays out, grouped the way
// original_source/src/backend/jagger/types.h groups its Opcodes enum.
type Opcode uint8

const (
	// Block header category: delimits live-range scopes (§4.4).
	NOP Opcode = iota
	CASE_HEADER
	JOIN_HEADER

	// SSA markers.
	PHI
	JOIN_COPY
	VALUE
	DESTRUCTIVE_VALUE
	COPY

	// Uses, promoted in place by last-use detection and key-compression.
	USE
	LAST_USE
	MUTED_USE
	ONLY_USE

	// Fixed-register hints. Spec.md describes these as one opcode family
	// whose low bits encode the register; since exact byte values are
	// implementation-defined (spec §3.2), we spell out the (category,
	// register) pairs the allocator actually needs (divide/multiply,
	// spec §4.5 scenario 5) as distinct constants instead of bit-packing
	// the opcode byte — see DESIGN.md.
	USE_EAX
	USE_EDX
	USE_EFLAGS
	REGISTER_HINT_EAX
	REGISTER_HINT_EDX
	CLOBBER_LIST_EAX
	CLOBBER_LIST_EDX

	// Literals.
	IMMEDIATE_BYTES
	INT32

	// Arithmetic / compare / logic / memory.
	ADD
	SUB
	MUL
	DIV
	IMOD
	IDIV
	COMPARE
	LOGIC
	LOGIC3
	LOAD
	STORE
	NEG
	SHUFFLE

	// Terminators.
	JUMP
	BRANCH
	BRANCH_TARGET
	RET

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	NOP: "NOP", CASE_HEADER: "CASE_HEADER", JOIN_HEADER: "JOIN_HEADER",
	PHI: "PHI", JOIN_COPY: "JOIN_COPY", VALUE: "VALUE", DESTRUCTIVE_VALUE: "DESTRUCTIVE_VALUE", COPY: "COPY",
	USE: "USE", LAST_USE: "LAST_USE", MUTED_USE: "MUTED_USE", ONLY_USE: "ONLY_USE",
	USE_EAX: "USE_EAX", USE_EDX: "USE_EDX", USE_EFLAGS: "USE_EFLAGS",
	REGISTER_HINT_EAX: "REGISTER_HINT_EAX", REGISTER_HINT_EDX: "REGISTER_HINT_EDX",
	CLOBBER_LIST_EAX: "CLOBBER_LIST_EAX", CLOBBER_LIST_EDX: "CLOBBER_LIST_EDX",
	IMMEDIATE_BYTES: "IMMEDIATE_BYTES", INT32: "INT32",
	ADD: "ADD", SUB: "SUB", MUL: "MUL", DIV: "DIV", IMOD: "IMOD", IDIV: "IDIV",
	COMPARE: "COMPARE", LOGIC: "LOGIC", LOGIC3: "LOGIC3", LOAD: "LOAD", STORE: "STORE", NEG: "NEG", SHUFFLE: "SHUFFLE",
	JUMP: "JUMP", BRANCH: "BRANCH", BRANCH_TARGET: "BRANCH_TARGET", RET: "RET",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return "Opcode(?)"
}

// IsUse reports whether op is one of the four use-category opcodes (spec
// §3.2's "Uses" row), which all carry the defining event's absolute index
// in data and get promoted in place by the allocator passes.
func (op Opcode) IsUse() bool {
	switch op {
	case USE, LAST_USE, MUTED_USE, ONLY_USE:
		return true
	}
	return false
}

// IsValue reports whether op defines a value that a use can reference.
func (op Opcode) IsValue() bool {
	switch op {
	case PHI, JOIN_COPY, VALUE, DESTRUCTIVE_VALUE, COPY,
		ADD, SUB, MUL, DIV, IMOD, IDIV, COMPARE, LOGIC, LOGIC3, LOAD, NEG, SHUFFLE, IMMEDIATE_BYTES, INT32:
		return true
	}
	return false
}

// IsBlockHeader reports whether op opens a live-range scope (§4.4).
func (op Opcode) IsBlockHeader() bool {
	switch op {
	case NOP, CASE_HEADER, JOIN_HEADER:
		return true
	}
	return false
}

// IsCommutative reports whether op's two preceding use operands may be
// swapped by the commute pass (§4.3 step 2, decided generically per
// SPEC_FULL.md's Open Question 1: ADD and the bitwise LOGIC kinds and MUL,
// not just ADD as the original does).
func (op Opcode) IsCommutative() bool {
	switch op {
	case ADD, MUL, LOGIC:
		return true
	}
	return false
}

// AliasSet identifies a physical register file (spec Glossary).
type AliasSet uint8

const (
	AliasGPR AliasSet = iota
	AliasFlags
	AliasXMM
)

// Physical GPR bit masks used by fixed-register hints (spec §4.5 scenario
// 5). Bit position is the x86-64 GPR encoding (EAX=0, ECX=1, EDX=2, ...).
const (
	RegEAX uint8 = 1 << 0
	RegEDX uint8 = 1 << 2
)

// FixedReg returns the physical register bitmask and alias set a
// fixed-operand opcode (USE_EAX, USE_EDX, USE_EFLAGS) pins its value to
// (spec §3.2, "Fixed-register hints" row).
func FixedReg(op Opcode) (regMask uint32, alias AliasSet, ok bool) {
	switch op {
	case USE_EAX:
		return uint32(RegEAX), AliasGPR, true
	case USE_EDX:
		return uint32(RegEDX), AliasGPR, true
	case USE_EFLAGS:
		return 1, AliasFlags, true
	}
	return 0, 0, false
}

// HintReg returns the register bitmask a REGISTER_HINT_* opcode prefers.
func HintReg(op Opcode) (regMask uint32, ok bool) {
	switch op {
	case REGISTER_HINT_EAX:
		return uint32(RegEAX), true
	case REGISTER_HINT_EDX:
		return uint32(RegEDX), true
	}
	return 0, false
}

// ClobberReg returns the register bitmask a CLOBBER_LIST_* opcode
// invalidates.
func ClobberReg(op Opcode) (regMask uint32, ok bool) {
	switch op {
	case CLOBBER_LIST_EAX:
		return uint32(RegEAX), true
	case CLOBBER_LIST_EDX:
		return uint32(RegEDX), true
	}
	return 0, false
}
