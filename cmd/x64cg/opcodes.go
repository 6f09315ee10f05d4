package main

import (
	"fmt"

	"github.com/ohmu-lang/x64backend/pkg/x86"
)

// twoRegDstIsReg is the set of mnemonics whose decoded Reg field is the
// destination (IMUL's "r32, r/m32" form); every other two-register
// mnemonic this package decodes (MOV, and the group-1 ALU ops) uses the
// opposite convention — RM is the destination, Reg the source — because
// they were all encoded via the "r/m, reg" opcode forms (0x89, 0x00-0x39).
var twoRegDstIsReg = map[string]bool{"IMUL": true}

// operandString renders a Decoded instruction's operands in dst, src
// order for display by the disasm command.
func operandString(d x86.Decoded) string {
	switch {
	case d.Mnemonic == "RET" || d.Mnemonic == "CDQ":
		return ""
	case d.HasImm && d.Reg == 0 && !hasRMOnly(d):
		// a jump: the only operand is the (already-relative) displacement
		return fmt.Sprintf("%d", d.Imm)
	case d.HasImm:
		return fmt.Sprintf("%s, %d", regName[d.RM], d.Imm)
	case d.Mnemonic == "NEG" || d.Mnemonic == "MUL" || d.Mnemonic == "DIV" || d.Mnemonic == "IDIV":
		return regName[d.RM]
	case twoRegDstIsReg[d.Mnemonic]:
		return fmt.Sprintf("%s, %s", regName[d.Reg], regName[d.RM])
	default:
		return fmt.Sprintf("%s, %s", regName[d.RM], regName[d.Reg])
	}
}

// hasRMOnly distinguishes a jump (no register operand at all, HasImm
// true) from MOV's immediate form (RM set, HasImm true, Reg left zero).
func hasRMOnly(d x86.Decoded) bool {
	_, ok := regName[d.RM]
	return ok && (d.Mnemonic == "MOV" || d.Mnemonic == "ADD" || d.Mnemonic == "OR" ||
		d.Mnemonic == "AND" || d.Mnemonic == "SUB" || d.Mnemonic == "XOR" || d.Mnemonic == "CMP")
}

// opcodeTable is the dump-opcodes command's catalog: one row per mnemonic
// this package's encoder/decoder round-trips, mirroring z80opt's
// inst.Catalog dump (pkg/inst/catalog.go) but for the x86-64 subset this
// backend actually emits.
var opcodeTable = []struct{ mnemonic, desc string }{
	{"ADD", "group-1 ALU: r/m32, r32 (01 /r) or r/m32, imm32 (81 /0)"},
	{"OR", "group-1 ALU: r/m32, r32 (09 /r) or r/m32, imm32 (81 /1)"},
	{"AND", "group-1 ALU: r/m32, r32 (21 /r) or r/m32, imm32 (81 /4)"},
	{"SUB", "group-1 ALU: r/m32, r32 (29 /r) or r/m32, imm32 (81 /5)"},
	{"XOR", "group-1 ALU: r/m32, r32 (31 /r) or r/m32, imm32 (81 /6)"},
	{"CMP", "group-1 ALU: r/m32, r32 (39 /r) or r/m32, imm32 (81 /7)"},
	{"MOV", "r/m32, r32 (89 /r) or r32, imm32 (B8+r)"},
	{"IMUL", "r32, r/m32 (0F AF /r)"},
	{"MUL", "group-3: r/m32 (F7 /4), result in EDX:EAX"},
	{"DIV", "group-3: r/m32 (F7 /6), dividend EDX:EAX"},
	{"IDIV", "group-3: r/m32 (F7 /7), dividend EDX:EAX"},
	{"NEG", "group-3: r/m32 (F7 /3)"},
	{"CDQ", "sign-extend EAX into EDX:EAX (99)"},
	{"JMP", "rel8 (EB) or rel32 (E9)"},
	{"Jcc", "rel8 (7x) or rel32 (0F 8x), cc in {E, NE, L, GE, LE, G}"},
	{"RET", "near return (C3)"},
}
