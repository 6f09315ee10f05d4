// Command opcodegen writes pkg/x86/opcodes_gen.go from the declarative
// mnemonic tables below (spec §6.4). It is a build-time-only tool: its
// single committed output lives alongside the hand-written encoder, the
// same split the teacher keeps between pkg/inst's generated-looking
// Catalog table and the hand-written disassembly logic around it.
package main

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
)

// group1 entries are the classic ALU opcodes sharing one /digit extension
// and the {0x00,0x01,0x02,0x03} +ext*8 opcode family (AMD64 Vol.2 table
// A-1): reg/mem,reg32 is (ext<<3)|1, reg32,imm32 is 0x81 with ModRM.Reg=ext.
type group1Entry struct {
	Name string
	Ext  byte
}

var group1 = []group1Entry{
	{"ADD", 0},
	{"OR", 1},
	{"AND", 4},
	{"SUB", 5},
	{"XOR", 6},
	{"CMP", 7},
}

// group3 entries are the single-operand 0xF7 /digit forms (NEG/MUL/IMUL/
// DIV/IDIV); all but NEG implicitly read/write EAX:EDX per the AMD64 manual.
type group3Entry struct {
	Name string
	Ext  byte
}

var group3 = []group3Entry{
	{"NEG", 3},
	{"MUL", 4},
	{"IMUL", 5},
	{"DIV", 6},
	{"IDIV", 7},
}

// ccEntry is one Jcc condition-code mnemonic (AMD64 Vol.2 table A-5,
// restricted to the signed/equality comparisons pkg/lower's COMPARE event
// actually lowers, spec §4.2).
type ccEntry struct {
	Name string
	CC   byte
}

var conditionCodes = []ccEntry{
	{"E", 0x4},
	{"NE", 0x5},
	{"L", 0xC},
	{"GE", 0xD},
	{"LE", 0xE},
	{"G", 0xF},
}

func main() {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "// Code generated by internal/gen/opcodegen. DO NOT EDIT.")
	fmt.Fprintln(&buf, "")
	fmt.Fprintln(&buf, "package x86")
	fmt.Fprintln(&buf, "")
	fmt.Fprintln(&buf, "// group1Ext maps an ALU mnemonic to its group-1 /digit extension.")
	fmt.Fprintln(&buf, "var group1Ext = map[string]byte{")
	for _, g := range group1 {
		fmt.Fprintf(&buf, "\t%q: %#x,\n", g.Name, g.Ext)
	}
	fmt.Fprintln(&buf, "}")
	fmt.Fprintln(&buf, "")
	fmt.Fprintln(&buf, "// group3Ext maps a one-operand ALU mnemonic to its group-3 /digit extension.")
	fmt.Fprintln(&buf, "var group3Ext = map[string]byte{")
	for _, g := range group3 {
		fmt.Fprintf(&buf, "\t%q: %#x,\n", g.Name, g.Ext)
	}
	fmt.Fprintln(&buf, "}")
	fmt.Fprintln(&buf, "")
	fmt.Fprintln(&buf, "// ccCode maps a Jcc suffix to its AMD64 condition code.")
	fmt.Fprintln(&buf, "var ccCode = map[string]byte{")
	for _, c := range conditionCodes {
		fmt.Fprintf(&buf, "\t%q: %#x,\n", c.Name, c.CC)
	}
	fmt.Fprintln(&buf, "}")

	out, err := format.Source(buf.Bytes())
	if err != nil {
		fmt.Fprintln(os.Stderr, "opcodegen:", err)
		os.Exit(1)
	}
	if err := os.WriteFile("pkg/x86/opcodes_gen.go", out, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "opcodegen:", err)
		os.Exit(1)
	}
}
