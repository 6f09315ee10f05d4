package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ohmu-lang/x64backend/pkg/x86"
)

// regByName is the 32-bit GPR name table, used by both asm and disasm.
var regByName = map[string]x86.Reg{
	"EAX": x86.RAX, "ECX": x86.RCX, "EDX": x86.RDX, "EBX": x86.RBX,
	"ESP": x86.RSP, "EBP": x86.RBP, "ESI": x86.RSI, "EDI": x86.RDI,
	"R8D": x86.R8, "R9D": x86.R9, "R10D": x86.R10, "R11D": x86.R11,
	"R12D": x86.R12, "R13D": x86.R13, "R14D": x86.R14, "R15D": x86.R15,
}

var regName = func() map[x86.Reg]string {
	m := make(map[x86.Reg]string, len(regByName))
	for name, r := range regByName {
		m[r] = name
	}
	return m
}()

// assembleLine turns one line of text assembly ("ADD EAX, EDX",
// "MOV EAX, 5", "RET", "CDQ", "IMUL EAX, EBX") into an Instr, the same
// scope as z80opt's parseSingleInstruction: a flat instruction, no labels.
func assembleLine(line string) (x86.Instr, error) {
	line = strings.TrimSpace(line)
	fields := strings.SplitN(line, " ", 2)
	mnemonic := strings.ToUpper(fields[0])

	switch mnemonic {
	case "RET":
		return x86.Ret(), nil
	case "CDQ":
		return x86.Cdq(), nil
	}

	if len(fields) != 2 {
		return x86.Instr{}, fmt.Errorf("%q: missing operands", line)
	}
	operands := strings.Split(fields[1], ",")
	for i := range operands {
		operands[i] = strings.TrimSpace(operands[i])
	}

	switch mnemonic {
	case "ADD", "OR", "AND", "SUB", "XOR", "CMP":
		if len(operands) != 2 {
			return x86.Instr{}, fmt.Errorf("%q: %s needs two operands", line, mnemonic)
		}
		dst, err := parseReg(operands[0])
		if err != nil {
			return x86.Instr{}, err
		}
		if imm, ok := parseImm32(operands[1]); ok {
			return x86.AluImm32(mnemonic, dst, imm), nil
		}
		src, err := parseReg(operands[1])
		if err != nil {
			return x86.Instr{}, err
		}
		return x86.AluRR(mnemonic, dst, src), nil

	case "MOV":
		if len(operands) != 2 {
			return x86.Instr{}, fmt.Errorf("%q: MOV needs two operands", line)
		}
		dst, err := parseReg(operands[0])
		if err != nil {
			return x86.Instr{}, err
		}
		if imm, ok := parseImm32(operands[1]); ok {
			return x86.MovImm32(dst, imm), nil
		}
		src, err := parseReg(operands[1])
		if err != nil {
			return x86.Instr{}, err
		}
		return x86.MovRR(dst, src), nil

	case "IMUL":
		if len(operands) != 2 {
			return x86.Instr{}, fmt.Errorf("%q: IMUL needs two operands (dst, src)", line)
		}
		dst, err := parseReg(operands[0])
		if err != nil {
			return x86.Instr{}, err
		}
		src, err := parseReg(operands[1])
		if err != nil {
			return x86.Instr{}, err
		}
		return x86.Imul(dst, src), nil

	case "NEG", "MUL", "DIV", "IDIV":
		if len(operands) != 1 {
			return x86.Instr{}, fmt.Errorf("%q: %s needs one operand", line, mnemonic)
		}
		rm, err := parseReg(operands[0])
		if err != nil {
			return x86.Instr{}, err
		}
		return x86.Group3(mnemonic, rm), nil
	}

	return x86.Instr{}, fmt.Errorf("%q: unknown mnemonic %s", line, mnemonic)
}

func parseReg(s string) (x86.Reg, error) {
	r, ok := regByName[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown register %q", s)
	}
	return r, nil
}

func parseImm32(s string) (int32, bool) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, false
	}
	return int32(v), true
}
