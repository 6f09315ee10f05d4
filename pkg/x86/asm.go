package x86

import "github.com/ohmu-lang/x64backend/internal/assert"

// rexFor builds the minimal Instr prefix fields needed to address reg (the
// ModRM.Reg slot) and rm (the ModRM.RM slot), extending with REX.R/REX.B
// only when one of them is r8-r15.
func rexFor(reg, rm Reg) (useRex, rexR, rexB bool) {
	rexR, rexB = reg.Ext(), rm.Ext()
	return rexR || rexB, rexR, rexB
}

// AluRR builds "<mnemonic> dst, src" for a group-1 ALU mnemonic (ADD, OR,
// AND, SUB, XOR, CMP) over two 32-bit GPRs.
func AluRR(mnemonic string, dst, src Reg) Instr {
	ext, ok := group1Ext[mnemonic]
	assert.True(ok, "x86: unknown group-1 mnemonic %q", mnemonic)
	useRex, rexR, rexB := rexFor(src, dst)
	return Instr{
		Opcode:   ext<<3 | 1,
		UseRex:   useRex,
		RexR:     rexR,
		RexB:     rexB,
		HasModRM: true,
		ModRM:    ModRM{Mod: 3, Reg: src.Low3(), RM: dst.Low3()},
	}
}

// AluImm32 builds "<mnemonic> dst, imm32" for a group-1 ALU mnemonic.
func AluImm32(mnemonic string, dst Reg, imm int32) Instr {
	ext, ok := group1Ext[mnemonic]
	assert.True(ok, "x86: unknown group-1 mnemonic %q", mnemonic)
	useRex, _, rexB := rexFor(RAX, dst)
	return Instr{
		Opcode:   0x81,
		UseRex:   useRex,
		RexB:     rexB,
		HasModRM: true,
		ModRM:    ModRM{Mod: 3, Reg: ext, RM: dst.Low3()},
		HasImm:   true,
		ImmSize:  Imm32,
		Imm32:    imm,
	}
}

// Group3 builds a single-operand group-3 instruction (NEG, MUL, IMUL, DIV,
// IDIV) over a 32-bit GPR; MUL/DIV/IMUL/IDIV implicitly read/write EAX:EDX
// (spec §4.5 scenario 5's CLOBBER_LIST_EDX/REGISTER_HINT_EAX pairing is
// what made that implicit operand explicit earlier in the pipeline).
func Group3(mnemonic string, rm Reg) Instr {
	ext, ok := group3Ext[mnemonic]
	assert.True(ok, "x86: unknown group-3 mnemonic %q", mnemonic)
	useRex, _, rexB := rexFor(RAX, rm)
	return Instr{
		Opcode:   0xf7,
		UseRex:   useRex,
		RexB:     rexB,
		HasModRM: true,
		ModRM:    ModRM{Mod: 3, Reg: ext, RM: rm.Low3()},
	}
}

// Imul builds the two-operand "IMUL dst, src" form (0F AF /r), which reads
// dst:src and writes its full product's low 32 bits into dst — unlike
// Group3's one-operand MUL/IMUL, it has no implicit EAX:EDX operand.
func Imul(dst, src Reg) Instr {
	useRex, rexR, rexB := rexFor(dst, src)
	return Instr{
		Opcode:   0xaf,
		CodeMap:  Map0F,
		UseRex:   useRex,
		RexR:     rexR,
		RexB:     rexB,
		HasModRM: true,
		ModRM:    ModRM{Mod: 3, Reg: dst.Low3(), RM: src.Low3()},
	}
}

// MovRR builds "MOV dst, src" over two 32-bit GPRs.
func MovRR(dst, src Reg) Instr {
	useRex, rexR, rexB := rexFor(src, dst)
	return Instr{
		Opcode:   0x89,
		UseRex:   useRex,
		RexR:     rexR,
		RexB:     rexB,
		HasModRM: true,
		ModRM:    ModRM{Mod: 3, Reg: src.Low3(), RM: dst.Low3()},
	}
}

// MovImm32 builds "MOV dst, imm32" (the B8+r short form, no ModRM).
func MovImm32(dst Reg, imm int32) Instr {
	useRex, _, rexB := rexFor(RAX, dst)
	return Instr{
		Opcode:  0xb8 + dst.Low3(),
		UseRex:  useRex,
		RexB:    rexB,
		HasImm:  true,
		ImmSize: Imm32,
		Imm32:   imm,
	}
}

// Ret builds a near RET.
func Ret() Instr { return Instr{Opcode: 0xc3} }

// Cdq sign-extends EAX into EDX:EAX, the operand IDIV needs ahead of it.
func Cdq() Instr { return Instr{Opcode: 0x99} }

// relKind distinguishes a jump's short (rel8) and near (rel32) forms, used
// by the Builder's relaxation pass (spec §4.7).
type relKind uint8

const (
	relJmp relKind = iota
	relJcc
)

// jmpRel8/jmpRel32 and jccRel8/jccRel32 build the two encodings of an
// unconditional or conditional jump; the displacement travels in Imm32 and
// is filled in later by the Builder once the target offset is known (spec
// §4.7).
func jmpRel8(disp int32) Instr  { return Instr{Opcode: 0xeb, HasImm: true, ImmSize: Imm8, Imm32: disp} }
func jmpRel32(disp int32) Instr { return Instr{Opcode: 0xe9, HasImm: true, ImmSize: Imm32, Imm32: disp} }

func jccRel8(cc string, disp int32) Instr {
	code, ok := ccCode[cc]
	assert.True(ok, "x86: unknown condition code %q", cc)
	return Instr{Opcode: 0x70 | code, HasImm: true, ImmSize: Imm8, Imm32: disp}
}

func jccRel32(cc string, disp int32) Instr {
	code, ok := ccCode[cc]
	assert.True(ok, "x86: unknown condition code %q", cc)
	return Instr{Opcode: 0x80 | code, CodeMap: Map0F, HasImm: true, ImmSize: Imm32, Imm32: disp}
}
