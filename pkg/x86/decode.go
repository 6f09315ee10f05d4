package x86

// Decoded is a minimal decode result: enough to assert that encoding then
// decoding preserves opcode identity for every mnemonic in the opcode
// table (spec §8.1/§8.2), not a full disassembler.
type Decoded struct {
	Mnemonic string
	Reg, RM  Reg
	HasImm   bool
	Imm      int32
	Len      int
}

var group1ByOpcodeExt = invertGroup1()
var group3ByExt = invertGroup3()
var ccByCode = invertCC()

func invertGroup1() map[byte]string {
	m := make(map[byte]string, len(group1Ext))
	for name, ext := range group1Ext {
		m[ext] = name
	}
	return m
}
func invertGroup3() map[byte]string {
	m := make(map[byte]string, len(group3Ext))
	for name, ext := range group3Ext {
		m[ext] = name
	}
	return m
}
func invertCC() map[byte]string {
	m := make(map[byte]string, len(ccCode))
	for name, code := range ccCode {
		m[code] = name
	}
	return m
}

// Decode reads one instruction from p, dispatched by opcode the same way
// Exec dispatches by inst.OpCode: a single switch over the recognized
// byte patterns this package's encoder ever produces.
func Decode(p []byte) Decoded {
	i := 0
	useRex, rexR, rexB := false, false, false
	if p[i] >= 0x40 && p[i] <= 0x4f {
		useRex = true
		rexR = p[i]&0x4 != 0
		rexB = p[i]&0x1 != 0
		i++
	}

	switch {
	case p[i] == 0xc3:
		return Decoded{Mnemonic: "RET", Len: i + 1}

	case p[i] == 0xeb:
		return Decoded{Mnemonic: "JMP", HasImm: true, Imm: int32(int8(p[i+1])), Len: i + 2}

	case p[i] == 0xe9:
		imm := decodeInt32(p[i+1:])
		return Decoded{Mnemonic: "JMP", HasImm: true, Imm: imm, Len: i + 5}

	case p[i] >= 0x70 && p[i] <= 0x7f:
		name := ccByCode[p[i]&0xf]
		return Decoded{Mnemonic: "J" + name, HasImm: true, Imm: int32(int8(p[i+1])), Len: i + 2}

	case p[i] == 0x0f && p[i+1] >= 0x80 && p[i+1] <= 0x8f:
		name := ccByCode[p[i+1]&0xf]
		imm := decodeInt32(p[i+2:])
		return Decoded{Mnemonic: "J" + name, HasImm: true, Imm: imm, Len: i + 6}

	case p[i] >= 0xb8 && p[i] <= 0xbf:
		dst := regFromLow3(p[i]&0x7, rexB)
		imm := decodeInt32(p[i+1:])
		return Decoded{Mnemonic: "MOV", RM: dst, HasImm: true, Imm: imm, Len: i + 5}

	case p[i] == 0x89:
		modrm := p[i+1]
		reg := regFromLow3((modrm>>3)&0x7, rexR)
		rm := regFromLow3(modrm&0x7, rexB)
		return Decoded{Mnemonic: "MOV", Reg: reg, RM: rm, Len: i + 2}

	case p[i] == 0xf7:
		modrm := p[i+1]
		rm := regFromLow3(modrm&0x7, rexB)
		name := group3ByExt[(modrm>>3)&0x7]
		return Decoded{Mnemonic: name, RM: rm, Len: i + 2}

	case p[i] == 0x99:
		return Decoded{Mnemonic: "CDQ", Len: i + 1}

	case p[i] == 0x0f && p[i+1] == 0xaf:
		modrm := p[i+2]
		reg := regFromLow3((modrm>>3)&0x7, rexR)
		rm := regFromLow3(modrm&0x7, rexB)
		return Decoded{Mnemonic: "IMUL", Reg: reg, RM: rm, Len: i + 3}

	case p[i] == 0x81:
		modrm := p[i+1]
		rm := regFromLow3(modrm&0x7, rexB)
		name := group1ByOpcodeExt[(modrm>>3)&0x7]
		imm := decodeInt32(p[i+2:])
		return Decoded{Mnemonic: name, RM: rm, HasImm: true, Imm: imm, Len: i + 6}

	case p[i]&0x1 == 1 && p[i]&0xc7 == 0x01:
		modrm := p[i+1]
		reg := regFromLow3((modrm>>3)&0x7, rexR)
		rm := regFromLow3(modrm&0x7, rexB)
		name := group1ByOpcodeExt[(p[i]>>3)&0x7]
		return Decoded{Mnemonic: name, Reg: reg, RM: rm, Len: i + 2}
	}

	_ = useRex
	return Decoded{Mnemonic: "?", Len: i + 1}
}

func regFromLow3(low3 byte, ext bool) Reg {
	if ext {
		return Reg(low3 | 0x8)
	}
	return Reg(low3)
}

func decodeInt32(p []byte) int32 {
	u := uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24
	return int32(u)
}
