// Package x86 encodes Instr descriptors into x86-64 machine code (spec
// §3.3, §4.6) and assembles a sequence of them through a Builder with
// optional jump relaxation (§4.7).
package x86

// Segment is the legacy segment-override prefix (spec §6.3).
type Segment uint8

const (
	SegNone Segment = iota
	segReserved
	SegFS
	SegGS
)

// segByte is the emitted prefix byte for a segment override: FS=2^0x66=
// 0x64, GS=3^0x66=0x65 (original_source/src/backend/x64builder/instr.h).
func segByte(s Segment) byte { return byte(s) ^ 0x66 }

// LockRep is the legacy lock/rep prefix (spec §6.3).
type LockRep uint8

const (
	LockRepNone LockRep = iota
	Lock
	RepZ
	RepNZ
)

func lockRepByte(l LockRep) byte { return byte(l) ^ 0xf1 }

// CodeMap selects the two-byte-opcode escape map (spec §6.3).
type CodeMap uint8

const (
	MapNone CodeMap = iota
	Map0F
	Map0F38
	Map0F3A
)

// ImmSize is the packed width selector for an instruction's immediate
// operand: 0 => 8 bits, 1 => 16, 2 => 32, 3 => 64 (spec §3.3).
type ImmSize uint8

const (
	Imm8 ImmSize = iota
	Imm16
	Imm32
	Imm64
)

// ModRM is the decoded mod/reg/rm triple (spec §6.3).
type ModRM struct {
	Mod byte // 0-3
	Reg byte // 0-7 (register or opcode extension)
	RM  byte // 0-7
}

func (m ModRM) byte() byte { return m.Mod<<6 | (m.Reg&7)<<3 | (m.RM & 7) }

// SIB is the decoded scale/index/base triple (spec §6.3).
type SIB struct {
	Scale byte // 0-3 (log2 of the scale factor)
	Index byte // 0-7
	Base  byte // 0-7
}

func (s SIB) byte() byte { return s.Scale<<6 | (s.Index&7)<<3 | (s.Base & 7) }

// Instr is the 128-bit staging record of spec §3.3, translated from the
// original's bit-packed union (original_source/src/backend/x64builder/
// instr.h) into named fields — Go has no bitfield unions, so the packed
// byte layout becomes explicit struct fields instead, while Encode below
// follows the original's control flow and byte arithmetic (segment^0x66,
// lock_rep^0xf1, disp8/disp32 selection, imm_size branching); the REX and
// VEX bytes are built from the named fields with explicit bit formulas.
type Instr struct {
	Invalid bool
	RawData bool // when Invalid, emit Imm32's low byte as a literal data byte instead of a no-op

	Opcode    byte
	CodeMap   CodeMap
	HasModRM  bool
	HasSIB    bool
	FixedBase bool // force a 32-bit displacement even when it would fit in 8 bits or be omitted
	ForceDisp bool // force a displacement to be emitted even when zero
	RipAddr   bool // relocated at Builder.Encode time; Encode itself just writes Disp32 as given

	HasImm  bool
	ImmSize ImmSize

	Segment    Segment
	LockRep    LockRep
	SizePrefix bool // 0x66 operand-size override
	AddrPrefix bool // 0x67 address-size override

	UseRex bool
	RexW   bool
	RexR   bool
	RexX   bool
	RexB   bool

	UseVex        bool
	LongVex       bool // 3-byte (0xC4) form vs. 2-byte (0xC5)
	VexMap        CodeMap
	VexSimdPrefix byte // 0 none, 1 0x66, 2 0xF3, 3 0xF2
	VexL          bool
	VexVVVV       byte // 4-bit NDS/NDD register, already inverted form not required here
	VexW          bool

	ModRM ModRM
	SIB   SIB

	Imm32  int32
	Disp32 int32
}

func btoi(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// rexByte packs W/R/X/B into the 0x40-marked REX byte (spec §6.3's
// "REX base" row).
func (ins Instr) rexByte() byte {
	return 0x40 | btoi(ins.RexW)<<3 | btoi(ins.RexR)<<2 | btoi(ins.RexX)<<1 | btoi(ins.RexB)
}

// hasLegacyPrefix reports whether any byte-emitting prefix precedes the
// opcode (spec §4.6 step 2's "if any legacy prefix present").
func (ins Instr) hasLegacyPrefix() bool {
	return ins.Segment != SegNone || ins.LockRep != LockRepNone || ins.SizePrefix || ins.AddrPrefix || ins.UseVex || ins.UseRex
}

// Encode writes ins's byte sequence to p, returning the new cursor (spec
// §4.6). An invalid, non-raw-data Instr is a no-op placeholder;
// invalid+RawData re-purposes Imm32's low byte as one literal output byte.
func (ins Instr) Encode(p []byte) []byte {
	if ins.Invalid {
		if !ins.RawData {
			return p
		}
		return encodeImm(p, ins)
	}

	if ins.hasLegacyPrefix() {
		if ins.Segment != SegNone {
			p = append(p, segByte(ins.Segment))
		}
		if ins.LockRep != LockRepNone {
			p = append(p, lockRepByte(ins.LockRep))
		}
		if ins.SizePrefix {
			p = append(p, 0x66)
		}
		if ins.AddrPrefix {
			p = append(p, 0x67)
		}

		if ins.UseVex {
			rxb := btoi(ins.RexR)<<2 | btoi(ins.RexX)<<1 | btoi(ins.RexB)
			if !ins.LongVex {
				p = append(p, 0xc5)
				r := btoi(ins.RexR) ^ 1
				vvvv := (^ins.VexVVVV) & 0xf
				p = append(p, r<<7|vvvv<<3|btoi(ins.VexL)<<2|ins.VexSimdPrefix)
				goto opcode
			}
			p = append(p, 0xc4)
			rInv, xInv, bInv := (rxb>>2)^1&1, (rxb>>1)&1^1, rxb&1^1
			p = append(p, rInv<<7|xInv<<6|bInv<<5|byte(ins.VexMap))
			vvvv := (^ins.VexVVVV) & 0xf
			p = append(p, btoi(ins.VexW)<<7|vvvv<<3|btoi(ins.VexL)<<2|ins.VexSimdPrefix)
			goto opcode
		}
		if ins.UseRex {
			p = append(p, ins.rexByte())
		}
	}

	if ins.CodeMap != MapNone {
		p = append(p, 0x0f)
		switch ins.CodeMap {
		case Map0F38:
			p = append(p, 0x38)
		case Map0F3A:
			p = append(p, 0x3a)
		}
	}

opcode:
	p = append(p, ins.Opcode)
	if !ins.HasModRM {
		return encodeImm(p, ins)
	}

	modIdx := len(p)
	p = append(p, ins.ModRM.byte())
	if ins.ModRM.Mod == 3 {
		return encodeImm(p, ins)
	}
	if ins.HasSIB {
		p = append(p, ins.SIB.byte())
	}
	if ins.FixedBase {
		p = appendInt32(p, ins.Disp32)
		return encodeImm(p, ins)
	}
	if ins.Disp32 == 0 && !ins.ForceDisp {
		return encodeImm(p, ins)
	}
	if int32(int8(ins.Disp32)) == ins.Disp32 {
		p[modIdx] |= 0x40
		p = append(p, byte(ins.Disp32))
		return encodeImm(p, ins)
	}
	p[modIdx] |= 0x80
	p = appendInt32(p, ins.Disp32)
	return encodeImm(p, ins)
}

func encodeImm(p []byte, ins Instr) []byte {
	if !ins.HasImm {
		return p
	}
	switch ins.ImmSize {
	case Imm8:
		p = append(p, byte(ins.Imm32))
	case Imm16:
		v := uint16(ins.Imm32)
		p = append(p, byte(v), byte(v>>8))
	case Imm32:
		p = appendInt32(p, ins.Imm32)
	case Imm64:
		// spec §4.6 step 8: the extra 4 bytes for a 64-bit immediate are
		// packed into the Instr's displacement field.
		p = appendInt32(p, ins.Imm32)
		p = appendInt32(p, ins.Disp32)
	}
	return p
}

func appendInt32(p []byte, v int32) []byte {
	u := uint32(v)
	return append(p, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
}
