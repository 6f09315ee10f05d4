package x86

import "testing"

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestAddEaxEdxRet reproduces spec §8.4 scenario 1's exact expected bytes.
func TestAddEaxEdxRet(t *testing.T) {
	var p []byte
	p = AluRR("ADD", RAX, RDX).Encode(p)
	p = Ret().Encode(p)
	want := []byte{0x01, 0xd0, 0xc3}
	if !bytesEqual(p, want) {
		t.Errorf("got % x, want % x", p, want)
	}
}

// TestGroup1ExtendedRegistersGetRex checks REX.R/REX.B emission when an
// operand is r8-r15.
func TestGroup1ExtendedRegistersGetRex(t *testing.T) {
	p := AluRR("ADD", R8, RCX).Encode(nil)
	// REX.B (dst=R8 is in rm slot) -> 0x41, opcode 0x01, modrm c8 (mod=3 reg=1 rm=0)
	want := []byte{0x41, 0x01, 0xc8}
	if !bytesEqual(p, want) {
		t.Errorf("got % x, want % x", p, want)
	}
}

// TestAluImm32 checks the group-1 reg,imm32 form (0x81 /ext).
func TestAluImm32(t *testing.T) {
	p := AluImm32("SUB", RBX, 100).Encode(nil)
	want := []byte{0x81, 0xeb, 0x64, 0x00, 0x00, 0x00}
	if !bytesEqual(p, want) {
		t.Errorf("got % x, want % x", p, want)
	}
}

// TestGroup3Idiv checks the one-operand group-3 form IDIV uses (spec
// §4.5 scenario 5's fixed EAX/EDX pairing lowers to this instruction).
func TestGroup3Idiv(t *testing.T) {
	p := Group3("IDIV", RCX).Encode(nil)
	want := []byte{0xf7, 0xf9}
	if !bytesEqual(p, want) {
		t.Errorf("got % x, want % x", p, want)
	}
}

// TestMovImm32 checks the B8+r short form (no ModRM).
func TestMovImm32(t *testing.T) {
	p := MovImm32(RCX, -1).Encode(nil)
	want := []byte{0xb9, 0xff, 0xff, 0xff, 0xff}
	if !bytesEqual(p, want) {
		t.Errorf("got % x, want % x", p, want)
	}
}

// TestModRMMemoryDisplacementSelection exercises the disp8-vs-disp32
// selection logic directly on a HasModRM, non-register-direct Instr.
func TestModRMMemoryDisplacementSelection(t *testing.T) {
	small := Instr{Opcode: 0x8b, HasModRM: true, ModRM: ModRM{Mod: 0, Reg: 0, RM: 1}, Disp32: -16}
	p := small.Encode(nil)
	want := []byte{0x8b, 0x41, 0xf0}
	if !bytesEqual(p, want) {
		t.Errorf("disp8: got % x, want % x", p, want)
	}

	large := Instr{Opcode: 0x8b, HasModRM: true, ModRM: ModRM{Mod: 0, Reg: 0, RM: 1}, Disp32: 1000}
	p2 := large.Encode(nil)
	if p2[1]&0xc0 != 0x80 {
		t.Errorf("expected mod=10 (disp32) for out-of-int8-range displacement, got modrm=%#x", p2[1])
	}
	if len(p2) != 6 {
		t.Errorf("expected opcode+modrm+4-byte disp = 6 bytes, got %d", len(p2))
	}
}

// TestInvalidRawDataEmitsLiteralByte covers the placeholder-vs-raw-byte
// distinction an invalid Instr can carry.
func TestInvalidRawDataEmitsLiteralByte(t *testing.T) {
	placeholder := Instr{Invalid: true}
	if p := placeholder.Encode([]byte{0xaa}); len(p) != 1 {
		t.Errorf("invalid placeholder should emit nothing, got % x", p)
	}

	raw := Instr{Invalid: true, RawData: true, HasImm: true, ImmSize: Imm8, Imm32: 0x90}
	p := raw.Encode(nil)
	if !bytesEqual(p, []byte{0x90}) {
		t.Errorf("got % x, want [90]", p)
	}
}
