package codegen

import (
	"testing"

	"github.com/ohmu-lang/x64backend/pkg/events"
	"github.com/ohmu-lang/x64backend/pkg/regalloc"
	"github.com/ohmu-lang/x64backend/pkg/x86"
)

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

// TestGenerateSingleAdd reproduces spec §8.4 scenario 1's exact expected
// bytes, end to end through the real allocator: a and b are genuine
// entry-level PHI events with the lowerer's data-0 sentinel, left
// unresolved by any JOIN_COPY. regalloc.Allocate's argument-binding step
// (spec §8.4's "arg-move to EAX/EDX... omitted for brevity") is what puts
// them in EAX/EDX, not a manual pin.
func TestGenerateSingleAdd(t *testing.T) {
	s := events.NewStream(8)
	s.Emit(events.NOP, 0)         // 0: header
	aIdx := s.Emit(events.PHI, 0) // 1: a, unresolved entry phi (function parameter)
	bIdx := s.Emit(events.PHI, 0) // 2: b, same
	s.Emit(events.LAST_USE, uint32(aIdx))                                                       // 3
	s.Emit(events.LAST_USE, uint32(bIdx))                                                       // 4
	addIdx := s.Emit(events.ADD, uint32(events.PackArith(events.NewTypeDesc(32, events.Signed, 1)))) // 5
	s.Emit(events.RET, uint32(addIdx))                                                          // 6

	regalloc.Allocate(s)

	out, err := Generate(s, false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []byte{0x01, 0xd0, 0xc3} // ADD EAX, EDX; RET
	if !bytesEqual(out, want) {
		t.Errorf("got % x, want % x", out, want)
	}
}

// TestGenerateRetVoid covers the void-return path.
func TestGenerateRetVoid(t *testing.T) {
	s := events.NewStream(2)
	s.Emit(events.NOP, 0)
	s.Emit(events.RET, ^uint32(0))

	regalloc.Allocate(s)
	out, err := Generate(s, false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bytesEqual(out, []byte{0xc3}) {
		t.Errorf("got % x, want [c3]", out)
	}
}

// TestGenerateConditionalBranch reproduces spec §8.4 scenario 2's shape: a
// COMPARE feeding a BRANCH to an else target, relaxed to the short JE form.
func TestGenerateConditionalBranch(t *testing.T) {
	s := events.NewStream(16)
	s.Emit(events.NOP, 0)   // 0: header
	s.Emit(events.VALUE, 0) // 1: a
	s.Emit(events.VALUE, 0) // 2: literal 0
	s.Emit(events.LAST_USE, 1) // 3
	s.Emit(events.LAST_USE, 2) // 4
	compareIdx := s.Emit(events.COMPARE, events.PackCompare(events.NewTypeDesc(32, events.Signed, 1), events.CmpEq)) // 5
	s.Emit(events.LAST_USE, uint32(compareIdx)) // 6
	branchIdx := s.Emit(events.BRANCH, 0) // 7: target patched below
	s.Emit(events.BRANCH_TARGET, 0)       // 8: then block
	s.Emit(events.RET, 0xffffffff)        // 9: then: return (void, for simplicity)
	elseTarget := s.Emit(events.NOP, 0)   // 10: else block header
	s.Data[branchIdx] = uint32(elseTarget)
	s.Orig[branchIdx] = uint32(elseTarget)
	s.Emit(events.RET, 0xffffffff) // 11: else: return

	regalloc.Allocate(s)

	out, err := Generate(s, true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// ... JE rel8 ... somewhere in the stream; find it.
	found := false
	for i := 0; i+1 < len(out); i++ {
		if out[i] == 0x74 {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected a short JE (0x74) in % x", out)
	}
}

// TestGeneratePhiMergeEmitsMovWhenNotCoalesced reproduces spec §8.4
// scenario 4: a JOIN_COPY reconciling an incoming argument's register with
// the phi's.
func TestGeneratePhiMergeEmitsMovWhenNotCoalesced(t *testing.T) {
	s := events.NewStream(16)
	s.Emit(events.NOP, 0)       // 0: header
	s.Emit(events.VALUE, 0)     // 1: incoming arg value
	s.Emit(events.JOIN_HEADER, 0) // 2: join block header
	phiIdx := s.Emit(events.PHI, 0) // 3: phi, resolved by the JOIN_COPY below

	s.Emit(events.LAST_USE, 1) // 4: use of the incoming arg
	jc := s.Emit(events.JOIN_COPY, events.PackJoinCopyTarget(2, 0)) // 5
	_ = jc
	s.Emit(events.LAST_USE, uint32(phiIdx)) // 6: phi consumed by the return
	s.Emit(events.RET, uint32(phiIdx))      // 7

	regalloc.Allocate(s)

	// Force a mismatch so the MOV path is exercised: give the incoming
	// value and the phi different registers directly.
	argMask := s.Data[1]
	phiMask := s.Data[phiIdx]
	if argMask == phiMask {
		// allocator coalesced them via the goal; flip the phi's register
		// to the next bit so the reconciling MOV is actually exercised.
		s.Data[phiIdx] = phiMask << 1
	}

	out, err := Generate(s, false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected nonempty output")
	}
	if d := x86.Decode(out); d.Mnemonic != "MOV" {
		t.Errorf("first instruction = %s, want MOV (JOIN_COPY reconciliation)", d.Mnemonic)
	}
}

// TestGenerateDivide reproduces spec §8.4 scenario 5's EAX/EDX fixup shape.
func TestGenerateDivide(t *testing.T) {
	s := events.NewStream(16)
	s.Emit(events.NOP, 0)      // 0: header
	s.Emit(events.VALUE, 0)    // 1: dividend
	s.Emit(events.VALUE, 0)    // 2: divisor
	s.Emit(events.LAST_USE, 1) // 3
	s.Emit(events.LAST_USE, 2) // 4
	s.Emit(events.CLOBBER_LIST_EDX, 0)   // 5
	s.Emit(events.REGISTER_HINT_EAX, 7)  // 6: targets event 7
	idivIdx := s.Emit(events.IDIV, uint32(events.PackArith(events.NewTypeDesc(32, events.Signed, 1)))) // 7
	s.Emit(events.RET, uint32(idivIdx)) // 8

	regalloc.Allocate(s)
	if s.Data[idivIdx] != uint32(events.RegEAX) {
		t.Fatalf("setup: IDIV result = %#x, want RegEAX", s.Data[idivIdx])
	}
	// Pin the dividend away from EAX so the MOV-into-EAX fixup is always
	// exercised regardless of which free register the allocator happened
	// to hand it; the divisor stays off EAX because it is live alongside
	// the dividend, which the allocator placed in EAX.
	s.Data[1] = uint32(x86.Mask(x86.RBX))

	out, err := Generate(s, false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	d := x86.Decode(out)
	if d.Mnemonic != "MOV" {
		t.Errorf("first instruction = %s, want MOV (dividend into EAX)", d.Mnemonic)
	}

	foundIdiv := false
	for i := 0; i < len(out); {
		d := x86.Decode(out[i:])
		if d.Mnemonic == "IDIV" {
			foundIdiv = true
		}
		if d.Len == 0 {
			break
		}
		i += d.Len
	}
	if !foundIdiv {
		t.Errorf("expected an IDIV in % x", out)
	}
}
