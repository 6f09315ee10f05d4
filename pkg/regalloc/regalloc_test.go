package regalloc

import (
	"testing"

	"github.com/ohmu-lang/x64backend/pkg/events"
)

// TestLinkCopiesFoldsIntoSource mirrors spec §4.5 step 1: a COPY directly
// preceded by a live use folds into that use's target, muting the use.
func TestLinkCopiesFoldsIntoSource(t *testing.T) {
	s := events.NewStream(4)
	s.Emit(events.VALUE, 0)      // 0: source
	s.Emit(events.LAST_USE, 0)   // 1
	s.Emit(events.COPY, 0)       // 2

	LinkCopies(s)

	if s.Code[1] != events.MUTED_USE {
		t.Errorf("Code[1] = %s, want MUTED_USE", s.Code[1])
	}
	if s.Data[2] != 0 {
		t.Errorf("Data[2] = %d, want 0 (folded to source)", s.Data[2])
	}
}

// TestKeyCompressionChainsThroughCopies checks the chained-copy fixed
// point, and that a use's data becomes the canonical key rather than the
// immediate (possibly non-canonical) target.
func TestKeyCompressionChainsThroughCopies(t *testing.T) {
	s := events.NewStream(8)
	s.Emit(events.VALUE, 0) // 0: canonical key
	s.Emit(events.COPY, 0)  // 1: -> 0
	s.Emit(events.COPY, 1)  // 2: -> 1 -> 0
	s.Emit(events.USE, 2)   // 3: use of 2

	KeyCompression(s)

	if s.Data[1] != 0 || s.Data[2] != 0 {
		t.Errorf("copy chain did not compress to 0: Data[1]=%d Data[2]=%d", s.Data[1], s.Data[2])
	}
	if s.Data[3] != 0 {
		t.Errorf("Data[3] = %d, want 0 (use repointed at canonical key)", s.Data[3])
	}
}

// TestAllocateDivideAssignsFixedRegisters reproduces the register-hint half
// of spec §4.5 scenario 5: an IDIV's quotient must land in EAX.
func TestAllocateDivideAssignsFixedRegisters(t *testing.T) {
	s := events.NewStream(16)
	s.Emit(events.NOP, 0)             // 0: header
	s.Emit(events.VALUE, 0)           // 1: dividend
	s.Emit(events.VALUE, 0)           // 2: divisor
	s.Emit(events.LAST_USE, 1)        // 3
	s.Emit(events.LAST_USE, 2)        // 4
	s.Emit(events.CLOBBER_LIST_EDX, 0) // 5
	s.Emit(events.REGISTER_HINT_EAX, 7) // 6: targets event 7
	s.Emit(events.IDIV, 0)            // 7: quotient

	Allocate(s)

	if s.Data[7] != uint32(events.RegEAX) {
		t.Errorf("IDIV result register = %#x, want RegEAX (%#x)", s.Data[7], events.RegEAX)
	}
}

// TestAllocateResolvesUnreferencedEntryPhi reproduces the defect spec
// §8.4 scenario 1 depends on not happening: a genuine entry-level PHI,
// still carrying the lowerer's data-0 sentinel and never written by any
// JOIN_COPY, must come out of Allocate with its own register rather than
// Key()-ing through the sentinel to event 0's block header.
func TestAllocateResolvesUnreferencedEntryPhi(t *testing.T) {
	s := events.NewStream(8)
	s.Emit(events.NOP, 0)          // 0: header
	aIdx := s.Emit(events.PHI, 0)  // 1: a, unresolved parameter phi
	bIdx := s.Emit(events.PHI, 0)  // 2: b, unresolved parameter phi
	s.Emit(events.LAST_USE, uint32(aIdx)) // 3
	s.Emit(events.LAST_USE, uint32(bIdx)) // 4
	s.Emit(events.ADD, 0)          // 5: a + b

	Allocate(s)

	aReg, aOK := x86Mask(s.Data[aIdx])
	bReg, bOK := x86Mask(s.Data[bIdx])
	if !aOK || !bOK {
		t.Fatalf("unresolved entry phi got no register: Data[a]=%#x Data[b]=%#x", s.Data[aIdx], s.Data[bIdx])
	}
	if aReg == bReg {
		t.Errorf("a and b simultaneously live but share register %#x", aReg)
	}
	if s.Data[aIdx] != uint32(events.RegEAX) || s.Data[bIdx] != uint32(events.RegEDX) {
		t.Errorf("argument binding = (%#x, %#x), want (RegEAX, RegEDX) = (%#x, %#x)",
			s.Data[aIdx], s.Data[bIdx], events.RegEAX, events.RegEDX)
	}
}

// x86Mask reports whether mask has exactly one bit set (a resolved
// register, as opposed to the 0 a never-allocated value would still hold).
func x86Mask(mask uint32) (uint32, bool) {
	if mask == 0 || mask&(mask-1) != 0 {
		return 0, false
	}
	return mask, true
}

// TestAllocateConflictingLiveRangesGetDistinctRegisters checks that two
// values simultaneously live are never handed the same lowest-bit choice.
func TestAllocateConflictingLiveRangesGetDistinctRegisters(t *testing.T) {
	s := events.NewStream(16)
	s.Emit(events.NOP, 0)      // 0: header
	s.Emit(events.VALUE, 0)    // 1: a
	s.Emit(events.VALUE, 0)    // 2: b, live at the same time as a
	s.Emit(events.LAST_USE, 1) // 3
	s.Emit(events.LAST_USE, 2) // 4
	s.Emit(events.ADD, 0)      // 5: a + b

	Allocate(s)

	if s.Data[1] == s.Data[2] {
		t.Errorf("conflicting values a (event 1) and b (event 2) both assigned %#x", s.Data[1])
	}
}
