package events

import "testing"

func TestLastUseDetectionPromotesUniqueUse(t *testing.T) {
	s := NewStream(4)
	s.Emit(NOP, 0)         // 0: def
	s.Emit(VALUE, 0)       // 1
	s.Emit(LAST_USE, 0)    // 2: the only use of 0

	LastUseDetection(s)

	if s.Code[2] != ONLY_USE {
		t.Errorf("Code[2] = %s, want ONLY_USE", s.Code[2])
	}
}

func TestLastUseDetectionDowngradesDuplicate(t *testing.T) {
	s := NewStream(4)
	s.Emit(NOP, 0)         // 0: def
	s.Emit(LAST_USE, 0)    // 1: first "last" use of 0
	s.Emit(LAST_USE, 0)    // 2: second "last" use of 0

	LastUseDetection(s)

	if s.Code[1] != USE {
		t.Errorf("Code[1] = %s, want USE (downgraded)", s.Code[1])
	}
	if s.Code[2] != USE {
		t.Errorf("Code[2] = %s, want USE (downgraded)", s.Code[2])
	}
}

func TestPhiEliminationPicksMinimumIncoming(t *testing.T) {
	s := NewStream(8)
	s.Emit(NOP, 0)                                    // 0
	s.Emit(IMMEDIATE_BYTES, 10)                        // 1: arg from branch A (smaller index)
	s.Emit(IMMEDIATE_BYTES, 20)                        // 2: arg from branch B
	s.Emit(NOP, 0)                                     // 3: join header
	phiIdx := s.Emit(PHI, 0)                           // 4: phi, target first event = 3
	s.Emit(LAST_USE, 2)                                // 5: use of branch-B arg before its JOIN_COPY
	s.Emit(JOIN_COPY, PackJoinCopyTarget(3, 0))         // 6
	s.Emit(LAST_USE, 1)                                // 7: use of branch-A arg before its JOIN_COPY
	s.Emit(JOIN_COPY, PackJoinCopyTarget(3, 0))         // 8

	PhiElimination(s)

	if got := s.Data[phiIdx]; got != 1 {
		t.Errorf("phi data = %d, want 1 (the smaller incoming index)", got)
	}
}

// TestPhiEliminationSelfKeysUnreferencedPhi covers a phi no JOIN_COPY ever
// writes to (a function parameter, not a merge): it must come out
// self-keyed, not collapsed to event 0's block header.
func TestPhiEliminationSelfKeysUnreferencedPhi(t *testing.T) {
	s := NewStream(4)
	s.Emit(NOP, 0)         // 0: header
	phiIdx := s.Emit(PHI, 0) // 1: parameter phi, no incoming edges

	PhiElimination(s)

	if got := s.Data[phiIdx]; got != uint32(phiIdx) {
		t.Errorf("phi data = %d, want %d (self-keyed)", got, phiIdx)
	}
}
