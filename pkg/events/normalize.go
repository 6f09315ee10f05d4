package events

// Normalize runs the three in-place passes of spec §4.3 over s, in the
// order the spec lists them. Commute's precondition (a preceding
// (USE, MUTED_USE) pair) is only ever satisfied once the register
// allocator's copy-linking step (spec §4.5 step 1) has run, so callers
// that want commuting to actually fire should call events.Commute again
// after pkg/regalloc.LinkCopies — see DESIGN.md.
//
// Normalize is idempotent: a second run finds no LAST_USE left for
// LastUseDetection, a pair Commute already swapped no longer matches its
// (USE, MUTED_USE) pattern, and PhiElimination recomputes the same keys.
func Normalize(s *Stream) {
	LastUseDetection(s)
	Commute(s)
	PhiElimination(s)
}

// LastUseDetection is spec §4.3 step 1: for each LAST_USE(t), walk the
// live range back toward t; a prior use of the same target found outside
// a sibling scope (a LAST_USE, or one this pass already rewrote to
// ONLY_USE or USE) means neither one is really last, so both downgrade to
// USE; otherwise this one is the unique use and is promoted to ONLY_USE.
func LastUseDetection(s *Stream) {
	for i := 0; i < s.Len(); i++ {
		if s.Code[i] != LAST_USE {
			continue
		}
		target := int(s.Data[i])
		lr := NewLiveRange(s, target, i)
		found := false
		for {
			j, ok := lr.Next()
			if !ok {
				break
			}
			if !lr.NotSkipping() {
				continue
			}
			if (s.Code[j] == LAST_USE || s.Code[j] == ONLY_USE || s.Code[j] == USE) && int(s.Data[j]) == target {
				s.Code[j] = USE
				s.Code[i] = USE
				found = true
				break
			}
		}
		if !found {
			s.Code[i] = ONLY_USE
		}
	}
}

// Commute is spec §4.3 step 2: for each commutative op whose immediate
// preceding pair is (USE, MUTED_USE), swap them so the destructively
// consumed operand sits in the register-friendly slot (the one an x86
// two-address instruction overwrites).
func Commute(s *Stream) {
	for i := 2; i < s.Len(); i++ {
		if !s.Code[i].IsCommutative() {
			continue
		}
		if s.Code[i-2] == USE && s.Code[i-1] == MUTED_USE {
			s.Code[i-2], s.Code[i-1] = s.Code[i-1], s.Code[i-2]
			s.Data[i-2], s.Data[i-1] = s.Data[i-1], s.Data[i-2]
		}
	}
}

// PackJoinCopyTarget encodes a JOIN_COPY's data: the target phi's block's
// FirstEvent and its slot among that block's arguments. PHI events follow
// directly after a block's header, so the phi's own absolute event index
// is targetFirstEvent + 1 + slot. This is a concrete choice where spec.md
// leaves the "slot in target's phi list" encoding implementation-defined
// (spec §3.2); packing the block identity alongside the slot lets
// PhiElimination resolve the target without consulting the CFG again.
func PackJoinCopyTarget(targetFirstEvent, slot int) uint32 {
	return uint32(targetFirstEvent)<<8 | uint32(slot&0xFF)
}

func unpackJoinCopyTarget(data uint32) (phiIndex int) {
	targetFirst := int(data >> 8)
	slot := int(data & 0xFF)
	return targetFirst + 1 + slot
}

// JoinCopyPhiIndex resolves a JOIN_COPY event's absolute phi event index
// from its packed data, for pkg/regalloc's goal collection (spec §4.5 step
// 3's "for each JOIN_COPY ... record (min(e.data, use.data), max(...))" —
// e.data here is this resolved phi index, not the raw packed word).
func JoinCopyPhiIndex(data uint32) int { return unpackJoinCopyTarget(data) }

// PhiElimination is spec §4.3 step 3: for each JOIN_COPY with a live
// preceding use, lower the phi's data to the minimum of its incoming
// argument indices; then collapse every PHI through its data chain to its
// fixed point (spec §3.2: "PHI data initially 0... updated to the minimum
// of incoming JOIN_COPY argument indices").
//
// A PHI no JOIN_COPY ever writes to has zero incoming edges — a function
// parameter, not a merge — and event 0 is always a block header, never a
// real predecessor value, so "still 0 after the loop above" is an
// unambiguous signal rather than a legitimate minimum index. Such a phi is
// itself the defining value (pkg/regalloc's worklist needs it self-keyed
// to pick it up at all); collapsing it to event 0 the way a resolved phi
// collapses to its minimum incoming index would instead key it to that
// block header and leave it without a register.
func PhiElimination(s *Stream) {
	for i := 0; i < s.Len(); i++ {
		if s.Code[i] != JOIN_COPY {
			continue
		}
		if i == 0 || !s.Code[i-1].IsUse() {
			continue // no live preceding use: malformed, skip defensively
		}
		phiIdx := unpackJoinCopyTarget(s.Data[i])
		argIdx := s.Data[i-1]
		if s.Data[phiIdx] == 0 || argIdx < s.Data[phiIdx] {
			s.Data[phiIdx] = argIdx
		}
	}

	for i := 0; i < s.Len(); i++ {
		if s.Code[i] != PHI {
			continue
		}
		if s.Data[i] == 0 {
			s.Data[i] = uint32(i)
			continue
		}
		s.Data[i] = uint32(s.Key(i))
	}
}
