// Package regalloc assigns a physical register bitmask to every SSA value
// in an event stream (spec §4.5): copy linking and key-compression, two
// live-range passes collecting conflicts and goals, and a single-pass
// priority-ordered worklist assignment.
package regalloc

import "github.com/ohmu-lang/x64backend/pkg/events"

// LinkCopies is spec §4.5 step 1's copy-linking half: each COPY not
// preceded by an already-muted use is folded into its source — the copy's
// data becomes the source's defining index, and the use it consumed is
// marked MUTED_USE so later passes know it no longer needs a register of
// its own.
//
// The phi half of step 1 ("for each PHI_COPY...") is subsumed by
// pkg/events.PhiElimination, which Allocate runs first (via events.
// Normalize) and which already computes each phi's minimum incoming
// index from every predecessor in one global pass rather than
// incrementally — see DESIGN.md.
func LinkCopies(s *events.Stream) {
	for i := 0; i < s.Len(); i++ {
		if s.Code[i] != events.COPY {
			continue
		}
		if i == 0 {
			continue
		}
		prev := i - 1
		if s.Code[prev] == events.MUTED_USE {
			continue
		}
		if !s.Code[prev].IsUse() {
			continue
		}
		s.Data[i] = s.Data[prev]
		s.Code[prev] = events.MUTED_USE
	}
}

// KeyCompression is spec §4.5 step 2: compress every SSA-marker chain to
// its fixed point, then repoint every use at the canonical key of whatever
// it targets (unless that target is itself still a phi).
func KeyCompression(s *events.Stream) {
	for i := 0; i < s.Len(); i++ {
		if events.IsRedirect(s.Code[i]) {
			s.Data[i] = uint32(s.Key(i))
		}
	}
	for i := 0; i < s.Len(); i++ {
		if !s.Code[i].IsUse() {
			continue
		}
		target := int(s.Data[i])
		if s.Code[target] == events.PHI {
			continue
		}
		s.Data[i] = uint32(s.Key(target))
	}
}
