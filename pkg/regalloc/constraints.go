package regalloc

import (
	"sort"

	"github.com/ohmu-lang/x64backend/pkg/events"
)

// pair is a deduplicated (min, max) key or worklist-position relationship —
// a conflict or a goal (spec §4.5 steps 3-4).
type pair struct{ a, b int }

func makePair(x, y int) pair {
	if x > y {
		x, y = y, x
	}
	return pair{x, y}
}

// fixedConflict records that key must not be assigned a register in mask
// (spec §4.5 step 3's "fixed_conflicts").
type fixedConflict struct {
	key  int
	mask uint32
}

// collectConstraints is spec §4.5 step 3: one walk over every use's live
// range collecting register conflicts against fixed-register events and
// against other live values, plus one pass over JOIN_COPY events collecting
// phi/argument co-allocation goals.
func collectConstraints(s *events.Stream) (conflicts, goals []pair, fixed []fixedConflict) {
	for i := 0; i < s.Len(); i++ {
		if !s.Code[i].IsUse() || s.Code[i] == events.MUTED_USE {
			continue // folded into its source by LinkCopies: no register needed here
		}
		target := int(s.Data[i])
		k := target
		if s.Code[target] == events.PHI {
			k = int(s.Data[target])
		}

		lr := events.NewLiveRange(s, k, i)
		for {
			idx, ok := lr.Next()
			if !ok {
				break
			}
			if !lr.NotSkipping() {
				continue
			}
			op := s.OpAt(idx)

			if mask, ok := events.ClobberReg(op); ok {
				fixed = append(fixed, fixedConflict{k, mask})
				continue
			}
			if mask, _, ok := events.FixedReg(op); ok {
				fixed = append(fixed, fixedConflict{k, mask})
				continue
			}
			if !op.IsValue() {
				continue
			}
			kPrime := idx
			if events.IsRedirect(op) {
				kPrime = int(s.Data[idx])
			}
			if kPrime != k {
				conflicts = append(conflicts, makePair(k, kPrime))
			}
		}
	}

	for i := 0; i < s.Len(); i++ {
		if s.Code[i] != events.JOIN_COPY {
			continue
		}
		if i == 0 || !s.Code[i-1].IsUse() {
			continue
		}
		phiIdx := events.JoinCopyPhiIndex(s.Data[i])
		phiKey := int(s.Data[phiIdx])
		argKey := int(s.Data[i-1])
		if phiKey != argKey {
			goals = append(goals, makePair(phiKey, argKey))
		}
	}

	return conflicts, goals, fixed
}

// dedupSortPairs is spec §4.5 step 4.
func dedupSortPairs(ps []pair) []pair {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].a != ps[j].a {
			return ps[i].a < ps[j].a
		}
		return ps[i].b < ps[j].b
	})
	out := ps[:0]
	for i, p := range ps {
		if i > 0 && p == ps[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
