package regalloc

import (
	"math/bits"
	"sort"

	"github.com/ohmu-lang/x64backend/internal/assert"
	"github.com/ohmu-lang/x64backend/pkg/events"
)

// workItem is one entry of the worklist built in spec §4.5 step 5: index is
// the event this item assigns a register to; count starts as the number of
// conflicts the item participates in and is overwritten with the assigned
// register bitmask once step 7 processes it.
type workItem struct {
	index int
	count int
}

// buildWorklist is spec §4.5 step 5's first half: one item per non-fixed,
// self-keyed value event, with count seeded to its conflict-degree.
func buildWorklist(s *events.Stream, conflicts []pair) []workItem {
	degree := make(map[int]int)
	for _, c := range conflicts {
		degree[c.a]++
		degree[c.b]++
	}

	var work []workItem
	for i := 0; i < s.Len(); i++ {
		if !s.Code[i].IsValue() {
			continue
		}
		if events.IsRedirect(s.Code[i]) && int(s.Data[i]) != i {
			continue // not self-keyed: someone else is this value's canonical key
		}
		work = append(work, workItem{index: i, count: degree[i]})
	}

	// Most-constrained first; ties keep construction (event index) order.
	sort.SliceStable(work, func(a, b int) bool { return work[a].count > work[b].count })
	return work
}

// adjacency maps a worklist position to the positions of items it relates
// to (spec §4.5 step 5's "renumber... to reference worklist positions").
type adjacency map[int][]int

// remapPairs turns event-index pairs into worklist-position pairs,
// re-sorted and deduplicated per step 5's "renumber... resort".
func remapPairs(ps []pair, posOf map[int]int) []pair {
	remapped := make([]pair, 0, len(ps))
	for _, p := range ps {
		pa, okA := posOf[p.a]
		pb, okB := posOf[p.b]
		assert.True(okA && okB, "regalloc: constraint references an event outside the worklist")
		remapped = append(remapped, makePair(pa, pb))
	}
	return dedupSortPairs(remapped)
}

// buildAdjacency indexes deduplicated (a, b) position pairs (a < b) both
// ways: fwd only ever has a smaller position pointing at a larger one
// (used for step 7's post-assignment propagation, which only ever reaches
// forward), all has both directions (used for step 7's "OR of ...preferred
// for all j" read, which — since worklist order is not the same as event
// order — can legitimately name a neighbor processed earlier or later).
func buildAdjacency(ps []pair) (fwd, all adjacency) {
	fwd, all = make(adjacency), make(adjacency)
	for _, p := range ps {
		fwd[p.a] = append(fwd[p.a], p.b)
		all[p.a] = append(all[p.a], p.b)
		all[p.b] = append(all[p.b], p.a)
	}
	return fwd, all
}

// Allocate is spec §4.5: normalize the stream (§4.3 — last-use detection,
// commute, phi elimination), link copies, compress keys, re-commute (the
// (USE, MUTED_USE) pair LinkCopies produces is Commute's actual trigger —
// see DESIGN.md), collect constraints, build the worklist, and assign.
// Every value event's data ends up holding a single-bit physical register
// mask; uses resolve through their defining value's data. Normalize is
// idempotent (see its own doc comment), so calling it here even when a
// caller already normalized costs nothing and means Allocate never
// depends on that having happened.
func Allocate(s *events.Stream) {
	events.Normalize(s)
	LinkCopies(s)
	KeyCompression(s)
	events.Commute(s)

	// buildWorklist only assigns a worklist slot to self-keyed value events
	// (non-redirects, and redirects whose Data still points at themselves);
	// a redirect left pointing at some other canonical event (e.g. a PHI
	// folded into one of its incoming values) never gets its own Data
	// overwritten in assignRegisters. Snapshot that canonical target now,
	// while Data still holds the post-KeyCompression index rather than a
	// register mask, so it can be propagated once assignment finishes.
	redirectTarget := make(map[int]int)
	for i := 0; i < s.Len(); i++ {
		if events.IsRedirect(s.Code[i]) && int(s.Data[i]) != i {
			redirectTarget[i] = int(s.Data[i])
		}
	}

	conflicts, goals, fixed := collectConstraints(s)
	conflicts = dedupSortPairs(conflicts)
	goals = dedupSortPairs(goals)

	work := buildWorklist(s, conflicts)
	posOf := make(map[int]int, len(work))
	for pos, w := range work {
		posOf[w.index] = pos
	}

	conflictFwd, conflictAll := buildAdjacency(remapPairs(conflicts, posOf))
	goalFwd, goalAll := buildAdjacency(remapPairs(goals, posOf))

	preferred := make([]uint32, len(work))
	invalid := make([]uint32, len(work))
	for _, fc := range fixed {
		if pos, ok := posOf[fc.key]; ok {
			invalid[pos] |= fc.mask
		}
	}
	for i := 0; i < s.Len(); i++ {
		mask, ok := events.HintReg(s.Code[i])
		if !ok {
			continue
		}
		k := hintTargetKey(s, i)
		if pos, ok := posOf[k]; ok {
			preferred[pos] |= mask
		}
	}
	for idx, mask := range bindArguments(s) {
		if pos, ok := posOf[idx]; ok {
			preferred[pos] |= mask
		}
	}

	assignRegisters(s, work, conflictFwd, conflictAll, goalFwd, goalAll, preferred, invalid)

	// Propagate the resolved mask from every canonical target back onto the
	// redirects that were excluded from the worklist, so pkg/codegen can
	// read a register mask directly off ANY value event's Data, redirect or
	// not, with no further chasing.
	for idx, target := range redirectTarget {
		s.Data[idx] = s.Data[target]
	}
}

// bindArguments is the concrete step spec §8.4 scenario 1 glosses over as
// "arg-move to EAX/EDX... omitted for brevity": a self-keyed PHI is, by
// events.PhiElimination's construction, one no JOIN_COPY ever wrote to —
// i.e. a function parameter rather than a merge. The first two such phis
// in event order are preferred into the same EAX/EDX pair the IDIV
// quotient hint already uses (spec §4.5 scenario 5); later parameters get
// no preference and fall through to whatever the conflict-ordered worklist
// hands them. Like every other REGISTER_HINT, this is a preference a real
// conflict can still override, not a hard bind.
func bindArguments(s *events.Stream) map[int]uint32 {
	abiRegs := [...]uint32{uint32(events.RegEAX), uint32(events.RegEDX)}
	pref := make(map[int]uint32)
	n := 0
	for i := 0; i < s.Len(); i++ {
		if s.Code[i] != events.PHI || int(s.Data[i]) != i {
			continue
		}
		if n < len(abiRegs) {
			pref[i] = abiRegs[n]
		}
		n++
	}
	return pref
}

// hintTargetKey resolves a REGISTER_HINT event's data (the target value's
// event index, per lowerBinOp) to that value's canonical key.
func hintTargetKey(s *events.Stream, hintIdx int) int {
	target := int(s.Data[hintIdx])
	if s.Code[target] == events.PHI || events.IsRedirect(s.Code[target]) {
		return int(s.Data[target])
	}
	return target
}

// assignRegisters is spec §4.5 step 7: a strictly sequential single pass —
// each assignment propagates into other items' preferred/invalid sets, so
// there is no valid concurrent schedule.
func assignRegisters(s *events.Stream, work []workItem, conflictFwd, conflictAll, goalFwd, goalAll adjacency, preferred, invalid []uint32) {
	for i := range work {
		pref := preferred[i]
		for _, j := range goalAll[i] {
			pref |= preferred[j]
		}
		unpref := uint32(0)
		for _, j := range conflictAll[i] {
			unpref |= preferred[j]
		}

		mask := chooseMask(pref, unpref, invalid[i])
		work[i].count = int(mask)
		s.Data[work[i].index] = mask

		for _, j := range goalFwd[i] {
			preferred[j] |= mask
		}
		for _, j := range conflictFwd[i] {
			invalid[j] |= mask
		}
	}
}

// chooseMask is spec §4.5 step 7's four-tier fallback: the lowest set bit
// of the first nonempty candidate. A zero result means every candidate
// exhausted — all 32 register-file bits already invalid for this item,
// which would in production need a spill pass (spec §4.5, explicit
// future work; see SPEC_FULL.md).
func chooseMask(preferred, unpreferred, invalid uint32) uint32 {
	candidates := [...]uint32{
		^unpreferred & preferred &^ invalid,
		preferred &^ invalid,
		^unpreferred &^ invalid,
		^invalid,
	}
	for _, c := range candidates {
		if c != 0 {
			return uint32(1) << bits.TrailingZeros32(c)
		}
	}
	return 0
}
