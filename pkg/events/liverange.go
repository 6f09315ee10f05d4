package events

// LiveRangeState names the 3-state machine spec.md's design notes (§9)
// describe: Scanning is the normal walk; SkippingJoinBody covers a sibling
// branch's body between a JOIN_HEADER and its join partner;
// SkippingCaseAncestor is the momentary jump over a CASE_HEADER's
// dominator-ancestor chain. The case-ancestor skip never persists across a
// Next() call (the jump happens and scanning resumes in the same step), so
// LiveRange.State only ever reports the other two.
type LiveRangeState uint8

const (
	Scanning LiveRangeState = iota
	SkippingJoinBody
	SkippingCaseAncestor
)

// LiveRange walks backward from a use toward its def, skipping sibling
// case/join scopes (spec §4.4). Construct with NewLiveRange and call Next
// until it returns false.
type LiveRange struct {
	s         *Stream
	cur       int
	def       int
	skipUntil int // -1 when not in a skipped join body
	joinAt    int // index of the JOIN_HEADER that opened the current skip
}

// NewLiveRange returns an iterator over the half-open range (def, use),
// walking backward starting just before use.
func NewLiveRange(s *Stream, def, use int) *LiveRange {
	return &LiveRange{s: s, cur: use - 1, def: def, skipUntil: -1}
}

// NotSkipping reports whether the most recently yielded event lies outside
// a sibling scope (spec §4.4, §4.3 step 1's "not skipping a sibling
// scope"). The JOIN_HEADER that opens a skip is itself outside it.
func (lr *LiveRange) NotSkipping() bool { return lr.skipUntil == -1 || lr.cur+1 == lr.joinAt }

// State reports which of the two persisting states Next last left the
// iterator in.
func (lr *LiveRange) State() LiveRangeState {
	if lr.skipUntil == -1 {
		return Scanning
	}
	return SkippingJoinBody
}

// Next yields the next event index, or (0, false) once the walk reaches
// def.
func (lr *LiveRange) Next() (int, bool) {
	for {
		if lr.cur <= lr.def {
			return 0, false
		}
		idx := lr.cur
		lr.cur--

		if lr.skipUntil != -1 && idx <= lr.skipUntil {
			lr.skipUntil = -1 // reached the join partner: resume scanning
		}

		switch lr.s.OpAt(idx) {
		case JOIN_HEADER:
			if lr.skipUntil == -1 {
				lr.skipUntil = int(lr.s.At(idx))
				lr.joinAt = idx
			}
			return idx, true
		case CASE_HEADER:
			if lr.skipUntil == -1 {
				// Jump directly to the dominator's last event and
				// continue decrementing from there, without yielding
				// anything in between (spec §4.4: "skips over the
				// entire dominator-ancestor chain of that header").
				lr.cur = int(lr.s.At(idx)) - 1
				continue
			}
			return idx, true
		default:
			return idx, true
		}
	}
}
