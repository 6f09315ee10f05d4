package events

import "testing"

func TestLiveRangeStraightLine(t *testing.T) {
	s := NewStream(8)
	s.Emit(NOP, 0)         // 0: def
	s.Emit(VALUE, 0)       // 1
	s.Emit(VALUE, 0)       // 2
	s.Emit(USE, 1)         // 3: use

	lr := NewLiveRange(s, 0, 3)
	var got []int
	for {
		i, ok := lr.Next()
		if !ok {
			break
		}
		if !lr.NotSkipping() {
			t.Errorf("event %d: expected NotSkipping in a straight-line range", i)
		}
		got = append(got, i)
	}
	want := []int{2, 1}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLiveRangeSkipsJoinSibling(t *testing.T) {
	s := NewStream(8)
	s.Emit(NOP, 0)          // 0: def
	s.Emit(VALUE, 0)        // 1: sibling branch body (should be skipped over for NotSkipping)
	s.Emit(JOIN_HEADER, 0)  // 2: join header, partner = index 0
	s.Emit(USE, 1)          // 3: use, live range walks back from here

	lr := NewLiveRange(s, 0, 3)

	i, ok := lr.Next()
	if !ok || i != 2 {
		t.Fatalf("first event = %d, %v; want 2, true", i, ok)
	}
	if !lr.NotSkipping() {
		t.Errorf("JOIN_HEADER event itself should not be marked skipping")
	}

	i, ok = lr.Next()
	if !ok || i != 1 {
		t.Fatalf("second event = %d, %v; want 1, true", i, ok)
	}
	if lr.NotSkipping() {
		t.Errorf("event 1 is inside the sibling join body, expected NotSkipping() == false")
	}

	_, ok = lr.Next()
	if ok {
		t.Errorf("expected iteration to stop at def (index 0)")
	}
}

func TestLiveRangeJumpsOverCaseAncestors(t *testing.T) {
	s := NewStream(8)
	s.Emit(NOP, 0)            // 0: def (dominator's last event)
	s.Emit(VALUE, 0)          // 1: ancestor chain event, must be skipped entirely
	s.Emit(CASE_HEADER, 0)    // 2: case header, dominator's last event = 0
	s.Emit(USE, 1)            // 3: use

	lr := NewLiveRange(s, 0, 3)
	_, ok := lr.Next()
	if ok {
		t.Fatalf("expected the case-header jump to skip straight to def with nothing yielded")
	}
}

func TestStreamKeyCompression(t *testing.T) {
	s := NewStream(4)
	s.Emit(VALUE, 0) // 0: key event, self-referential
	s.Emit(COPY, 0)  // 1: points at 0
	s.Emit(COPY, 1)  // 2: points at 1, which points at 0

	if got := s.Key(2); got != 0 {
		t.Errorf("Key(2) = %d, want 0", got)
	}
	if got := s.Key(1); got != 0 {
		t.Errorf("Key(1) = %d, want 0", got)
	}
	if got := s.Key(0); got != 0 {
		t.Errorf("Key(0) = %d, want 0", got)
	}
}
