package sequencer

import (
	"errors"
	"testing"
)

func step32(k int32) int32 { return k + 1 }

type recordingGaps struct {
	detected [][2]int32
	closed   int
}

func (g *recordingGaps) GapDetected(expected, actual int32) {
	g.detected = append(g.detected, [2]int32{expected, actual})
}
func (g *recordingGaps) GapClosed() { g.closed++ }

func TestInOrderDeliveryNoGaps(t *testing.T) {
	var delivered []string
	gaps := &recordingGaps{}
	s := New[int32, string](0, step32, 0, gaps, nil, func(k int32, v string) error {
		delivered = append(delivered, v)
		return nil
	})

	for _, pair := range []struct {
		k int32
		v string
	}{{0, "A"}, {1, "B"}, {2, "C"}} {
		if err := s.Offer(pair.k, pair.v); err != nil {
			t.Fatalf("offer: %v", err)
		}
	}

	want := []string{"A", "B", "C"}
	if len(delivered) != len(want) {
		t.Fatalf("delivered = %v, want %v", delivered, want)
	}
	for i := range want {
		if delivered[i] != want[i] {
			t.Fatalf("delivered[%d] = %q, want %q", i, delivered[i], want[i])
		}
	}
	if len(gaps.detected) != 0 || gaps.closed != 0 {
		t.Fatalf("expected zero gap callbacks, got detected=%v closed=%d", gaps.detected, gaps.closed)
	}
}

func TestSimpleGap(t *testing.T) {
	var delivered []string
	gaps := &recordingGaps{}
	s := New[int32, string](0, step32, 0, gaps, nil, func(k int32, v string) error {
		delivered = append(delivered, v)
		return nil
	})

	mustOffer(t, s, 0, "A")
	mustOffer(t, s, 2, "C")
	if len(delivered) != 1 || delivered[0] != "A" {
		t.Fatalf("expected only A delivered so far, got %v", delivered)
	}
	if len(gaps.detected) != 1 || gaps.detected[0] != [2]int32{1, 2} {
		t.Fatalf("expected gapDetected(1,2), got %v", gaps.detected)
	}
	mustOffer(t, s, 1, "B")

	want := []string{"A", "B", "C"}
	if len(delivered) != len(want) {
		t.Fatalf("delivered = %v, want %v", delivered, want)
	}
	for i := range want {
		if delivered[i] != want[i] {
			t.Fatalf("delivered[%d] = %q, want %q", i, delivered[i], want[i])
		}
	}
	if gaps.closed != 1 {
		t.Fatalf("expected gapClosed once, got %d", gaps.closed)
	}
}

func TestDuplicates(t *testing.T) {
	var delivered []string
	var dups []int32
	var wasBuffered []bool
	dup := func(k int32, v string, buffered bool) {
		dups = append(dups, k)
		wasBuffered = append(wasBuffered, buffered)
	}
	s := New[int32, string](5, step32, 0, nil, dup, func(k int32, v string) error {
		delivered = append(delivered, v)
		return nil
	})

	mustOffer(t, s, 3, "X")
	mustOffer(t, s, 5, "E")
	mustOffer(t, s, 5, "E")
	mustOffer(t, s, 4, "Y")

	if len(delivered) != 1 || delivered[0] != "E" {
		t.Fatalf("expected only E delivered, got %v", delivered)
	}
	if len(dups) != 3 || dups[0] != 3 || dups[1] != 5 || dups[2] != 4 {
		t.Fatalf("unexpected duplicate sequence: %v", dups)
	}
	if wasBuffered[0] || wasBuffered[1] || wasBuffered[2] {
		t.Fatalf("none of these duplicates should be reported as buffered (they never enter the buffer): %v", wasBuffered)
	}
}

func TestDuplicateWithinBuffer(t *testing.T) {
	var dups []bool
	dup := func(k int32, v string, buffered bool) { dups = append(dups, buffered) }
	s := New[int32, string](0, step32, 0, nil, dup, func(int32, string) error { return nil })

	mustOffer(t, s, 2, "C")
	mustOffer(t, s, 2, "C-dup")

	if len(dups) != 1 || !dups[0] {
		t.Fatalf("expected a single buffered-duplicate report, got %v", dups)
	}
}

func TestBufferOverflow(t *testing.T) {
	s := New[int32, string](0, step32, 1, nil, nil, func(int32, string) error { return nil })
	mustOffer(t, s, 5, "A")
	if err := s.Offer(9, "B"); err == nil {
		t.Fatalf("expected buffer overflow error")
	}
}

func TestDeliveryErrorAbortsDrain(t *testing.T) {
	var delivered []string
	boom := errors.New("boom")
	s := New[int32, string](0, step32, 0, nil, nil, func(k int32, v string) error {
		delivered = append(delivered, v)
		if k == 0 {
			return boom
		}
		return nil
	})

	mustOffer(t, s, 1, "B")
	if err := s.Offer(0, "A"); !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}
	if len(delivered) != 1 || delivered[0] != "A" {
		t.Fatalf("expected drain to stop after the failing delivery, got %v", delivered)
	}
	if s.BufferedLen() != 1 {
		t.Fatalf("expected B to remain buffered after the abort, got len=%d", s.BufferedLen())
	}
}

func mustOffer(t *testing.T, s *Sequencer[int32, string], k int32, v string) {
	t.Helper()
	if err := s.Offer(k, v); err != nil {
		t.Fatalf("offer(%d,%q): %v", k, v, err)
	}
}
