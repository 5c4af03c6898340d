// Package sequencer implements MonotonicSequencer, a generic per-stream
// buffer that enforces strictly increasing integer keys over an unreliable
// feed: out-of-order arrivals are buffered until the gap closes, duplicates
// are routed to a callback instead of delivered, and at most one
// gapDetected/gapClosed pair fires per open epoch.
package sequencer

import (
	"cmp"
	"errors"
	"fmt"
	"sync"
)

// ErrBufferOverflow is returned by Offer when a buffered entry would push
// the sequencer's buffer past BufferLimit.
var ErrBufferOverflow = errors.New("sequencer: buffer overflow")

// GapHandler is notified when a stream opens or closes a reordering gap.
// gapDetected fires once per open epoch, on the first out-of-order arrival;
// gapClosed fires once, when draining the buffer after a delivery empties it.
type GapHandler[K any] interface {
	GapDetected(expected, actual K)
	GapClosed()
}

// DuplicateHandler receives entries that arrive below the expected key, or
// that duplicate an already-buffered key. wasBuffered distinguishes the
// latter case for callers that want to log or count it separately.
type DuplicateHandler[K any, V any] func(k K, v V, wasBuffered bool)

// Sequencer buffers out-of-order (K, V) pairs and delivers them to deliver
// in strictly increasing K order, starting at the configured expected key.
// K must be a totally-ordered, addable integer type (int32 in this module's
// use, but the structure itself is generic).
type Sequencer[K cmp.Ordered, V any] struct {
	deliver     func(K, V) error
	gaps        GapHandler[K]
	dup         DuplicateHandler[K, V]
	bufferLimit int
	step        func(K) K

	mu       sync.Mutex
	expected K
	buffer   map[K]V
	gapOpen  bool
}

// New constructs a Sequencer. step advances a key to its successor (for
// int32 this is `func(k int32) int32 { return k + 1 }`); it is a parameter
// rather than a `+1` literal so the type stays usable for any ordered key.
// deliver's error, if any, aborts further draining for this Offer call and
// is returned by Offer; the delivered key is still considered consumed
// (expected still advances past it) since a failing stream is expected to
// be isolated by the caller rather than retried in place.
func New[K cmp.Ordered, V any](expected K, step func(K) K, bufferLimit int, gaps GapHandler[K], dup DuplicateHandler[K, V], deliver func(K, V) error) *Sequencer[K, V] {
	return &Sequencer[K, V]{
		deliver:     deliver,
		gaps:        gaps,
		dup:         dup,
		bufferLimit: bufferLimit,
		step:        step,
		expected:    expected,
		buffer:      make(map[K]V),
	}
}

// Expected returns the next key the sequencer will deliver.
func (s *Sequencer[K, V]) Expected() K {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expected
}

// Offer presents a (k, v) pair to the sequencer. k == expected is delivered
// at once, followed by any buffered successors (firing GapClosed if that
// empties the buffer); k < expected, or a k already buffered, goes to the
// DuplicateHandler; any other k > expected is buffered, firing GapDetected
// if no gap is open yet.
func (s *Sequencer[K, V]) Offer(k K, v V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case k == s.expected:
		firstErr := s.deliver(k, v)
		s.expected = s.step(s.expected)
		hadBuffer := len(s.buffer) > 0
		for firstErr == nil {
			nv, ok := s.buffer[s.expected]
			if !ok {
				break
			}
			delete(s.buffer, s.expected)
			firstErr = s.deliver(s.expected, nv)
			s.expected = s.step(s.expected)
		}
		if hadBuffer && len(s.buffer) == 0 {
			s.gapOpen = false
			if s.gaps != nil {
				s.gaps.GapClosed()
			}
		}
		return firstErr

	case k < s.expected:
		if s.dup != nil {
			s.dup(k, v, false)
		}
		return nil

	default: // k > s.expected
		if _, buffered := s.buffer[k]; buffered {
			if s.dup != nil {
				s.dup(k, v, true)
			}
			return nil
		}
		if !s.gapOpen {
			s.gapOpen = true
			if s.gaps != nil {
				s.gaps.GapDetected(s.expected, k)
			}
		}
		s.buffer[k] = v
		if s.bufferLimit > 0 && len(s.buffer) > s.bufferLimit {
			return fmt.Errorf("%w: limit=%d size=%d", ErrBufferOverflow, s.bufferLimit, len(s.buffer))
		}
		return nil
	}
}

// BufferedLen reports the number of entries currently buffered, mainly for
// tests and diagnostics.
func (s *Sequencer[K, V]) BufferedLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}
