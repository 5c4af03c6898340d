package txnhandler

import (
	"sync"

	"github.com/cschjolb/seqflow/internal/sequencer"
	"github.com/cschjolb/seqflow/internal/txn"
)

// GapObserver is notified when a per-stream sequencer opens or closes a
// reordering gap, so a caller (typically eventstream.EventStream) can
// schedule or cancel a range replay.
type GapObserver interface {
	OnGapDetected(id txn.ID, expected, actual int32)
	OnGapClosed(id txn.ID)
}

// DuplicateObserver is notified of a duplicate/stale revision instead of
// having it delivered to the consumer.
type DuplicateObserver func(t txn.Transaction, wasBuffered bool)

// ExpectedRevisionFunc reports the next revision a consumer expects for a
// stream it has not seen yet this session. txn.IgnoreHistory (-1) means the
// stream is untracked: any revision is accepted in-sequence and no
// sequencer is installed for it.
type ExpectedRevisionFunc func(id txn.ID) int32

// SequencedTransactionHandler enforces per-stream monotonic revision order
// on top of a concurrent map of sequencer.Sequencer instances, one per
// stream currently mid-gap.
type SequencedTransactionHandler struct {
	sequencers  sync.Map // txn.ID -> *sequencer.Sequencer[int32, txn.Transaction]
	expectedRev ExpectedRevisionFunc
	next        func(txn.Transaction) error
	gaps        GapObserver
	dup         DuplicateObserver
	bufferLimit int
}

// NewSequencedTransactionHandler wraps next with per-stream sequencing.
// bufferLimit is forwarded to each stream's sequencer (0 = unlimited).
func NewSequencedTransactionHandler(expectedRev ExpectedRevisionFunc, bufferLimit int, gaps GapObserver, dup DuplicateObserver, next func(txn.Transaction) error) *SequencedTransactionHandler {
	return &SequencedTransactionHandler{
		expectedRev: expectedRev,
		next:        next,
		gaps:        gaps,
		dup:         dup,
		bufferLimit: bufferLimit,
	}
}

// Handle routes t through the per-stream sequencer, installing one lazily if
// this is the first out-of-order arrival for the stream this session.
func (h *SequencedTransactionHandler) Handle(t txn.Transaction) error {
	id := t.StreamID

	if v, ok := h.sequencers.Load(id); ok {
		return v.(*sequencer.Sequencer[int32, txn.Transaction]).Offer(t.Revision, t)
	}

	expected := h.expectedRev(id)
	switch {
	case expected == txn.IgnoreHistory:
		return h.next(t)
	case t.Revision == expected:
		return h.next(t)
	case t.Revision > expected:
		seq := h.newSequencer(id, expected)
		actual, _ := h.sequencers.LoadOrStore(id, seq)
		return actual.(*sequencer.Sequencer[int32, txn.Transaction]).Offer(t.Revision, t)
	default: // t.Revision < expected
		if h.dup != nil {
			h.dup(t, false)
		}
		return nil
	}
}

func (h *SequencedTransactionHandler) newSequencer(id txn.ID, expected int32) *sequencer.Sequencer[int32, txn.Transaction] {
	gh := &gapAdapter{id: id, observer: h.gaps, onClose: func() { h.sequencers.Delete(id) }}
	dh := func(k int32, v txn.Transaction, wasBuffered bool) {
		if h.dup != nil {
			h.dup(v, wasBuffered)
		}
	}
	deliver := func(_ int32, v txn.Transaction) error { return h.next(v) }
	return sequencer.New[int32, txn.Transaction](expected, step32, h.bufferLimit, gh, dh, deliver)
}

func step32(k int32) int32 { return k + 1 }

// gapAdapter bridges sequencer.GapHandler to GapObserver, and additionally
// removes the sequencer's map entry on close from inside the sequencer's own
// critical section, so a transaction arriving immediately after closure
// never observes a stale sequencer.
type gapAdapter struct {
	id       txn.ID
	observer GapObserver
	onClose  func()
}

func (g *gapAdapter) GapDetected(expected, actual int32) {
	if g.observer != nil {
		g.observer.OnGapDetected(g.id, expected, actual)
	}
}

func (g *gapAdapter) GapClosed() {
	g.onClose()
	if g.observer != nil {
		g.observer.OnGapClosed(g.id)
	}
}
