package eventstream

import "github.com/cschjolb/seqflow/internal/txn"

// DurableConsumer drives a single EventStream.Resume call: it supplies the
// replay starting point, a category filter, the replay-phase delivery
// callback, and a live-phase counterpart once replay has caught up.
type DurableConsumer interface {
	// LastTimestamp returns the timestamp (ms) of the last transaction this
	// consumer has durably processed, or nil if it has never run before.
	LastTimestamp() *int64

	// CategoryFilter restricts replay/subscribe to these categories; an
	// empty set means all categories.
	CategoryFilter() map[txn.CAT]struct{}

	// ConsumeReplay processes one transaction during the replay phase.
	ConsumeReplay(txn.Transaction) error

	// OnLive returns the consumer to use once replay has caught up.
	OnLive() LiveConsumer
}

// LiveConsumer is the live-phase counterpart of DurableConsumer.
type LiveConsumer interface {
	// ExpectedRevision seeds the per-stream sequencer the first time id is
	// seen this session. txn.IgnoreHistory means the stream should be
	// delivered untracked.
	ExpectedRevision(id txn.ID) int32

	// ConsumeLive processes one transaction during the live phase.
	ConsumeLive(txn.Transaction) error
}
