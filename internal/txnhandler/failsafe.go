// Package txnhandler implements the two outer layers of the live handler
// chain: FailSafeTransactionHandler, which isolates streams whose downstream
// call returned an error (a panic is not recovered), and
// SequencedTransactionHandler, which enforces
// per-stream monotonic revision order on top of sequencer.Sequencer.
package txnhandler

import (
	"sync"

	"github.com/cschjolb/seqflow/internal/txn"
)

// FailedStreamTable is a process/EventStream-instance-wide record of streams
// that have failed; entries are inserted on consumer exception and never
// auto-evicted for the lifetime of the owning EventStream.
type FailedStreamTable struct {
	mu      sync.RWMutex
	entries map[txn.ID]txn.FailedStream
}

// NewFailedStreamTable constructs an empty table.
func NewFailedStreamTable() *FailedStreamTable {
	return &FailedStreamTable{entries: make(map[txn.ID]txn.FailedStream)}
}

// IsFailed reports whether id has previously failed.
func (t *FailedStreamTable) IsFailed(id txn.ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[id]
	return ok
}

// MarkFailed records id as failed with the given category and cause. Later
// calls for an already-failed stream are no-ops (first failure wins).
func (t *FailedStreamTable) MarkFailed(id txn.ID, cat txn.CAT, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; ok {
		return
	}
	t.entries[id] = txn.FailedStream{Category: cat, Err: err}
}

// Snapshot returns a copy of the current failed-stream set.
func (t *FailedStreamTable) Snapshot() map[txn.ID]txn.FailedStream {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[txn.ID]txn.FailedStream, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}

// Empty reports whether no stream has failed.
func (t *FailedStreamTable) Empty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) == 0
}

// FailureReporter is invoked whenever FailSafeTransactionHandler records a
// new failure.
type FailureReporter func(id txn.ID, cat txn.CAT, err error)

// FailSafeTransactionHandler drops transactions for streams already marked
// failed, and marks a stream failed the first time its downstream call
// errors.
type FailSafeTransactionHandler struct {
	table    *FailedStreamTable
	next     func(txn.Transaction) error
	reporter FailureReporter
}

// NewFailSafeTransactionHandler wraps next with failed-stream isolation,
// backed by table.
func NewFailSafeTransactionHandler(table *FailedStreamTable, reporter FailureReporter, next func(txn.Transaction) error) *FailSafeTransactionHandler {
	return &FailSafeTransactionHandler{table: table, next: next, reporter: reporter}
}

// Handle drops t if its stream is already failed; otherwise forwards to
// next, marking the stream failed on error.
func (h *FailSafeTransactionHandler) Handle(t txn.Transaction) error {
	if h.table.IsFailed(t.StreamID) {
		return nil
	}
	err := h.next(t)
	if err != nil {
		h.table.MarkFailed(t.StreamID, t.Category, err)
		if h.reporter != nil {
			h.reporter(t.StreamID, t.Category, err)
		}
		return err
	}
	return nil
}
