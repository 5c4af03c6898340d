// Package eventstore defines the EventSource contract that
// internal/eventstream requires from a journal and its pub/sub feed,
// independent of how either is actually stored. Two concrete backings live
// in subpackages: memstore (non-persistent, in-process) and docstore
// (Pebble-backed document database).
package eventstore

import (
	"context"

	"github.com/cschjolb/seqflow/internal/txn"
)

// Iterator yields Transactions in journal order. Next returns ok=false once
// exhausted; a non-nil err aborts iteration early.
type Iterator interface {
	Next() (t txn.Transaction, ok bool, err error)
}

// Subscription is returned by Subscribe; Cancel stops delivery. In-flight
// deliveries already dispatched to the sink are allowed to complete.
type Subscription interface {
	Cancel()
}

// CategoryFilter reports whether a category should be included.
type CategoryFilter func(txn.CAT) bool

// AllCategories matches every category, the CategoryFilter to use for an
// empty filter set.
func AllCategories(txn.CAT) bool { return true }

// EventSource is the minimal interface the ordered delivery pipeline
// requires from a journal plus its live pub/sub feed.
type EventSource interface {
	// Subscribe delivers newly committed transactions matching filter to
	// sink as they arrive, asynchronously, until the returned Subscription
	// is cancelled or ctx is done.
	Subscribe(ctx context.Context, filter CategoryFilter, sink func(txn.Transaction)) (Subscription, error)

	// Replay drives handle over every transaction across categories (or all
	// categories, if empty), in (timestamp, streamId, revision) order.
	Replay(ctx context.Context, categories []txn.CAT, handle func(Iterator) error) error

	// ReplayFrom is like Replay but restricted to timestamp >= sinceMs.
	ReplayFrom(ctx context.Context, sinceMs int64, categories []txn.CAT, handle func(Iterator) error) error

	// ReplayStreamRange drives handle over the half-open revision range
	// [lo, hi) of a single stream, in revision order.
	ReplayStreamRange(ctx context.Context, id txn.ID, lo, hi int32, handle func(Iterator) error) error
}
