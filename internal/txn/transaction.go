// Package txn defines the value types shared by every layer of the ordered
// delivery pipeline: the event-sourced Transaction, its stream/category
// identifiers, and the consumer-side bookkeeping types (ConsumerPosition,
// FailedStream).
package txn

import "fmt"

// ID identifies a stream. Streams with uuid, integer, or other
// character-typed primary keys all share the same string keyspace.
type ID string

// CAT is a coarse subscription-level classifier. Many streams share a
// category; it is not an ordering dimension.
type CAT string

// Transaction is a committed write to a single stream at a specific
// revision, carrying one or more opaque events. Identity is (StreamID,
// Revision), globally unique. For a given StreamID, revisions form a dense
// sequence starting at 0 with no gaps in the canonical journal.
type Transaction struct {
	TimestampMs int64
	Category    CAT
	StreamID    ID
	Revision    int32
	Metadata    map[string]string
	Events      [][]byte
}

// Key returns the transaction's identity for logging/dedup purposes.
func (t Transaction) Key() string {
	return fmt.Sprintf("%s@%d", t.StreamID, t.Revision)
}

// IgnoreHistory is the distinguished ExpectedRevision value meaning "this
// stream is untracked; accept any revision as in-sequence and do not start a
// sequencer" (the "only new events" consumer use case).
const IgnoreHistory int32 = -1

// FailedStream records why a stream was marked failed by the FailSafe layer.
type FailedStream struct {
	Category CAT
	Err      error
}

// ConsumerPosition is the last transaction timestamp a durable consumer has
// successfully processed, persisted externally by the consumer. Nil means
// "no position yet" (full replay).
type ConsumerPosition = *int64
