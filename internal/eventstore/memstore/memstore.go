// Package memstore is the non-persistent EventStore backing: an in-process,
// in-memory journal plus live fan-out, used by the eventstream tests. It is
// the structural analogue of the Pebble-backed
// docstore, built around the same "append under lock, notify subscribers"
// shape, just without a storage engine underneath.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cschjolb/seqflow/internal/eventstore"
	"github.com/cschjolb/seqflow/internal/txn"
)

// ErrDuplicateRevision is returned by Append when the stream already has a
// transaction at the given revision, or when the revision would leave a gap
// in the canonical per-stream sequence.
var ErrDuplicateRevision = errors.New("memstore: duplicate or out-of-sequence revision")

// Store is a non-persistent EventStore backing satisfying
// eventstore.EventSource.
type Store struct {
	mu      sync.RWMutex
	streams map[txn.ID][]txn.Transaction
	all     []txn.Transaction

	subMu   sync.Mutex
	subs    map[uint64]*liveSub
	nextSub uint64
}

type liveSub struct {
	filter eventstore.CategoryFilter
	ch     chan txn.Transaction
	done   chan struct{}
	closed atomic.Bool
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		streams: make(map[txn.ID][]txn.Transaction),
		subs:    make(map[uint64]*liveSub),
	}
}

// Append commits t to its stream and publishes it to matching live
// subscribers. Revisions must be dense starting at 0; any other revision for
// a never-before-seen or already-advanced stream is rejected with
// ErrDuplicateRevision.
func (s *Store) Append(t txn.Transaction) error {
	if err := s.appendJournal(t); err != nil {
		return err
	}
	s.publish(t)
	return nil
}

// AppendMissedByLiveFeed commits t to the journal without publishing it to
// live subscribers, simulating a message the durable journal received but
// the pub/sub feed dropped. It exists for tests exercising the gap-fill
// range replay path; production callers should use Append.
func (s *Store) AppendMissedByLiveFeed(t txn.Transaction) error {
	return s.appendJournal(t)
}

func (s *Store) appendJournal(t txn.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.streams[t.StreamID]
	if t.Revision != int32(len(existing)) {
		return ErrDuplicateRevision
	}
	s.streams[t.StreamID] = append(existing, t)
	s.all = append(s.all, t)
	return nil
}

func (s *Store) publish(t txn.Transaction) {
	s.subMu.Lock()
	targets := make([]*liveSub, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.filter == nil || sub.filter(t.Category) {
			targets = append(targets, sub)
		}
	}
	s.subMu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- t:
		default:
			// Subscriber is behind; the bridging replay and gap-fill range
			// replay recover any drop here without further help from this
			// store.
		}
	}
}

// Subscribe implements eventstore.EventSource.
func (s *Store) Subscribe(ctx context.Context, filter eventstore.CategoryFilter, sink func(txn.Transaction)) (eventstore.Subscription, error) {
	sub := &liveSub{filter: filter, ch: make(chan txn.Transaction, 256), done: make(chan struct{})}
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.subMu.Unlock()

	go func() {
		for {
			select {
			case t := <-sub.ch:
				sink(t)
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return &subHandle{store: s, id: id, sub: sub}, nil
}

type subHandle struct {
	store *Store
	id    uint64
	sub   *liveSub
}

func (h *subHandle) Cancel() {
	if !h.sub.closed.CompareAndSwap(false, true) {
		return
	}
	h.store.subMu.Lock()
	delete(h.store.subs, h.id)
	h.store.subMu.Unlock()
	close(h.sub.done)
}

// Replay implements eventstore.EventSource.
func (s *Store) Replay(ctx context.Context, categories []txn.CAT, handle func(eventstore.Iterator) error) error {
	return s.replayFiltered(ctx, categories, 0, handle)
}

// ReplayFrom implements eventstore.EventSource.
func (s *Store) ReplayFrom(ctx context.Context, sinceMs int64, categories []txn.CAT, handle func(eventstore.Iterator) error) error {
	return s.replayFiltered(ctx, categories, sinceMs, handle)
}

func (s *Store) replayFiltered(ctx context.Context, categories []txn.CAT, sinceMs int64, handle func(eventstore.Iterator) error) error {
	allow := categoryAllowlist(categories)

	s.mu.RLock()
	snapshot := make([]txn.Transaction, 0, len(s.all))
	for _, t := range s.all {
		if t.TimestampMs >= sinceMs && (allow == nil || allow[t.Category]) {
			snapshot = append(snapshot, t)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(snapshot, func(i, j int) bool {
		a, b := snapshot[i], snapshot[j]
		if a.TimestampMs != b.TimestampMs {
			return a.TimestampMs < b.TimestampMs
		}
		if a.StreamID != b.StreamID {
			return a.StreamID < b.StreamID
		}
		return a.Revision < b.Revision
	})

	return handle(&sliceIterator{items: snapshot})
}

// ReplayStreamRange implements eventstore.EventSource.
func (s *Store) ReplayStreamRange(ctx context.Context, id txn.ID, lo, hi int32, handle func(eventstore.Iterator) error) error {
	s.mu.RLock()
	stream := s.streams[id]
	items := make([]txn.Transaction, 0, hi-lo)
	for _, t := range stream {
		if t.Revision >= lo && t.Revision < hi {
			items = append(items, t)
		}
	}
	s.mu.RUnlock()
	return handle(&sliceIterator{items: items})
}

func categoryAllowlist(categories []txn.CAT) map[txn.CAT]bool {
	if len(categories) == 0 {
		return nil
	}
	m := make(map[txn.CAT]bool, len(categories))
	for _, c := range categories {
		m[c] = true
	}
	return m
}

type sliceIterator struct {
	items []txn.Transaction
	pos   int
}

func (it *sliceIterator) Next() (txn.Transaction, bool, error) {
	if it.pos >= len(it.items) {
		return txn.Transaction{}, false, nil
	}
	t := it.items[it.pos]
	it.pos++
	return t, true, nil
}
