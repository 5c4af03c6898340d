package docstore

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/cschjolb/seqflow/internal/category"
	"github.com/cschjolb/seqflow/internal/eventstore"
	pebblestore "github.com/cschjolb/seqflow/internal/storage/pebble"
	"github.com/cschjolb/seqflow/internal/txn"
)

// ErrDuplicateRevision is returned by Append when the stream already has a
// transaction at the given revision, or when the revision would leave a gap
// in the canonical per-stream sequence.
var ErrDuplicateRevision = errors.New("docstore: duplicate or out-of-sequence revision")

// defaultPollInterval bounds how long a live subscription waits on a missed
// notification before re-scanning anyway.
const defaultPollInterval = 2 * time.Second

// Store is the Pebble-backed EventSource backing, satisfying
// eventstore.EventSource.
type Store struct {
	db    *pebblestore.DB
	ownDB bool

	appendMu sync.Mutex

	notifyMu sync.Mutex
	notifyCh chan struct{}
}

// Open wraps an already-open Pebble database. The caller retains ownership
// and must Close it; Store.Close is then a no-op.
func Open(db *pebblestore.DB) *Store {
	return &Store{db: db, notifyCh: make(chan struct{})}
}

// OpenPath opens (or creates) a Pebble database at dataDir and wraps it. The
// returned Store owns the database and closes it on Store.Close.
func OpenPath(dataDir string) (*Store, error) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dataDir})
	if err != nil {
		return nil, err
	}
	s := Open(db)
	s.ownDB = true
	return s, nil
}

// Close releases the underlying database if this Store opened it itself.
func (s *Store) Close() error {
	if !s.ownDB {
		return nil
	}
	return s.db.Close()
}

// Append implements eventstore.EventSource's write side. Revisions must be
// dense starting at 0 for a given stream; any other revision is rejected
// with ErrDuplicateRevision.
func (s *Store) Append(t txn.Transaction) error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	key := streamKey(t.StreamID, t.Revision)
	if _, err := s.db.Get(key); err == nil {
		return ErrDuplicateRevision
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}
	if t.Revision > 0 {
		if _, err := s.db.Get(streamKey(t.StreamID, t.Revision-1)); err != nil {
			return ErrDuplicateRevision
		}
	}

	if _, err := category.Ensure(s.db, t.Category); err != nil {
		return err
	}

	rec, err := encodeTxn(t)
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(key, rec, nil); err != nil {
		return err
	}
	if err := b.Set(tsKey(t.TimestampMs, t.StreamID, t.Revision), rec, nil); err != nil {
		return err
	}
	if err := s.db.CommitBatch(context.Background(), b); err != nil {
		return err
	}

	s.notifyAppend()
	return nil
}

func (s *Store) notifyAppend() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	close(s.notifyCh)
	s.notifyCh = make(chan struct{})
}

func (s *Store) waitForAppend(ctx context.Context, timeout time.Duration) bool {
	s.notifyMu.Lock()
	ch := s.notifyCh
	s.notifyMu.Unlock()

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	case <-time.After(timeout):
		return false
	}
}

// Replay implements eventstore.EventSource.
func (s *Store) Replay(ctx context.Context, categories []txn.CAT, handle func(eventstore.Iterator) error) error {
	return s.replayFiltered(categories, 0, handle)
}

// ReplayFrom implements eventstore.EventSource.
func (s *Store) ReplayFrom(ctx context.Context, sinceMs int64, categories []txn.CAT, handle func(eventstore.Iterator) error) error {
	return s.replayFiltered(categories, sinceMs, handle)
}

func (s *Store) replayFiltered(categories []txn.CAT, sinceMs int64, handle func(eventstore.Iterator) error) error {
	allow := categoryAllowlist(categories)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: tsLowerBound(sinceMs), UpperBound: tsUpperBound()})
	if err != nil {
		return err
	}
	defer iter.Close()
	return handle(&tsIterator{iter: iter, allow: allow})
}

// ReplayStreamRange implements eventstore.EventSource.
func (s *Store) ReplayStreamRange(ctx context.Context, id txn.ID, lo, hi int32, handle func(eventstore.Iterator) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: streamKey(id, lo), UpperBound: streamKey(id, hi)})
	if err != nil {
		return err
	}
	defer iter.Close()
	return handle(&rawIterator{iter: iter})
}

// Subscribe implements eventstore.EventSource. It polls the timestamp index
// forward from the moment of subscription, waking on append notifications.
func (s *Store) Subscribe(ctx context.Context, filter eventstore.CategoryFilter, sink func(txn.Transaction)) (eventstore.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel}

	go s.subscribeLoop(subCtx, filter, sink)

	return sub, nil
}

type subscription struct {
	cancel context.CancelFunc
}

func (sub *subscription) Cancel() { sub.cancel() }

func (s *Store) subscribeLoop(ctx context.Context, filter eventstore.CategoryFilter, sink func(txn.Transaction)) {
	lastKey := tsLowerBound(time.Now().UnixMilli())
	for {
		var err error
		lastKey, err = s.scanTsForward(lastKey, filter, sink)
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.waitForAppend(ctx, defaultPollInterval)
		if ctx.Err() != nil {
			return
		}
	}
}

// scanTsForward delivers every entry strictly after lastKey, returning the
// key of the last entry it observed (or lastKey unchanged if none).
func (s *Store) scanTsForward(lastKey []byte, filter eventstore.CategoryFilter, sink func(txn.Transaction)) ([]byte, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lastKey, UpperBound: tsUpperBound()})
	if err != nil {
		return lastKey, err
	}
	defer iter.Close()

	newLast := lastKey
	for ok := iter.SeekGE(lastKey); ok; ok = iter.Next() {
		if bytes.Equal(iter.Key(), lastKey) {
			continue
		}
		t, err := decodeTxn(iter.Value())
		if err != nil {
			return newLast, err
		}
		newLast = append([]byte(nil), iter.Key()...)
		if filter == nil || filter(t.Category) {
			sink(t)
		}
	}
	return newLast, nil
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

// tsIterator walks the timestamp-ordered secondary index, filtering by
// category in memory since category is not part of that index's key.
type tsIterator struct {
	iter    *pebble.Iterator
	allow   map[txn.CAT]bool
	started bool
}

func (it *tsIterator) Next() (txn.Transaction, bool, error) {
	for {
		var ok bool
		if !it.started {
			ok = it.iter.First()
			it.started = true
		} else {
			ok = it.iter.Next()
		}
		if !ok {
			return txn.Transaction{}, false, nil
		}
		t, err := decodeTxn(it.iter.Value())
		if err != nil {
			return txn.Transaction{}, false, err
		}
		if it.allow != nil && !it.allow[t.Category] {
			continue
		}
		return t, true, nil
	}
}

// rawIterator walks the primary per-stream index directly, already scoped to
// a single stream's revision range by the caller's iterator bounds.
type rawIterator struct {
	iter    *pebble.Iterator
	started bool
}

func (it *rawIterator) Next() (txn.Transaction, bool, error) {
	var ok bool
	if !it.started {
		ok = it.iter.First()
		it.started = true
	} else {
		ok = it.iter.Next()
	}
	if !ok {
		return txn.Transaction{}, false, nil
	}
	t, err := decodeTxn(it.iter.Value())
	if err != nil {
		return txn.Transaction{}, false, err
	}
	return t, true, nil
}
