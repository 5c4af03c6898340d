package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/cschjolb/seqflow/internal/eventstore"
	"github.com/cschjolb/seqflow/internal/txn"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenPath(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mkTx(streamID string, rev int32, tsMs int64) txn.Transaction {
	return txn.Transaction{TimestampMs: tsMs, Category: "orders", StreamID: txn.ID(streamID), Revision: rev}
}

func TestAppendRejectsGapAndDuplicate(t *testing.T) {
	s := newTestStore(t)

	if err := s.Append(mkTx("s1", 0, 0)); err != nil {
		t.Fatalf("append rev0: %v", err)
	}
	if err := s.Append(mkTx("s1", 0, 0)); err != ErrDuplicateRevision {
		t.Fatalf("expected ErrDuplicateRevision on duplicate, got %v", err)
	}
	if err := s.Append(mkTx("s1", 2, 0)); err != ErrDuplicateRevision {
		t.Fatalf("expected ErrDuplicateRevision on a gap, got %v", err)
	}
	if err := s.Append(mkTx("s1", 1, 0)); err != nil {
		t.Fatalf("append rev1: %v", err)
	}
}

func TestReplayDeliversInTimestampOrder(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append(mkTx("a", 0, 100)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(mkTx("b", 0, 50)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(mkTx("a", 1, 150)); err != nil {
		t.Fatalf("append: %v", err)
	}

	var order []txn.ID
	err := s.Replay(context.Background(), nil, func(it eventstore.Iterator) error {
		for {
			tr, ok, err := it.Next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			order = append(order, tr.StreamID)
		}
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	want := []txn.ID{"b", "a", "a"}
	if len(order) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestReplayFromFiltersByTimestamp(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append(mkTx("a", 0, 10)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(mkTx("a", 1, 20)); err != nil {
		t.Fatalf("append: %v", err)
	}

	var count int
	err := s.ReplayFrom(context.Background(), 15, nil, func(it eventstore.Iterator) error {
		for {
			_, ok, err := it.Next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			count++
		}
	})
	if err != nil {
		t.Fatalf("replayFrom: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry at or after ts 15, got %d", count)
	}
}

func TestReplayStreamRangeIsRevisionOrdered(t *testing.T) {
	s := newTestStore(t)
	for i := int32(0); i < 4; i++ {
		if err := s.Append(mkTx("a", i, int64(i))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	var revs []int32
	err := s.ReplayStreamRange(context.Background(), "a", 1, 3, func(it eventstore.Iterator) error {
		for {
			tr, ok, err := it.Next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			revs = append(revs, tr.Revision)
		}
	})
	if err != nil {
		t.Fatalf("replayStreamRange: %v", err)
	}
	if len(revs) != 2 || revs[0] != 1 || revs[1] != 2 {
		t.Fatalf("expected revisions [1 2], got %v", revs)
	}
}

func TestSubscribeDeliversOnlyNewAppends(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append(mkTx("a", 0, time.Now().UnixMilli())); err != nil {
		t.Fatalf("append before subscribe: %v", err)
	}

	var delivered []txn.Transaction
	ch := make(chan txn.Transaction, 4)
	sub, err := s.Subscribe(context.Background(), nil, func(tr txn.Transaction) { ch <- tr })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	if err := s.Append(mkTx("a", 1, time.Now().UnixMilli())); err != nil {
		t.Fatalf("append after subscribe: %v", err)
	}

	select {
	case tr := <-ch:
		delivered = append(delivered, tr)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for live delivery")
	}

	select {
	case tr := <-ch:
		t.Fatalf("unexpected extra delivery: %v", tr)
	case <-time.After(100 * time.Millisecond):
	}

	if len(delivered) != 1 || delivered[0].Revision != 1 {
		t.Fatalf("expected only revision 1 delivered live, got %v", delivered)
	}
}

func TestSubscribeHonorsCategoryFilter(t *testing.T) {
	s := newTestStore(t)
	sub, err := s.Subscribe(context.Background(), func(c txn.CAT) bool { return c == "orders" }, func(txn.Transaction) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	ch := make(chan txn.Transaction, 4)
	sub2, err := s.Subscribe(context.Background(), func(c txn.CAT) bool { return c == "orders" }, func(tr txn.Transaction) { ch <- tr })
	if err != nil {
		t.Fatalf("subscribe2: %v", err)
	}
	defer sub2.Cancel()

	other := mkTx("x", 0, time.Now().UnixMilli())
	other.Category = "payments"
	if err := s.Append(other); err != nil {
		t.Fatalf("append other category: %v", err)
	}
	if err := s.Append(mkTx("a", 0, time.Now().UnixMilli())); err != nil {
		t.Fatalf("append orders: %v", err)
	}

	select {
	case tr := <-ch:
		if tr.Category != "orders" {
			t.Fatalf("expected only 'orders' category delivered, got %v", tr.Category)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for filtered delivery")
	}
}
