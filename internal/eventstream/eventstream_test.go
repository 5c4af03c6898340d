package eventstream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cschjolb/seqflow/internal/eventstore/memstore"
	"github.com/cschjolb/seqflow/internal/txn"
	"github.com/cschjolb/seqflow/pkg/log"
)

// testConsumer is a DurableConsumer/LiveConsumer test double recording every
// transaction it is asked to consume, in delivery order, with optional
// per-key error injection.
type testConsumer struct {
	mu           sync.Mutex
	delivered    []txn.Transaction
	failKeys     map[string]error
	lastTs       *int64
	categories   map[txn.CAT]struct{}
	expectedRevs map[txn.ID]int32
}

func newTestConsumer() *testConsumer {
	return &testConsumer{expectedRevs: map[txn.ID]int32{}}
}

func (c *testConsumer) LastTimestamp() *int64                    { return c.lastTs }
func (c *testConsumer) CategoryFilter() map[txn.CAT]struct{}     { return c.categories }
func (c *testConsumer) OnLive() LiveConsumer                     { return c }
func (c *testConsumer) ExpectedRevision(id txn.ID) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.expectedRevs[id]; ok {
		return r
	}
	return 0
}

func (c *testConsumer) ConsumeReplay(t txn.Transaction) error { return c.consume(t) }
func (c *testConsumer) ConsumeLive(t txn.Transaction) error   { return c.consume(t) }

func (c *testConsumer) consume(t txn.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.failKeys[t.Key()]; ok {
		return err
	}
	c.delivered = append(c.delivered, t)
	// A real durable consumer persists its own per-stream position; track it
	// here so ExpectedRevision reflects what replay has already consumed.
	if t.Revision+1 > c.expectedRevs[t.StreamID] {
		c.expectedRevs[t.StreamID] = t.Revision + 1
	}
	return nil
}

func (c *testConsumer) snapshot() []txn.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]txn.Transaction, len(c.delivered))
	copy(out, c.delivered)
	return out
}

func (c *testConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.delivered)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

func testConfig() Config {
	return Config{
		ReplayBuffer:             16,
		GapReplayDelay:           5 * time.Millisecond,
		MaxClockSkew:             0,
		MaxReplayConsumptionWait: 2 * time.Second,
		Workers:                  4,
		ConsumeTimeout:           time.Second,
	}
}

func testLogger() log.Logger {
	return log.NewLogger(log.WithOutput(log.NullOutput{}))
}

func mkTx(streamID string, rev int32, tsMs int64) txn.Transaction {
	return txn.Transaction{TimestampMs: tsMs, Category: "orders", StreamID: txn.ID(streamID), Revision: rev}
}

// S1: full cold replay delivers everything already journaled, in order.
func TestResumeFullReplayDeliversJournaled(t *testing.T) {
	store := memstore.New()
	for i := int32(0); i < 5; i++ {
		if err := store.Append(mkTx("s1", i, int64(i))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	es := New(store, testConfig(), testLogger())
	consumer := newTestConsumer()

	sub, err := es.Resume(context.Background(), consumer)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	defer sub.Cancel()

	delivered := consumer.snapshot()
	if len(delivered) != 5 {
		t.Fatalf("expected 5 replayed transactions, got %d", len(delivered))
	}
	for i, tr := range delivered {
		if tr.Revision != int32(i) {
			t.Fatalf("delivered out of order: %v", delivered)
		}
	}
}

// Live delivery after cutover: a transaction appended after Resume returns
// must reach the consumer via the live subscription.
func TestResumeDeliversLiveAfterCutover(t *testing.T) {
	store := memstore.New()
	es := New(store, testConfig(), testLogger())
	consumer := newTestConsumer()

	sub, err := es.Resume(context.Background(), consumer)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	defer sub.Cancel()

	if err := store.Append(mkTx("s1", 0, time.Now().UnixMilli())); err != nil {
		t.Fatalf("append: %v", err)
	}

	waitUntil(t, time.Second, func() bool { return consumer.count() == 1 })
}

// Live gap lifecycle: revision 1 reaches the durable journal but never
// reaches the live subscriber (simulating an unreliable pub/sub drop);
// revision 2 arrives live first, opening a gap that the scheduled
// ReplayStreamRange must close by pulling revision 1 from the journal.
func TestResumeLiveGapClosedByScheduledReplay(t *testing.T) {
	store := memstore.New()
	if err := store.Append(mkTx("s1", 0, 0)); err != nil {
		t.Fatalf("append rev0: %v", err)
	}

	es := New(store, testConfig(), testLogger())
	consumer := newTestConsumer()

	sub, err := es.Resume(context.Background(), consumer)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	defer sub.Cancel()

	waitUntil(t, time.Second, func() bool { return consumer.count() >= 1 })

	// Revision 1 lands in the journal but is dropped by the live feed;
	// revision 2 is delivered live, opening a gap at stream s1.
	if err := store.AppendMissedByLiveFeed(mkTx("s1", 1, time.Now().UnixMilli())); err != nil {
		t.Fatalf("append rev1: %v", err)
	}
	if err := store.Append(mkTx("s1", 2, time.Now().UnixMilli())); err != nil {
		t.Fatalf("append rev2: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool {
		seen := map[int32]int{}
		for _, tr := range consumer.snapshot() {
			seen[tr.Revision]++
		}
		return seen[1] == 1 && seen[2] == 1
	})

	seen := map[int32]int{}
	for _, tr := range consumer.snapshot() {
		seen[tr.Revision]++
	}
	if seen[1] != 1 || seen[2] != 1 {
		t.Fatalf("expected each revision delivered exactly once, got counts %v", seen)
	}
}

// S6: a consumer failure during replay isolates the stream and aborts
// Resume with StreamsReplayFailure, without starting a live subscription.
func TestResumeReplayFailureAbortsWithoutSubscribing(t *testing.T) {
	store := memstore.New()
	failing := mkTx("bad", 0, 0)
	if err := store.Append(failing); err != nil {
		t.Fatalf("append: %v", err)
	}

	es := New(store, testConfig(), testLogger())
	consumer := newTestConsumer()
	boom := errors.New("boom")
	consumer.failKeys = map[string]error{failing.Key(): boom}

	_, err := es.Resume(context.Background(), consumer)
	if err == nil {
		t.Fatalf("expected resume to fail")
	}
	var failure *StreamsReplayFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected StreamsReplayFailure, got %T: %v", err, err)
	}
	entry, ok := failure.Failed[failing.StreamID]
	if !ok {
		t.Fatalf("expected %q recorded as failed, got %v", failing.StreamID, failure.Failed)
	}
	if !errors.Is(entry.Err, boom) {
		t.Fatalf("expected error chain to include boom, got %v", entry.Err)
	}
}

// Duplicates arriving during the live-bridging overlap window must be
// absorbed, not redelivered, thanks to the sequencer's r < expected branch.
func TestResumeBridgeOverlapDeduplicates(t *testing.T) {
	store := memstore.New()
	ts := time.Now().UnixMilli()
	if err := store.Append(mkTx("s1", 0, ts)); err != nil {
		t.Fatalf("append: %v", err)
	}

	es := New(store, testConfig(), testLogger())
	consumer := newTestConsumer()

	sub, err := es.Resume(context.Background(), consumer)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	defer sub.Cancel()

	waitUntil(t, time.Second, func() bool { return consumer.count() >= 1 })

	seen := map[int32]int{}
	for _, tr := range consumer.snapshot() {
		seen[tr.Revision]++
	}
	if seen[0] != 1 {
		t.Fatalf("expected revision 0 delivered exactly once across replay+bridge, got %d", seen[0])
	}
}
