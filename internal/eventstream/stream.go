// Package eventstream implements the ordered delivery pipeline's outer
// lifecycle: EventStream.Resume drives a DurableConsumer through a cold
// replay from its EventSource and then cuts over to the live pub/sub feed
// without losing or duplicating events.
package eventstream

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/cschjolb/seqflow/internal/asyncexec"
	"github.com/cschjolb/seqflow/internal/eventstore"
	"github.com/cschjolb/seqflow/internal/txn"
	"github.com/cschjolb/seqflow/internal/txnhandler"
	"github.com/cschjolb/seqflow/pkg/log"
)

// Config tunes an EventStream's replay pipeline and live cutover.
type Config struct {
	// ReplayBuffer bounds the replay hand-off queue and the executor's
	// per-partition queue depth. Required to be > 0; defaults to 256.
	ReplayBuffer int
	// LiveBuffer bounds the live sequencer's out-of-order buffer per stream.
	// <= 0 means unbounded, the default: callers wanting a bound pass one
	// explicitly, since a slow gap replay can otherwise legitimately pile up
	// more out-of-order live transactions than ReplayBuffer would allow.
	LiveBuffer int
	// GapReplayDelay is how long a live gap sits before its range-replay
	// fires; 0 means "next tick" (fires almost immediately).
	GapReplayDelay time.Duration
	// MaxClockSkew is subtracted from the replay/bridge start timestamp to
	// tolerate clock drift between publisher and consumer.
	MaxClockSkew time.Duration
	// MaxReplayConsumptionWait bounds the whole replay phase; 0 means no
	// bound.
	MaxReplayConsumptionWait time.Duration
	// Workers is the partition count for the hash-partitioned executor; <=0
	// defaults to runtime.GOMAXPROCS(0).
	Workers int
	// ConsumeTimeout bounds each individual consumer call; <=0 defaults to
	// 60s.
	ConsumeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReplayBuffer <= 0 {
		c.ReplayBuffer = 256
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// EventStream drives one DurableConsumer's replay-then-live lifecycle
// against a single EventSource.
type EventStream struct {
	source eventstore.EventSource
	cfg    Config
	log    log.Logger
}

// New constructs an EventStream over source. logger may be nil, in which
// case log output is discarded.
func New(source eventstore.EventSource, cfg Config, logger log.Logger) *EventStream {
	if logger == nil {
		logger = log.NewLogger(log.WithOutput(log.NullOutput{}))
	}
	return &EventStream{source: source, cfg: cfg.withDefaults(), log: logger.WithComponent("eventstream")}
}

// Resume implements the eight-step replay→live cutover protocol: replay
// what's already journaled, build the live handler chain, subscribe, then
// bridge the replay/live gap with a second bounded replay before handing
// back control. It returns the live Subscription handle once the bridging
// replay has completed; the caller cancels it to stop consumption.
func (es *EventStream) Resume(ctx context.Context, consumer DurableConsumer) (eventstore.Subscription, error) {
	startingMs := time.Now().UnixMilli()

	categories := categorySlice(consumer.CategoryFilter())
	filterFn := categoryFilterFunc(consumer.CategoryFilter())

	exec := asyncexec.New(es.cfg.Workers, es.cfg.ReplayBuffer)
	failed := txnhandler.NewFailedStreamTable()

	lastReplayTs, err := es.runReplayPhase(ctx, consumer, categories, exec)
	if err != nil {
		var cf *ConsumerFailureError
		if !errors.As(err, &cf) {
			exec.Close()
			return nil, err
		}
		es.log.Error("stream failed during replay, isolating",
			log.Str("stream", string(cf.StreamID)), log.Str("category", string(cf.Txn.Category)), log.Err(cf.Cause))
		failed.MarkFailed(cf.StreamID, cf.Txn.Category, cf.Cause)
	}

	if !failed.Empty() {
		exec.Close()
		return nil, &StreamsReplayFailure{Failed: failed.Snapshot()}
	}

	live := consumer.OnLive()
	pending := newPendingReplayTable()

	liveDeliver := asyncexec.NewTransactionHandler(exec, es.cfg.ConsumeTimeout, live.ConsumeLive)
	dispatch := func(t txn.Transaction) error { return liveDeliver.Deliver(ctx, t) }

	gaps := &gapScheduler{es: es, pending: pending, source: es.source, ctx: ctx}
	reporter := func(id txn.ID, cat txn.CAT, err error) {
		es.log.Error("stream failed during live delivery, isolating",
			log.Str("stream", string(id)), log.Str("category", string(cat)), log.Err(err))
	}

	liveChain := txnhandler.BuildLiveChain(failed, reporter, live.ExpectedRevision, es.cfg.LiveBuffer, gaps, nil, dispatch)
	gaps.deliver = liveChain

	sub, err := es.source.Subscribe(ctx, filterFn, func(t txn.Transaction) {
		if err := liveChain(t); err != nil {
			es.log.Error("live delivery failed", log.Str("stream", string(t.StreamID)), log.Err(err))
		}
	})
	if err != nil {
		exec.Close()
		return nil, err
	}

	bridgeFrom := startingMs
	if lastReplayTs != nil {
		bridgeFrom = *lastReplayTs
	}
	bridgeFrom -= es.cfg.MaxClockSkew.Milliseconds()

	// liveChain dispatches onto exec itself, so the bridge runs it on a
	// separate executor: running it on one of exec's own partition workers
	// would block that worker waiting for a task queued behind it.
	bridgeExec := asyncexec.New(es.cfg.Workers, es.cfg.ReplayBuffer)
	bridgeErr := es.source.ReplayFrom(ctx, bridgeFrom, categories, func(it eventstore.Iterator) error {
		_, err := runReplayBounded(ctx, it, bridgeExec, liveChain, es.cfg.ReplayBuffer, es.cfg.ConsumeTimeout, es.cfg.MaxReplayConsumptionWait)
		return err
	})
	bridgeExec.Close()
	if bridgeErr != nil {
		sub.Cancel()
		exec.Close()
		return nil, bridgeErr
	}

	if !failed.Empty() {
		sub.Cancel()
		exec.Close()
		return nil, &StreamsReplayFailure{Failed: failed.Snapshot()}
	}

	return sub, nil
}

// runReplayPhase runs the cold-replay stage directly against
// consumer.ConsumeReplay (no FailSafe/Sequenced wrapping: the journal
// already guarantees dense per-stream order, so C2/C3 have nothing to do
// during replay), and reports the highest timestamp observed.
func (es *EventStream) runReplayPhase(ctx context.Context, consumer DurableConsumer, categories []txn.CAT, exec *asyncexec.Executor) (*int64, error) {
	var lastTs *int64
	var runErr error

	replayFn := func(it eventstore.Iterator) error {
		ts, err := runReplayBounded(ctx, it, exec, consumer.ConsumeReplay, es.cfg.ReplayBuffer, es.cfg.ConsumeTimeout, es.cfg.MaxReplayConsumptionWait)
		lastTs = ts
		runErr = err
		return err
	}

	var srcErr error
	if last := consumer.LastTimestamp(); last == nil {
		srcErr = es.source.Replay(ctx, categories, replayFn)
	} else {
		since := *last - es.cfg.MaxClockSkew.Milliseconds()
		srcErr = es.source.ReplayFrom(ctx, since, categories, replayFn)
	}
	if srcErr != nil {
		return lastTs, srcErr
	}
	return lastTs, runErr
}

func categorySlice(filter map[txn.CAT]struct{}) []txn.CAT {
	if len(filter) == 0 {
		return nil
	}
	out := make([]txn.CAT, 0, len(filter))
	for c := range filter {
		out = append(out, c)
	}
	return out
}

func categoryFilterFunc(filter map[txn.CAT]struct{}) eventstore.CategoryFilter {
	if len(filter) == 0 {
		return eventstore.AllCategories
	}
	return func(c txn.CAT) bool {
		_, ok := filter[c]
		return ok
	}
}
