package eventstream

import (
	"context"
	"time"

	"github.com/cschjolb/seqflow/internal/asyncexec"
	"github.com/cschjolb/seqflow/internal/eventstore"
	"github.com/cschjolb/seqflow/internal/txn"
)

const defaultConsumeTimeout = 60 * time.Second

// handoff pairs a transaction with the Future tracking its submission to the
// partitioned executor, so the awaiter can wait on completions strictly in
// hand-off (journal) order rather than completion order.
type handoff struct {
	t   txn.Transaction
	fut *asyncexec.Future
}

// runReplay drains it, submitting consume(t) for each transaction onto exec
// (partitioned by stream ID so cross-stream replay parallelizes while each
// stream stays in order), through a hand-off channel of capacity bufferSize.
// Closing handoffCh on iterator exhaustion lets the awaiter range over it
// without a busy-poll.
//
// runReplay halts on the first failure in hand-off order: a later
// transaction that happened to complete first on its own partition is never
// awaited once an earlier one has failed. It returns the highest transaction
// timestamp it observed complete successfully, or nil if none did.
func runReplay(ctx context.Context, it eventstore.Iterator, exec *asyncexec.Executor, consume func(txn.Transaction) error, bufferSize int, consumeTimeout time.Duration) (*int64, error) {
	if consumeTimeout <= 0 {
		consumeTimeout = defaultConsumeTimeout
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}

	// producerCtx is cancelled as soon as the awaiter stops draining, so a
	// producer blocked offering the next handoff (buffer full, nobody
	// reading) doesn't leak past the first failure.
	producerCtx, cancelProducer := context.WithCancel(ctx)
	defer cancelProducer()

	handoffCh := make(chan handoff, bufferSize)
	produceErrCh := make(chan error, 1)

	go func() {
		defer close(handoffCh)
		for {
			t, ok, err := it.Next()
			if err != nil {
				produceErrCh <- err
				return
			}
			if !ok {
				produceErrCh <- nil
				return
			}
			fut := exec.Submit(string(t.StreamID), func() error { return consume(t) })
			select {
			case handoffCh <- handoff{t: t, fut: fut}:
			case <-producerCtx.Done():
				produceErrCh <- producerCtx.Err()
				return
			}
		}
	}()

	var lastTs *int64
	for h := range handoffCh {
		waitCtx, cancel := context.WithTimeout(ctx, consumeTimeout)
		err := h.fut.Wait(waitCtx)
		hung := err != nil && waitCtx.Err() != nil && ctx.Err() == nil
		cancel()
		if err != nil {
			if hung {
				return lastTs, &ConsumerHangError{Txn: h.t, Cause: err}
			}
			return lastTs, &ConsumerFailureError{StreamID: h.t.StreamID, Txn: h.t, Cause: err}
		}
		ts := h.t.TimestampMs
		lastTs = &ts
	}
	if err := <-produceErrCh; err != nil {
		return lastTs, err
	}
	return lastTs, nil
}

// runReplayBounded wraps runReplay with an overall deadline, returning
// ErrReplayTimeout if it does not finish in time. maxWait <= 0 means no
// overall bound.
func runReplayBounded(ctx context.Context, it eventstore.Iterator, exec *asyncexec.Executor, consume func(txn.Transaction) error, bufferSize int, consumeTimeout, maxWait time.Duration) (*int64, error) {
	if maxWait <= 0 {
		return runReplay(ctx, it, exec, consume, bufferSize, consumeTimeout)
	}

	type result struct {
		ts  *int64
		err error
	}
	done := make(chan result, 1)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ts, err := runReplay(runCtx, it, exec, consume, bufferSize, consumeTimeout)
		done <- result{ts: ts, err: err}
	}()

	select {
	case r := <-done:
		return r.ts, r.err
	case <-time.After(maxWait):
		cancel()
		<-done
		return nil, ErrReplayTimeout
	case <-ctx.Done():
		cancel()
		<-done
		return nil, ctx.Err()
	}
}
