package asyncexec

import (
	"context"
	"fmt"
	"time"

	"github.com/cschjolb/seqflow/internal/txn"
)

// TransactionHandler dispatches each transaction onto the partitioned
// executor keyed by stream ID, then awaits completion with a per-transaction
// timeout, wrapping a timeout as ConsumerHang so callers can distinguish it
// from a genuine consumer error.
type TransactionHandler struct {
	exec    *Executor
	deliver func(txn.Transaction) error
	timeout time.Duration
}

// ErrConsumerHang is wrapped around the awaiting context's error when a
// per-transaction await exceeds the configured timeout.
type ErrConsumerHang struct {
	Txn txn.Transaction
	Err error
}

func (e *ErrConsumerHang) Error() string {
	return fmt.Sprintf("asyncexec: consumer hang on %s after timeout: %v", e.Txn.Key(), e.Err)
}
func (e *ErrConsumerHang) Unwrap() error { return e.Err }

// NewTransactionHandler wraps deliver so that each call is dispatched onto
// exec, partitioned by StreamID, and awaited with timeout (0 = no timeout).
func NewTransactionHandler(exec *Executor, timeout time.Duration, deliver func(txn.Transaction) error) *TransactionHandler {
	return &TransactionHandler{exec: exec, deliver: deliver, timeout: timeout}
}

// Submit dispatches t and returns its completion Future without waiting.
func (h *TransactionHandler) Submit(t txn.Transaction) *Future {
	return h.exec.Submit(string(t.StreamID), func() error {
		return h.deliver(t)
	})
}

// Deliver dispatches t and blocks until it completes or the handler's
// timeout elapses.
func (h *TransactionHandler) Deliver(ctx context.Context, t txn.Transaction) error {
	f := h.Submit(t)
	waitCtx := ctx
	var cancel context.CancelFunc
	if h.timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	if err := f.Wait(waitCtx); err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return &ErrConsumerHang{Txn: t, Err: err}
		}
		return err
	}
	return nil
}
