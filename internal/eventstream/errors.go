package eventstream

import (
	"errors"
	"fmt"

	"github.com/cschjolb/seqflow/internal/txn"
)

// ErrReplayTimeout is returned by Resume when the replay phase does not
// finish within Config.MaxReplayConsumptionWait.
var ErrReplayTimeout = errors.New("eventstream: replay consumption wait exceeded")

// ConsumerFailureError wraps a non-timeout error returned by a consumer
// callback during replay, identifying which transaction triggered it.
type ConsumerFailureError struct {
	StreamID txn.ID
	Txn      txn.Transaction
	Cause    error
}

func (e *ConsumerFailureError) Error() string {
	return fmt.Sprintf("eventstream: consumer failed on %s: %v", e.Txn.Key(), e.Cause)
}

func (e *ConsumerFailureError) Unwrap() error { return e.Cause }

// ConsumerHangError wraps a per-transaction timeout expiry during replay,
// distinguishing a genuinely stuck consumer from a real error it returned.
type ConsumerHangError struct {
	Txn   txn.Transaction
	Cause error
}

func (e *ConsumerHangError) Error() string {
	return fmt.Sprintf("eventstream: consumer hang on %s: %v", e.Txn.Key(), e.Cause)
}

func (e *ConsumerHangError) Unwrap() error { return e.Cause }

// StreamsReplayFailure is returned by Resume when one or more streams failed
// during replay; no live subscription is started in that case.
type StreamsReplayFailure struct {
	Failed map[txn.ID]txn.FailedStream
}

func (e *StreamsReplayFailure) Error() string {
	return fmt.Sprintf("eventstream: %d stream(s) failed during replay", len(e.Failed))
}
