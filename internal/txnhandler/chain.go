package txnhandler

import "github.com/cschjolb/seqflow/internal/txn"

// BuildLiveChain composes the three-layer live handler chain: FailSafe ∘
// Sequenced ∘ dispatch, where dispatch is typically an
// asyncexec.TransactionHandler.Deliver bound to a context. Each layer holds
// only a reference to the next layer's Handle function, keeping the
// composition mixin-free.
func BuildLiveChain(
	failed *FailedStreamTable,
	reporter FailureReporter,
	expectedRev ExpectedRevisionFunc,
	bufferLimit int,
	gaps GapObserver,
	dup DuplicateObserver,
	dispatch func(txn.Transaction) error,
) func(txn.Transaction) error {
	sequenced := NewSequencedTransactionHandler(expectedRev, bufferLimit, gaps, dup, dispatch)
	failSafe := NewFailSafeTransactionHandler(failed, reporter, sequenced.Handle)
	return failSafe.Handle
}
