package eventstream

import (
	"context"
	"sync"
	"time"

	"github.com/cschjolb/seqflow/internal/eventstore"
	"github.com/cschjolb/seqflow/internal/txn"
	"github.com/cschjolb/seqflow/pkg/log"
)

// pendingReplayTable tracks in-flight scheduled gap-fill replays, one per
// stream, so repeated gapDetected callbacks for the same still-open gap
// don't pile up duplicate timers. A per-entry time.AfterFunc is enough here
// since the working set is one gap per stream, not lease expiry across a
// shared queue requiring a periodic full-table scan.
type pendingReplayTable struct {
	mu      sync.Mutex
	entries map[txn.ID]*time.Timer
}

func newPendingReplayTable() *pendingReplayTable {
	return &pendingReplayTable{entries: make(map[txn.ID]*time.Timer)}
}

// schedule registers fn to run after delay, unless a replay is already
// pending for id (atomic put-if-absent). Returns false if it was a no-op.
func (p *pendingReplayTable) schedule(id txn.ID, delay time.Duration, fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[id]; ok {
		return false
	}
	p.entries[id] = time.AfterFunc(delay, func() {
		p.mu.Lock()
		delete(p.entries, id)
		p.mu.Unlock()
		fn()
	})
	return true
}

// cancel stops and removes id's pending timer, if any.
func (p *pendingReplayTable) cancel(id txn.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if timer, ok := p.entries[id]; ok {
		timer.Stop()
		delete(p.entries, id)
	}
}

// has reports whether id currently has a pending scheduled replay.
func (p *pendingReplayTable) has(id txn.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[id]
	return ok
}

// gapScheduler implements txnhandler.GapObserver for the live cutover: it
// schedules a bounded range replay to fill a detected gap and feeds the
// results back through the same live handler chain. deliver is assigned
// after construction, once the chain it participates in has been built (the
// chain needs this observer, and this observer needs the chain, so the
// wiring is completed in two steps by EventStream.Resume).
type gapScheduler struct {
	es      *EventStream
	pending *pendingReplayTable
	source  eventstore.EventSource
	ctx     context.Context
	deliver func(txn.Transaction) error
}

// OnGapDetected implements txnhandler.GapObserver.
func (g *gapScheduler) OnGapDetected(id txn.ID, expected, actual int32) {
	scheduled := g.pending.schedule(id, g.es.cfg.GapReplayDelay, func() {
		err := g.source.ReplayStreamRange(g.ctx, id, expected, actual, func(it eventstore.Iterator) error {
			for {
				t, ok, err := it.Next()
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				if err := g.deliver(t); err != nil {
					return err
				}
			}
		})
		if err != nil {
			g.es.log.Error("gap replay failed", log.Str("stream", string(id)), log.Err(err))
		}
	})
	if scheduled {
		g.es.log.Debug("gap detected, replay scheduled", log.Str("stream", string(id)), log.Int("expected", int(expected)), log.Int("actual", int(actual)))
	}
}

// OnGapClosed implements txnhandler.GapObserver.
func (g *gapScheduler) OnGapClosed(id txn.ID) {
	g.pending.cancel(id)
}
