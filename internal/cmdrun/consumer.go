package cmdrun

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cschjolb/seqflow/internal/eventstream"
	"github.com/cschjolb/seqflow/internal/txn"
	"github.com/cschjolb/seqflow/pkg/log"
)

// loggingConsumer is the demo DurableConsumer the CLI's run command drives:
// it logs every transaction it is handed and tracks its own per-stream
// position in memory, standing in for a real consumer's durable checkpoint
// store. groupID identifies this run of the demo consumer in its log
// output, the way a real deployment would tag log lines with the consumer
// group resuming a stream.
type loggingConsumer struct {
	log     log.Logger
	groupID uuid.UUID

	mu       sync.Mutex
	lastTs   *int64
	expected map[txn.ID]int32
}

func newLoggingConsumer(logger log.Logger) *loggingConsumer {
	groupID := uuid.New()
	return &loggingConsumer{
		log:      logger.With(log.Str("consumer_group", groupID.String())),
		groupID:  groupID,
		expected: map[txn.ID]int32{},
	}
}

// GroupID returns the demo consumer's generated identity.
func (c *loggingConsumer) GroupID() uuid.UUID { return c.groupID }

func (c *loggingConsumer) LastTimestamp() *int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTs
}

// CategoryFilter returns nil, meaning "no filter" — every category.
func (c *loggingConsumer) CategoryFilter() map[txn.CAT]struct{} { return nil }

func (c *loggingConsumer) OnLive() eventstream.LiveConsumer { return c }

func (c *loggingConsumer) ExpectedRevision(id txn.ID) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expected[id]
}

func (c *loggingConsumer) ConsumeReplay(t txn.Transaction) error { return c.consume("replay", t) }
func (c *loggingConsumer) ConsumeLive(t txn.Transaction) error   { return c.consume("live", t) }

func (c *loggingConsumer) consume(phase string, t txn.Transaction) error {
	c.mu.Lock()
	if next := t.Revision + 1; next > c.expected[t.StreamID] {
		c.expected[t.StreamID] = next
	}
	ts := t.TimestampMs
	c.lastTs = &ts
	c.mu.Unlock()

	c.log.Info("delivered transaction",
		log.Str("phase", phase),
		log.Str("stream", string(t.StreamID)),
		log.Str("category", string(t.Category)),
		log.Int("revision", int(t.Revision)),
	)
	return nil
}
