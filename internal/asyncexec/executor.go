// Package asyncexec implements a hash-partitioned serial executor: N worker
// queues, each processing its submitted tasks strictly in arrival order,
// while different queues run fully in parallel. A transaction's stream ID
// always hashes to the same queue, so per-stream order is preserved without
// forcing every transaction in the system onto a single goroutine.
package asyncexec

import (
	"context"
	"hash/fnv"
	"sync"
)

// Future is the completion handle returned by Submit.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}

// Wait blocks until the task completes or ctx is done, whichever comes
// first. A context deadline exceeded does not cancel the underlying task —
// the task keeps running on its partition worker; Wait merely stops waiting
// for it.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done reports whether the task has completed, non-blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

type partition struct {
	tasks chan func()
}

// Executor is a hash-partitioned serial executor.
type Executor struct {
	partitions []*partition
	wg         sync.WaitGroup
}

// New starts an Executor with the given number of partitions. Each
// partition has its own unbounded-ish (queueDepth-buffered) task channel and
// a single goroutine draining it in order.
func New(numPartitions, queueDepth int) *Executor {
	if numPartitions <= 0 {
		numPartitions = 1
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	e := &Executor{partitions: make([]*partition, numPartitions)}
	for i := range e.partitions {
		p := &partition{tasks: make(chan func(), queueDepth)}
		e.partitions[i] = p
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return e
}

// partitionFor deterministically maps a key to one of the executor's
// partitions via FNV-1a: stable, allocation-light hashing over the keyspace.
func (e *Executor) partitionFor(key string) *partition {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return e.partitions[h.Sum32()%uint32(len(e.partitions))]
}

// Submit routes task onto the partition owning key and returns a Future for
// its completion. Two submissions with the same key always land on the same
// partition and run in submission order relative to each other; submissions
// with different keys may run concurrently.
func (e *Executor) Submit(key string, task func() error) *Future {
	f := newFuture()
	e.partitionFor(key).tasks <- func() {
		f.complete(task())
	}
	return f
}

// Close stops accepting new work and waits for all partitions to drain
// their already-queued tasks.
func (e *Executor) Close() {
	for _, p := range e.partitions {
		close(p.tasks)
	}
	e.wg.Wait()
}

// NumPartitions reports how many partitions the executor was built with.
func (e *Executor) NumPartitions() int { return len(e.partitions) }
