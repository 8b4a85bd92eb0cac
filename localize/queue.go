package localize

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// ErrWaitTimeout is returned by Pop when no batch arrived within the wait window.
var ErrWaitTimeout = errors.New("timed out waiting for a batch")

// BatchQueue is a thread-safe, capacity-limited FIFO of ready batches.
// Insertion beyond capacity drops the oldest entries first, preserving the
// newest data; drops are counted, not errors. The producer never blocks.
type BatchQueue struct {
	mu       sync.Mutex
	batches  []*Batch
	maxDepth int
	dropped  atomic.Int64

	// signal carries wake-ups to the consumer; capacity one because a single
	// pending wake-up is enough to force a re-check of the queue.
	signal chan struct{}
	clock  clock.Clock
}

// NewBatchQueue returns a queue holding at most maxDepth batches. A depth
// below one is clamped to one.
func NewBatchQueue(maxDepth int, clk clock.Clock) *BatchQueue {
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &BatchQueue{
		maxDepth: maxDepth,
		signal:   make(chan struct{}, 1),
		clock:    clk,
	}
}

// Push appends a batch, trimming the oldest entries if capacity is exceeded,
// and wakes the consumer.
func (q *BatchQueue) Push(batch *Batch) {
	q.mu.Lock()
	q.batches = append(q.batches, batch)
	if over := len(q.batches) - q.maxDepth; over > 0 {
		q.batches = q.batches[over:]
		q.dropped.Add(int64(over))
	}
	q.mu.Unlock()
	q.Wake()
}

// Wake nudges a waiting consumer without enqueueing anything. The gate calls
// this after every finished batch, dispatched or not, so the consumer never
// misses the terminal batch.
func (q *BatchQueue) Wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest batch, blocking until one is available,
// the timeout elapses (ErrWaitTimeout), or the context is done. A wake-up
// with an empty queue goes back to waiting.
func (q *BatchQueue) Pop(ctx context.Context, timeout time.Duration) (*Batch, error) {
	timer := q.clock.Timer(timeout)
	defer timer.Stop()
	for {
		q.mu.Lock()
		if len(q.batches) > 0 {
			batch := q.batches[0]
			q.batches = q.batches[1:]
			q.mu.Unlock()
			return batch, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrWaitTimeout
		case <-q.signal:
		}
	}
}

// Len returns the number of batches currently queued.
func (q *BatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

// Dropped returns the total number of batches evicted by overflow.
func (q *BatchQueue) Dropped() int64 {
	return q.dropped.Load()
}
