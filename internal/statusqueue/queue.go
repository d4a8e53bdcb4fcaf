// Package statusqueue buffers pending status writes until enough of them
// have accumulated to be flushed as one batch.
package statusqueue

import (
	"sync"

	"github.com/MrSnakeDoc/heartbeat/internal/domain"
)

// DefaultBatchSize is the flush threshold used when none is configured.
const DefaultBatchSize = 100

// Queue is an unbounded FIFO of status updates. Appending and the
// threshold check-and-drain happen in one critical section, so concurrent
// producers can neither lose an entry nor drain the same entries twice.
type Queue struct {
	mu        sync.Mutex
	entries   []domain.StatusUpdate
	batchSize int
}

// New returns an empty queue flushing every batchSize entries. Values
// below 1 fall back to DefaultBatchSize.
func New(batchSize int) *Queue {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Queue{
		entries:   make([]domain.StatusUpdate, 0, batchSize),
		batchSize: batchSize,
	}
}

// Push appends u. When the queue reaches the batch size, the oldest
// batchSize entries are removed and returned in arrival order; otherwise
// Push returns nil.
func (q *Queue) Push(u domain.StatusUpdate) []domain.StatusUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, u)
	if len(q.entries) < q.batchSize {
		return nil
	}
	return q.takeLocked(q.batchSize)
}

// Drain removes and returns every pending entry, oldest first.
func (q *Queue) Drain() []domain.StatusUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}
	return q.takeLocked(len(q.entries))
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// BatchSize returns the flush threshold.
func (q *Queue) BatchSize() int {
	return q.batchSize
}

func (q *Queue) takeLocked(n int) []domain.StatusUpdate {
	batch := make([]domain.StatusUpdate, n)
	copy(batch, q.entries[:n])

	rest := make([]domain.StatusUpdate, len(q.entries)-n, max(cap(q.entries), q.batchSize))
	copy(rest, q.entries[n:])
	q.entries = rest

	return batch
}
