// Package writeback persists score mutations to durable storage
// asynchronously. Mutations are journaled into bounded queues sharded
// by measure, one writer per shard, so entries touching the same
// measure are always flushed in the order they were committed. A full
// shard applies backpressure instead of dropping or reordering writes.
package writeback

import (
	"sync"

	"github.com/fivemin/harmony/internal/domain/notes"
	"github.com/fivemin/harmony/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 4096
)

// entry is a single journaled mutation. Exactly one of the two shapes
// is set: a point update to one note, or a full snapshot of a measure
// after a structural rewrite. measure routes the entry to its shard.
type entry struct {
	note     *notes.Note
	measure  int
	snapshot []notes.Note
}

// Queue is an in-memory bounded journal shard backed by a buffered
// channel.
type Queue struct {
	entries  chan entry
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a bounded journal queue.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = defaultQueueCapacity
	}
	return &Queue{
		entries:  make(chan entry, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an entry to the queue without blocking.
// Returns false if the queue is full or closed.
func (q *Queue) Enqueue(e entry) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("writeback", "queue_closed")
		return false
	}

	select {
	case q.entries <- e:
		metrics.RecordWritebackEnqueue()
		return true
	default:
		return false
	}
}

// EnqueueWait adds an entry to the queue, blocking until space frees
// up. Returns ErrClosed if the queue has been closed.
func (q *Queue) EnqueueWait(e entry) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("writeback", "queue_closed")
		return ErrClosed
	}
	q.entries <- e
	metrics.RecordWritebackEnqueue()
	return nil
}

// Dequeue returns the channel the shard's writer drains. The channel
// is closed when the queue is closed; buffered entries remain
// receivable until drained.
func (q *Queue) Dequeue() <-chan entry {
	return q.entries
}

// Len returns the current number of journaled entries.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Close stops accepting new entries. Buffered entries stay available to
// consumers until the channel is drained.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil // already closed
	}

	close(q.entries)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *Queue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
