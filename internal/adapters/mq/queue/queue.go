// Package queue holds the bounded in-memory queue feeding warm-up workers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/matchcast/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Job asks a worker to compute and cache the report of one team under a
// fitted model.
type Job struct {
	ModelID string
	Team    string
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. It returns false when the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool
	// Dequeue returns the channel workers read from. It is closed after
	// Close once the remaining jobs are drained.
	Dequeue() <-chan Job
	Len() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)
	metrics.UpdateWarmupQueueSize(0)
	return q
}

// Enqueue adds a job without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case <-ctx.Done():
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
	}

	select {
	case q.jobs <- j:
		metrics.UpdateWarmupQueueSize(len(q.jobs))
		return true
	default:
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns the job channel.
func (q *InMemoryQueue) Dequeue() <-chan Job {
	return q.jobs
}

// Len returns the number of queued jobs.
func (q *InMemoryQueue) Len() int {
	size := len(q.jobs)
	metrics.UpdateWarmupQueueSize(size)
	return size
}

// Close stops accepting jobs. Queued jobs remain readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
