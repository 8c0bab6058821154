// Package worker runs the pool that drains warm-up jobs from a queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/matchcast/internal/adapters/mq/queue"
	"github.com/okian/matchcast/pkg/logger"
	"github.com/okian/matchcast/pkg/metrics"
)

// Handler processes one job.
type Handler interface {
	Handle(ctx context.Context, job queue.Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job queue.Job) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job queue.Job) error { return f(ctx, job) }

// Source defines how workers receive jobs.
type Source interface {
	Dequeue() <-chan queue.Job
}

// Worker processes jobs until its source is drained.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the source closes.
	Run(ctx context.Context)
	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	source  Source
	handler Handler
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	processed atomic.Int64
	failed    atomic.Int64

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(source Source, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		source:   source,
		handler:  handler,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Warn(ctx, "warm-up job failed", logger.String("team", job.Team), logger.Error(err))
			}
		}
	}
}

// Shutdown signals the worker and waits for it to return.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Processed returns the number of jobs handled successfully.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Failed returns the number of jobs whose handler returned an error.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWarmupLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.handler.Handle(ctx, job); err != nil {
		w.failed.Add(1)
		metrics.RecordWarmupJob("error")
		metrics.RecordErrorByComponent("worker", "handler_error")
		return fmt.Errorf("team %s: %w", job.Team, err)
	}
	w.processed.Add(1)
	metrics.RecordWarmupJob("ok")
	return nil
}

// Pool manages multiple workers over one source.
type Pool struct {
	workers []*InMemoryWorker
	source  Source
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. A non-positive count uses
// the number of CPUs.
func NewPool(workerCount int, source Source, handler Handler) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		source:  source,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(source, handler, WithName("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWarmupWorkers(workerCount)
	return pool
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Wait blocks until every worker has returned or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker did not finish", logger.Int("worker_id", i))
			return fmt.Errorf("wait for workers: %w", ctx.Err())
		}
	}
	metrics.UpdateWarmupWorkers(0)
	return nil
}

// Counts returns the processed and failed job totals over all workers.
func (p *Pool) Counts() (processed, failed int64) {
	for _, w := range p.workers {
		processed += w.Processed()
		failed += w.Failed()
	}
	return processed, failed
}

// Shutdown closes the source when it supports it, stops every worker and
// waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	for _, w := range p.workers {
		w.shutdownOnce.Do(func() { close(w.shutdown) })
	}
	return p.Wait(ctx)
}
