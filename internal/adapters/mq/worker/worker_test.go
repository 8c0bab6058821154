package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/matchcast/internal/adapters/mq/queue"
	worker "github.com/okian/matchcast/internal/adapters/mq/worker"
	logging "github.com/okian/matchcast/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockSource struct {
	jobs chan queue.Job
}

func newMockSource(jobs ...queue.Job) *mockSource {
	ch := make(chan queue.Job, len(jobs)+10)
	for _, j := range jobs {
		ch <- j
	}
	return &mockSource{jobs: ch}
}

func (m *mockSource) Dequeue() <-chan queue.Job { return m.jobs }

func (m *mockSource) Close() error {
	close(m.jobs)
	return nil
}

type recordingHandler struct {
	mu     sync.Mutex
	seen   []string
	errors map[string]error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{errors: make(map[string]error)}
}

func (h *recordingHandler) Handle(_ context.Context, job queue.Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err, ok := h.errors[job.Team]; ok {
		return err
	}
	h.seen = append(h.seen, job.Team)
	return nil
}

func (h *recordingHandler) teams() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a closed source", t, func() {
		_ = logging.Init()
		src := newMockSource(queue.Job{Team: "Arsenal"}, queue.Job{Team: "Chelsea"}, queue.Job{Team: "Everton"})
		_ = src.Close()
		h := newRecordingHandler()
		h.errors["Chelsea"] = errors.New("boom")

		w := worker.NewInMemoryWorker(src, h, worker.WithName("test-worker"))

		convey.Convey("When it runs", func() {
			w.Run(context.Background())

			convey.Convey("Then it drains the source and counts failures", func() {
				convey.So(h.teams(), convey.ShouldResemble, []string{"Arsenal", "Everton"})
				convey.So(w.Processed(), convey.ShouldEqual, 2)
				convey.So(w.Failed(), convey.ShouldEqual, 1)
			})
		})
	})

	convey.Convey("Given a worker on an open source", t, func() {
		_ = logging.Init()
		src := newMockSource()
		w := worker.NewInMemoryWorker(src, worker.HandlerFunc(func(context.Context, queue.Job) error { return nil }))
		go w.Run(context.Background())

		convey.Convey("When it is shut down", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			convey.Convey("Then it stops without error", func() {
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over an in-memory queue", t, func() {
		_ = logging.Init()
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(50))
		h := newRecordingHandler()
		pool := worker.NewPool(4, q, h)

		convey.Convey("When jobs are enqueued and the queue is closed", func() {
			pool.Start(ctx)
			for i := 0; i < 20; i++ {
				q.Enqueue(ctx, queue.Job{ModelID: "m", Team: string(rune('A' + i))})
			}
			_ = q.Close()

			waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			err := pool.Wait(waitCtx)

			convey.Convey("Then every job is handled exactly once", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(h.teams()), convey.ShouldEqual, 20)
				processed, failed := pool.Counts()
				convey.So(processed, convey.ShouldEqual, 20)
				convey.So(failed, convey.ShouldEqual, 0)
				convey.So(pool.Size(), convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When the pool is shut down before any job", func() {
			pool.Start(ctx)
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			convey.Convey("Then workers stop and the queue is closed", func() {
				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, newMockSource(), newRecordingHandler())
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
