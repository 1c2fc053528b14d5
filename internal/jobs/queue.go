// Package jobs runs fire-and-forget background work. Repository indexing and
// commit polling are triggered by API requests but must not block or fail
// them; the queue decouples the two and keeps a panic in one job from
// reaching the server.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("job queue closed")

// ErrQueueFull is returned when the backlog is at capacity. Callers drop the
// job and report; background work is best-effort.
var ErrQueueFull = errors.New("job queue full")

type job struct {
	name string
	fn   func(context.Context)
}

// Queue is a bounded queue with a fixed worker pool.
type Queue struct {
	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// New starts a queue with the given worker count and backlog capacity.
func New(workers, capacity int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		jobs:   make(chan job, capacity),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit enqueues a job. It never blocks: a full backlog returns
// ErrQueueFull instead.
func (q *Queue) Submit(name string, fn func(context.Context)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job{name: name, fn: fn}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.run(j)
	}
}

// run executes one job, absorbing panics.
func (q *Queue) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("job panicked",
				"job", j.name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	start := time.Now()
	j.fn(q.ctx)
	q.logger.Debug("job finished", "job", j.name, "elapsed", time.Since(start))
}

// Close stops accepting jobs, drains the backlog and waits for running jobs
// to finish. In-flight jobs keep a live context until they return.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	q.cancel()
}
