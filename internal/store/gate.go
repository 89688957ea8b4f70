package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrStoreClosed is returned for operations submitted to a gate whose worker
// has terminated. Pending operations fail with it as well; nothing is
// retried.
var ErrStoreClosed = errors.New("store closed")

type gateJob struct {
	op   func() error
	done chan error
}

// Gate serializes storage access: a single dedicated worker goroutine drains
// a job queue and runs each operation to completion before starting the
// next. Request handlers submit closures and suspend until their operation
// finished. Execution order is queue submission order, which is what keeps
// row-id order deterministic under concurrent requests.
type Gate struct {
	jobs     chan gateJob
	stopping atomic.Bool

	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewGate(queueSize int) *Gate {
	if queueSize <= 0 {
		queueSize = 64
	}
	g := &Gate{
		jobs: make(chan gateJob, queueSize),
	}
	g.wg.Add(1)
	go g.run()
	return g
}

// run replies to every job exactly once: with the operation's result, or
// with ErrStoreClosed for jobs still queued when the gate shuts down.
func (g *Gate) run() {
	defer g.wg.Done()
	for job := range g.jobs {
		if g.stopping.Load() {
			job.done <- ErrStoreClosed
			continue
		}
		job.done <- job.op()
	}
}

// Submit enqueues op and blocks until it ran. Returns the operation's error,
// ErrStoreClosed if the gate shut down first, or the context error if ctx
// ends before the operation is handed to the worker. Once enqueued the
// operation is never canceled mid-flight; the caller waits for its result.
func (g *Gate) Submit(ctx context.Context, op func() error) error {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return ErrStoreClosed
	}

	job := gateJob{op: op, done: make(chan error, 1)}
	select {
	case g.jobs <- job:
		g.mu.RUnlock()
	case <-ctx.Done():
		g.mu.RUnlock()
		return ctx.Err()
	}

	return <-job.done
}

// Close stops the worker. Operations still queued fail with ErrStoreClosed;
// the call returns once the worker exited.
func (g *Gate) Close() {
	g.closeOnce.Do(func() {
		g.stopping.Store(true)
		g.mu.Lock()
		g.closed = true
		close(g.jobs)
		g.mu.Unlock()
	})
	g.wg.Wait()
}
