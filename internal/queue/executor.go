// Package queue implements the bounded executor that runs task work units.
// Each accepted work unit pins a worker for the task's whole lifetime (the
// worker blocks awaiting correlation events), so the pool size directly bounds
// how many conversations with the bot are tracked at once.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned when both the worker pool and the pending buffer
// are saturated. Submission never blocks.
var ErrQueueFull = errors.New("queue: task queue is full")

type Executor struct {
	jobs chan func()
	// slots caps running plus pending work at workers+queueSize. A worker
	// frees its slot only after the job returns, so a full jobs buffer alone
	// never causes a reject while a worker is idle.
	slots chan struct{}
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewExecutor starts workers goroutines consuming a pending buffer of
// queueSize work units.
func NewExecutor(workers, queueSize int) *Executor {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	e := &Executor{
		jobs:  make(chan func(), queueSize),
		slots: make(chan struct{}, workers+queueSize),
	}
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.worker()
	}
	return e
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for fn := range e.jobs {
		fn()
		<-e.slots
	}
}

// Submit hands fn to the pool. It returns the pending-queue depth sampled at
// submission time: 0 means a worker picks the job up immediately, N>0 means
// the caller is queued behind N earlier jobs. ErrQueueFull when saturated.
func (e *Executor) Submit(fn func()) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrQueueFull
	}
	select {
	case e.slots <- struct{}{}:
	default:
		return 0, ErrQueueFull
	}
	depth := len(e.jobs)
	// A held slot guarantees either buffer room or a worker about to free
	// one, so this send completes without waiting on external callers.
	e.jobs <- fn
	return depth, nil
}

// Depth reports the current pending-queue length.
func (e *Executor) Depth() int {
	return len(e.jobs)
}

// Stop closes the queue and waits for in-flight work, up to ctx.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.jobs)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
