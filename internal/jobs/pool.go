package jobs

// pool.go implements the bounded worker pool that runs artifact jobs.
//
// A fixed number of worker goroutines pull tasks from a FIFO queue. Submit
// never blocks: when every worker is busy the task waits in the queue, so the
// amount of parallel file I/O stays bounded no matter how many jobs arrive.
//
// Shutdown stops intake, lets the workers drain what is already queued and,
// if the caller's deadline expires first, cancels the task context so that
// in-flight and still-queued jobs abort instead of building.

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmgilman/go/errors"
)

// ErrPoolClosed is returned by Submit after Shutdown has been called.
var ErrPoolClosed = errors.New(errors.CodeUnavailable, "job pool is shut down")

// DefaultWorkers is the worker count used when a non-positive value is given.
const DefaultWorkers = 10

// Task is one unit of background work. ctx is cancelled only when the pool
// is forced down.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed set of worker goroutines.
type Pool struct {
	workers int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Task
	active int
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool starts a pool with the given number of workers.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

// Submit enqueues a task. It never blocks on running work.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
	return nil
}

func (p *Pool) work() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			// Closed and drained.
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.active++
		p.mu.Unlock()

		p.run(task)

		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}
}

// run executes one task, keeping the worker alive if it panics.
func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("job pool task panicked", "panic", r)
		}
	}()
	task(p.ctx)
}

// Shutdown stops accepting tasks and waits for queued and running tasks to
// finish. If ctx expires first, the task context is cancelled and ctx's error
// is returned once the workers have exited. Tasks still queued at that point
// are run with the cancelled context and must return promptly on it; the
// wait past the deadline is bounded only by tasks that ignore cancellation.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// PoolStatus is a snapshot of the pool's current state.
type PoolStatus struct {
	Workers int `json:"workers"`
	Active  int `json:"active"`
	Queued  int `json:"queued"`
}

// Status returns the current pool state for monitoring.
func (p *Pool) Status() PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStatus{
		Workers: p.workers,
		Active:  p.active,
		Queued:  len(p.queue),
	}
}
