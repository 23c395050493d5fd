package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// WorkerPool runs submitted tasks with at most size of them in flight.
// Submit never blocks; tasks beyond the bound wait for a free slot.
type WorkerPool struct {
	size    int64
	slots   *semaphore.Weighted
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	running atomic.Int64
	pending atomic.Int64
}

func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:  int64(size),
		slots: semaphore.NewWeighted(int64(size)),
	}
}

// Size returns the maximum number of concurrently running tasks.
func (p *WorkerPool) Size() int {
	return int(p.size)
}

// Submit queues task for execution.
func (p *WorkerPool) Submit(task func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.pending.Add(1)
	go func() {
		defer p.wg.Done()

		// Acquire with a background context cannot fail.
		_ = p.slots.Acquire(context.Background(), 1)
		p.pending.Add(-1)
		p.running.Add(1)
		defer func() {
			p.running.Add(-1)
			p.slots.Release(1)
		}()

		task()
	}()
	return nil
}

// Close stops accepting new tasks. Queued tasks still run.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Wait blocks until every submitted task finished or ctx is done.
func (p *WorkerPool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running returns the number of tasks currently holding a slot.
func (p *WorkerPool) Running() int {
	return int(p.running.Load())
}

// Pending returns the number of tasks waiting for a slot.
func (p *WorkerPool) Pending() int {
	return int(p.pending.Load())
}
