package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/PabloGalante/noesis-agent/internal/observability"
)

var (
	// ErrQueueFull is returned by Submit when the task queue is at capacity.
	ErrQueueFull = errors.New("worker: queue full")
	// ErrPoolClosed is returned by Submit after Close has begun.
	ErrPoolClosed = errors.New("worker: pool closed")
)

// Task is one unit of background work. The context is the pool's base
// context and is cancelled when the pool shuts down.
type Task func(ctx context.Context)

// Pool runs submitted tasks on a fixed number of goroutines fed from a
// bounded queue. Submit never blocks: when the queue is full the caller
// learns immediately and can shed the work.
type Pool struct {
	tasks chan Task
	eg    *errgroup.Group
	ctx   context.Context

	mu     sync.Mutex
	closed bool
}

// NewPool starts workers goroutines reading from a queue of queueSize
// pending tasks. Non-positive arguments select 1 worker and an unbuffered
// queue.
func NewPool(ctx context.Context, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	eg, egCtx := errgroup.WithContext(ctx)
	p := &Pool{
		tasks: make(chan Task, queueSize),
		eg:    eg,
		ctx:   egCtx,
	}

	for i := 0; i < workers; i++ {
		eg.Go(p.run)
	}

	return p
}

// Submit enqueues a task without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops intake, lets the workers drain the queue, and waits for them
// to exit. Safe to call once.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	return p.eg.Wait()
}

func (p *Pool) run() error {
	for task := range p.tasks {
		p.runTask(task)
	}
	return nil
}

// runTask isolates one task so a panicking session cannot take the worker
// down with it.
func (p *Pool) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			observability.Logger().Error("worker task panicked", "panic", fmt.Sprint(r))
		}
	}()
	task(p.ctx)
}
