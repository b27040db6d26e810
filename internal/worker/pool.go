package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/thanhnp/coin-tracker/internal/metrics"
)

// ErrStopped is returned by Submit after Stop
var ErrStopped = errors.New("worker pool stopped")

// ErrQueueFull is returned by Submit when the queue has no room
var ErrQueueFull = errors.New("worker queue full")

// Task is a unit of background work. The context is cancelled when the pool stops.
type Task func(ctx context.Context)

// Pool runs submitted tasks on a fixed number of goroutines
type Pool struct {
	wg     sync.WaitGroup
	mu     sync.RWMutex
	jobs   chan Task
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	log    *slog.Logger
}

// NewPool starts n workers reading from a queue of queueSize tasks
func NewPool(n, queueSize int, logger *slog.Logger) *Pool {
	if n <= 0 {
		n = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:   make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
		log:    logger,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				metrics.WorkerQueueDepth.Dec()
				p.run(job)
			}
		}()
	}
	return p
}

func (p *Pool) run(job Task) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("worker task panicked", "panic", rec)
		}
	}()
	job(p.ctx)
}

// Submit queues a task without blocking
func (p *Pool) Submit(f Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrStopped
	}
	select {
	case p.jobs <- f:
		metrics.WorkerQueueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting tasks and waits for queued ones to finish. If ctx
// expires first, running tasks are cancelled and Stop returns ctx's error.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
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
