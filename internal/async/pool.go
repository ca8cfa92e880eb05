package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// Common errors returned by Pool.Submit.
var (
	ErrQueueFull   = errors.New("async: job queue is full")
	ErrPoolStopped = errors.New("async: pool is stopped")
)

// PoolConfig holds configuration for the worker pool.
type PoolConfig struct {
	// Workers determines how many concurrent worker goroutines run task
	// bodies. One task occupies one worker for its entire duration.
	Workers int

	// QueueSize determines the buffer size of the in-memory job queue.
	QueueSize int
}

// DefaultPoolConfig returns a PoolConfig with reasonable defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:   runtime.NumCPU(),
		QueueSize: 100,
	}
}

// Pool is a fixed-size worker pool executing submitted task bodies. The
// cancellation model is cooperative: a running body is never preempted, it
// is expected to poll its task's IsCanceled (typically through the progress
// setters) and return early.
type Pool struct {
	jobs       chan func()
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewPool creates a worker pool with the given configuration. Invalid
// values fall back to defaults.
func NewPool(config PoolConfig, logger *slog.Logger) *Pool {
	if config.Workers <= 0 {
		def := DefaultPoolConfig().Workers
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.Workers,
			"default_count", def)
		config.Workers = def
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultPoolConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		jobs:       make(chan func(), config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		logger:     logger,
	}
	for i := 0; i < config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit enqueues a job for execution. Returns ErrPoolStopped after Stop,
// or ErrQueueFull when the buffered queue is at capacity.
func (p *Pool) Submit(job func()) error {
	if p.ctx.Err() != nil {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(p.jobs))
	}
}

// Execute satisfies the continuation executor interface: the function is
// queued to run on a pool worker. When the queue is full or the pool is
// stopped the function runs inline instead, because a continuation must
// never be silently dropped.
func (p *Pool) Execute(fn func()) {
	if err := p.Submit(fn); err != nil {
		p.logger.Warn("executing continuation inline", "error", err)
		fn()
	}
}

// Stop shuts the pool down. Workers finish the job they are running and
// exit; queued jobs that no worker picked up are dropped. Stop blocks until
// all workers have returned.
func (p *Pool) Stop() {
	p.cancelFunc()
	p.wg.Wait()
}

// worker executes jobs from the queue until the pool is stopped.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return

		case job := <-p.jobs:
			job()
		}
	}
}
