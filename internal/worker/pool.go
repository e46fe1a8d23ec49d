// Package worker runs admitted jobs on a fixed set of supervised slots.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"asset-forge/internal/domain"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue has no free capacity.
	ErrQueueFull = errors.New("job queue is full")
	// ErrPoolClosed is returned by Enqueue after Shutdown.
	ErrPoolClosed = errors.New("worker pool is shut down")
)

// failTimeout bounds the bookkeeping done for a job the pool aborted.
const failTimeout = 10 * time.Second

// Executor runs one job to a terminal state.
type Executor interface {
	// Execute runs job and records its outcome. The returned error is
	// informational; the outcome is already persisted.
	Execute(ctx context.Context, job *domain.Job, budget *Budget) error
	// Fail records a job that could not run to completion, for example
	// after a panic.
	Fail(ctx context.Context, job *domain.Job, cause error)
}

// Options bounds the pool.
type Options struct {
	Slots           int
	MaxTasksPerSlot int
	MemoryLimit     int64 // bytes per job budget; 0 disables
	JobTimeout      time.Duration
	QueueSize       int
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Slots     int   `json:"slots"`
	Queued    int   `json:"queued"`
	Running   int64 `json:"running"`
	Processed int64 `json:"processed"`
	Restarts  int64 `json:"restarts"`
}

type exitReason string

const (
	exitNone     exitReason = ""
	exitDrained  exitReason = "queue closed"
	exitMaxTasks exitReason = "max tasks reached"
	exitMemory   exitReason = "memory ceiling exceeded"
	exitPanic    exitReason = "panic"
)

// Pool is a fixed set of slots consuming one FIFO queue. Each slot runs one
// job at a time and is replaced by its supervisor after MaxTasksPerSlot
// jobs, a memory ceiling breach or a panic.
type Pool struct {
	exec   Executor
	opts   Options
	logger *slog.Logger

	queue chan *domain.Job

	mu      sync.Mutex
	started bool
	closed  bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	running   atomic.Int64
	processed atomic.Int64
	restarts  atomic.Int64
}

// New creates a Pool. Call Start to begin consuming.
func New(exec Executor, opts Options, logger *slog.Logger) *Pool {
	if opts.Slots <= 0 {
		opts.Slots = 1
	}
	if opts.MaxTasksPerSlot <= 0 {
		opts.MaxTasksPerSlot = 50
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		exec:   exec,
		opts:   opts,
		logger: logger.With("component", "worker"),
		queue:  make(chan *domain.Job, opts.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches one supervisor per slot. It is a no-op after the first call.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for i := 1; i <= p.opts.Slots; i++ {
		p.wg.Add(1)
		go p.supervise(i)
	}
	p.logger.Info("worker pool started",
		"slots", p.opts.Slots,
		"max_tasks_per_slot", p.opts.MaxTasksPerSlot,
		"memory_limit_bytes", p.opts.MemoryLimit,
		"job_timeout", p.opts.JobTimeout)
}

// Enqueue hands job to the pool without blocking.
func (p *Pool) Enqueue(job *domain.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. When ctx ends first, running jobs are cancelled and Shutdown
// returns ctx's error once every slot has exited.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
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
		p.logger.Info("worker pool drained", "processed", p.processed.Load())
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown deadline reached, cancelling running jobs")
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Slots:     p.opts.Slots,
		Queued:    len(p.queue),
		Running:   p.running.Load(),
		Processed: p.processed.Load(),
		Restarts:  p.restarts.Load(),
	}
}

// supervise keeps slot id alive until the queue is drained, starting a new
// slot goroutine each time the previous one retires.
func (p *Pool) supervise(id int) {
	defer p.wg.Done()
	for generation := 1; ; generation++ {
		exited := make(chan exitReason, 1)
		go func() { exited <- p.runSlot(id, generation) }()

		reason := <-exited
		if reason == exitDrained {
			return
		}
		p.restarts.Add(1)
		p.logger.Info("slot recycled", "slot", id, "generation", generation, "reason", string(reason))
	}
}

func (p *Pool) runSlot(id, generation int) exitReason {
	for tasks := 0; tasks < p.opts.MaxTasksPerSlot; {
		job, ok := <-p.queue
		if !ok {
			return exitDrained
		}
		tasks++
		if reason := p.run(id, generation, job); reason != exitNone {
			return reason
		}
	}
	return exitMaxTasks
}

// run executes one job and reports whether the slot must retire.
func (p *Pool) run(id, generation int, job *domain.Job) (reason exitReason) {
	p.running.Add(1)
	defer p.running.Add(-1)
	defer p.processed.Add(1)

	ctx := p.ctx
	if p.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.JobTimeout)
		defer cancel()
	}
	budget := NewBudget(p.opts.MemoryLimit)
	logger := p.logger.With("slot", id, "generation", generation, "job_id", job.ID, "kind", job.Kind)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r, "stack", string(debug.Stack()))
			cause := domain.NewJobError(domain.ClassResourceExhausted, "execute", fmt.Errorf("job panicked: %v", r))
			failCtx, cancel := context.WithTimeout(context.Background(), failTimeout)
			defer cancel()
			p.exec.Fail(failCtx, job, cause)
			reason = exitPanic
		}
	}()

	start := time.Now()
	err := p.exec.Execute(ctx, job, budget)
	logger.Debug("job finished", "duration", time.Since(start), "budget_used", budget.Used(), "error", err)

	if budget.Exceeded() {
		return exitMemory
	}
	return exitNone
}
