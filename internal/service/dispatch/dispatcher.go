// Package dispatch admits paid submissions, persists them as queued jobs and
// hands them to the worker pool.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"asset-forge/internal/domain"
	"asset-forge/internal/worker"
)

// Steps recorded on jobs that failed outside the worker pool.
const (
	// StepDispatch marks jobs the pool could not accept.
	StepDispatch = "dispatch"
	// StepPersist marks admitted submissions whose job row could not be written.
	StepPersist = "persist"
	// StepRecover marks jobs found unfinished at startup.
	StepRecover = "recover"
)

// errInterrupted is the cause recorded on jobs a previous process left
// queued or running.
var errInterrupted = errors.New("job interrupted before completion")

// Admitter verifies and consumes a payment proof.
type Admitter interface {
	Admit(ctx context.Context, token string, kind domain.JobKind, wallet string) (*domain.PaymentProof, error)
}

// Queue accepts jobs without blocking.
type Queue interface {
	Enqueue(job *domain.Job) error
}

// Submission is a generation request as received from a client.
type Submission struct {
	Kind   domain.JobKind
	Input  domain.JobInput
	Format string
	Wallet string
	Proof  string
}

// Dispatcher creates jobs. It never waits on execution.
type Dispatcher struct {
	gate   Admitter
	jobs   domain.JobRepository
	queue  Queue
	exec   worker.Executor
	now    func() time.Time
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. exec records jobs the queue rejects.
func NewDispatcher(gate Admitter, jobs domain.JobRepository, queue Queue, exec worker.Executor, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		gate:   gate,
		jobs:   jobs,
		queue:  queue,
		exec:   exec,
		now:    time.Now,
		logger: logger.With("component", "dispatch"),
	}
}

// Submit validates s, admits its payment proof and queues a job. Input is
// validated before admission so a malformed request never consumes a proof.
// A job the queue cannot accept is recorded as FAILED and its id is still
// returned. If the job row cannot be written the error is returned and the
// spent proof is recorded as a failed ledger entry.
func (d *Dispatcher) Submit(ctx context.Context, s Submission) (string, error) {
	kind, err := domain.ParseJobKind(string(s.Kind))
	if err != nil {
		return "", err
	}
	if err := s.Input.Validate(kind); err != nil {
		return "", err
	}
	wallet := strings.TrimSpace(s.Wallet)

	proof, err := d.gate.Admit(ctx, s.Proof, kind, wallet)
	if err != nil {
		return "", err
	}
	if proof.Wallet != "" {
		wallet = proof.Wallet
	}

	job := &domain.Job{
		ID:          domain.NewID(),
		Kind:        kind,
		Input:       s.Input,
		Format:      domain.NormalizeFormat(s.Format),
		Wallet:      wallet,
		TxSignature: proof.Reference,
		SubmittedAt: d.now().UTC(),
	}

	// The proof is spent from here on; a client disconnect must not leave
	// it without a job or a ledger entry.
	ctx = context.WithoutCancel(ctx)
	if _, err := d.jobs.Create(ctx, job); err != nil {
		d.logger.Error("persist admitted job failed",
			"kind", kind, "wallet", wallet, "reference", proof.Reference, "error", err)
		d.exec.Fail(ctx, job, domain.NewJobError(domain.ClassStorageWriteFailed, StepPersist, err))
		return "", err
	}

	if err := d.queue.Enqueue(job); err != nil {
		d.logger.Warn("job rejected by worker pool", "job_id", job.ID, "kind", kind, "error", err)
		class := domain.ClassResourceExhausted
		if !errors.Is(err, worker.ErrQueueFull) && !errors.Is(err, worker.ErrPoolClosed) {
			class = domain.ClassOf(err)
		}
		d.exec.Fail(ctx, job, domain.NewJobError(class, StepDispatch, err))
		return job.ID, nil
	}

	d.logger.Info("job queued", "job_id", job.ID, "kind", kind, "format", job.Format, "wallet", wallet)
	return job.ID, nil
}

// Status returns the current record of job id. Unknown and expired ids are
// a *domain.NotFoundError.
func (d *Dispatcher) Status(ctx context.Context, id string) (*domain.JobRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrValidation("job id is required")
	}
	return d.jobs.GetByID(ctx, id)
}

// Recover fails every job a previous process left QUEUED or RUNNING, with
// class ResourceExhausted and a failed ledger entry. It must run before the
// pool starts and returns the number of jobs failed.
func (d *Dispatcher) Recover(ctx context.Context) (int, error) {
	recs, err := d.jobs.ListUnfinished(ctx)
	if err != nil {
		return 0, err
	}
	for i := range recs {
		job := recs[i].Job
		d.logger.Warn("failing interrupted job", "job_id", job.ID, "kind", job.Kind, "status", recs[i].Status)
		d.exec.Fail(ctx, &job, domain.NewJobError(domain.ClassResourceExhausted, StepRecover, errInterrupted))
	}
	return len(recs), nil
}
