// Package generation runs the per-kind execution contract: build context,
// generate, normalize, export, upload, record and report.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"asset-forge/internal/document"
	"asset-forge/internal/domain"
	"asset-forge/internal/worker"
)

// Pipeline steps, as recorded in JobError.Step.
const (
	StepResolve   = "resolve"
	StepGenerate  = "generate"
	StepNormalize = "normalize"
	StepExport    = "export"
	StepUpload    = "upload"
	StepComplete  = "complete"
)

// bookkeepingTimeout bounds status and ledger writes made after the job's
// own context may have expired.
const bookkeepingTimeout = 10 * time.Second

// Resolver resolves contract-intel subjects.
type Resolver interface {
	Resolve(ctx context.Context, subject domain.Subject) (*domain.Aggregate, error)
}

// Ledger records billing entries.
type Ledger interface {
	Record(ctx context.Context, e *domain.LedgerEntry) (*domain.LedgerEntry, error)
}

var _ worker.Executor = (*Executor)(nil)

// Executor implements worker.Executor.
type Executor struct {
	jobs     domain.JobRepository
	text     domain.TextGenerator
	resolver Resolver
	store    domain.ObjectStore
	ledger   Ledger
	prices   map[domain.JobKind]decimal.Decimal
	brand    string
	now      func() time.Time
	logger   *slog.Logger
}

// Deps are the collaborators of an Executor.
type Deps struct {
	Jobs     domain.JobRepository
	Text     domain.TextGenerator
	Resolver Resolver
	Store    domain.ObjectStore
	Ledger   Ledger
	Prices   map[domain.JobKind]decimal.Decimal
	Brand    string
	Now      func() time.Time
}

// NewExecutor creates an Executor.
func NewExecutor(d Deps, logger *slog.Logger) *Executor {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Executor{
		jobs:     d.Jobs,
		text:     d.Text,
		resolver: d.Resolver,
		store:    d.Store,
		ledger:   d.Ledger,
		prices:   d.Prices,
		brand:    d.Brand,
		now:      now,
		logger:   logger.With("component", "generation"),
	}
}

// Execute runs job to a terminal state. Every outcome is persisted before
// Execute returns; a failed job still gets a failed ledger entry.
func (e *Executor) Execute(ctx context.Context, job *domain.Job, budget *worker.Budget) error {
	logger := e.logger.With("job_id", job.ID, "kind", job.Kind)

	if err := e.jobs.MarkRunning(ctx, job.ID); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			logger.Warn("job is no longer queued, skipping", "error", err)
			return err
		}
		if ctx.Err() == nil {
			logger.Error("mark job running failed", "error", err)
			return err
		}
		// The job expired while waiting; fall through so it is failed below.
	}

	result, err := e.run(ctx, job, budget)
	if err != nil {
		e.fail(job, err, logger)
		return err
	}

	bctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()

	// The job is completed before it is billed so a job that cannot be
	// marked SUCCEEDED is failed with a single failed entry instead.
	if err := e.jobs.MarkSucceeded(bctx, job.ID, *result); err != nil {
		logger.Error("mark job succeeded failed", "filename", result.Filename, "error", err)
		cause := domain.NewJobError(domain.ClassStorageWriteFailed, StepComplete, err)
		e.fail(job, cause, logger)
		return cause
	}
	e.record(bctx, job, domain.LedgerStatusSuccess, result.Filename)
	logger.Info("job succeeded", "filename", result.Filename, "format", result.Format, "budget_used", budget.Used())
	return nil
}

// Fail records a job aborted outside the normal step flow.
func (e *Executor) Fail(_ context.Context, job *domain.Job, cause error) {
	e.fail(job, cause, e.logger.With("job_id", job.ID, "kind", job.Kind))
}

func (e *Executor) fail(job *domain.Job, cause error, logger *slog.Logger) {
	class := Classify(cause)
	logger.Warn("job failed", "class", class, "error", cause)

	bctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()

	e.record(bctx, job, domain.LedgerStatusFailed, "")
	if err := e.jobs.MarkFailed(bctx, job.ID, class, cause.Error()); err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			logger.Warn("failed job has no stored record", "error", err)
			return
		}
		logger.Error("mark job failed failed", "error", err)
	}
}

// record appends a ledger entry. Failures are logged by the ledger and never
// change the job outcome.
func (e *Executor) record(ctx context.Context, job *domain.Job, status domain.LedgerStatus, filename string) {
	entry := &domain.LedgerEntry{
		AssetID:   domain.NewID(),
		Wallet:    job.Wallet,
		Component: job.Kind,
		Price:     e.prices[job.Kind],
		Status:    status,
		Filename:  filename,
		Timestamp: e.now().UTC(),
	}
	if job.TxSignature != "" {
		sig := job.TxSignature
		entry.TxSignature = &sig
	}
	_, _ = e.ledger.Record(ctx, entry)
}

func (e *Executor) run(ctx context.Context, job *domain.Job, budget *worker.Budget) (*domain.JobResult, error) {
	tmpl, err := TemplateFor(job.Kind)
	if err != nil {
		return nil, domain.NewJobError(domain.ClassGenerationFailed, StepGenerate, err)
	}

	// 1. Context.
	user := userPayload(job)
	var agg *domain.Aggregate
	if job.Kind == domain.KindContractIntel {
		if e.resolver == nil {
			return nil, domain.NewJobError(domain.ClassGenerationFailed, StepResolve, errors.New("resolver not configured"))
		}
		agg, err = e.resolver.Resolve(ctx, job.Input.Subject())
		if err != nil {
			return nil, domain.NewJobError(Classify(err), StepResolve, err)
		}
		user = intelPayload(job.Input.Subject(), agg)
		if err := budget.Charge(StepResolve, len(user)); err != nil {
			return nil, err
		}
	}

	// 2. Generate.
	raw, err := e.text.Generate(ctx, tmpl.System, user)
	if err != nil {
		class := domain.ClassGenerationFailed
		if ctx.Err() != nil {
			class = domain.ClassResourceExhausted
		}
		return nil, domain.NewJobError(class, StepGenerate, err)
	}
	if err := budget.Charge(StepGenerate, len(raw)); err != nil {
		return nil, err
	}

	// 3. Normalize.
	text := document.Normalize(raw)
	if agg != nil {
		text += "\n\n" + dataSourcesSection(agg)
	}
	if err := budget.Charge(StepNormalize, len(text)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.NewJobError(domain.ClassResourceExhausted, StepNormalize, err)
	}

	// 4. Export.
	subtitle := tmpl.Subtitle
	if job.Kind == domain.KindContractIntel {
		subtitle = fmt.Sprintf("%s on %s", job.Input.ContractAddress, job.Input.Network)
	}
	art, err := document.Export(text, job.Format, document.Meta{
		Title:    tmpl.Title,
		Subtitle: subtitle,
		Prefix:   tmpl.Prefix,
		Brand:    e.brand,
		Now:      e.now(),
	})
	if err != nil {
		return nil, domain.NewJobError(domain.ClassGenerationFailed, StepExport, err)
	}
	if err := budget.Charge(StepExport, len(art.Data)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.NewJobError(domain.ClassResourceExhausted, StepExport, err)
	}

	// 5. Upload.
	url, err := e.store.Put(ctx, art.Data, art.Filename, art.ContentType)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewJobError(domain.ClassResourceExhausted, StepUpload, err)
		}
		e.logger.Error("upload failed", "job_id", job.ID, "filename", art.Filename, "bytes", len(art.Data), "error", err)
		return nil, domain.NewJobError(domain.ClassStorageWriteFailed, StepUpload, err)
	}

	return &domain.JobResult{DownloadURL: url, Filename: art.Filename, Format: art.Format}, nil
}

// Classify maps a step error to its job error class. Context expiry means
// the job outran its wall-clock ceiling or the pool withdrew it.
func Classify(err error) domain.ErrorClass {
	var je *domain.JobError
	if errors.As(err, &je) {
		return je.Class
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.ClassResourceExhausted
	}
	return domain.ClassOf(err)
}
