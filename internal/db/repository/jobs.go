package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"asset-forge/internal/domain"
)

var _ domain.JobRepository = (*JobRepo)(nil)

// JobRepo stores job lifecycle state in SQLite.
type JobRepo struct {
	db *sql.DB
}

// NewJobRepo creates a new JobRepo.
func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{db: db}
}

const jobColumns = `id, kind, input_json, format, wallet, tx_signature, status, result_json,
	error_class, error_message, submitted_at, started_at, completed_at, updated_at`

// Create inserts a new queued job.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) (*domain.JobRecord, error) {
	if job == nil {
		return nil, domain.ErrValidation("job is required")
	}
	if job.ID == "" {
		job.ID = domain.NewID()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	input, err := json.Marshal(job.Input)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, input_json, format, wallet, tx_signature, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, string(job.Kind), string(input), string(job.Format), job.Wallet,
		nullString(job.TxSignature), string(domain.JobStatusQueued), job.SubmittedAt.UTC())
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.GetByID(ctx, job.ID)
}

// GetByID returns a job by ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*domain.JobRecord, error) {
	rec, err := r.getOne(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return nil, domain.ErrNotFound("job %q not found", id)
		}
		return nil, err
	}
	return rec, nil
}

// MarkRunning moves a queued job to running.
func (r *JobRepo) MarkRunning(ctx context.Context, id string) error {
	return r.transition(ctx, id, domain.JobStatusQueued, `
		UPDATE jobs
		SET status = ?, started_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(domain.JobStatusRunning), now(), now(), id, string(domain.JobStatusQueued))
}

// MarkSucceeded stores the result and completes a running job.
func (r *JobRepo) MarkSucceeded(ctx context.Context, id string, result domain.JobResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return r.transition(ctx, id, domain.JobStatusRunning, `
		UPDATE jobs
		SET status = ?, result_json = ?, error_class = NULL, error_message = NULL,
		    completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(domain.JobStatusSucceeded), string(resultJSON), now(), now(), id, string(domain.JobStatusRunning))
}

// MarkFailed completes a queued or running job with a classified error.
func (r *JobRepo) MarkFailed(ctx context.Context, id string, class domain.ErrorClass, message string) error {
	return r.transition(ctx, id, domain.JobStatusRunning, `
		UPDATE jobs
		SET status = ?, error_class = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, string(domain.JobStatusFailed), string(class), message, now(), now(), id,
		string(domain.JobStatusQueued), string(domain.JobStatusRunning))
}

// ListUnfinished returns queued and running jobs, oldest first.
func (r *JobRepo) ListUnfinished(ctx context.Context) ([]domain.JobRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs
		WHERE status IN (?, ?)
		ORDER BY submitted_at, id`,
		string(domain.JobStatusQueued), string(domain.JobStatusRunning))
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// DeleteTerminalBefore removes terminal jobs completed before cutoff.
func (r *JobRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE status IN (?, ?) AND completed_at < ?
	`, string(domain.JobStatusSucceeded), string(domain.JobStatusFailed), cutoff.UTC())
	if err != nil {
		return 0, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// transition runs a guarded status update. Zero affected rows means the job
// is missing or not in the expected state.
func (r *JobRepo) transition(ctx context.Context, id string, from domain.JobStatus, stmt string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrConflict("job %q is not %s", id, from)
	}
	return nil
}

func (r *JobRepo) getOne(ctx context.Context, stmt string, args ...interface{}) (*domain.JobRecord, error) {
	return scanJob(r.db.QueryRowContext(ctx, stmt, args...))
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*domain.JobRecord, error) {
	var (
		rec                      domain.JobRecord
		kind, format, status     string
		inputJSON                string
		txSig, resultJSON        sql.NullString
		errorClass, errorMessage sql.NullString
		startedAt, completedAt   sql.NullTime
		submittedAt, updatedAt   time.Time
	)

	err := row.Scan(
		&rec.ID, &kind, &inputJSON, &format, &rec.Wallet, &txSig, &status, &resultJSON,
		&errorClass, &errorMessage, &submittedAt, &startedAt, &completedAt, &updatedAt,
	)
	if err != nil {
		return nil, mapDBError(err)
	}

	rec.Kind = domain.JobKind(kind)
	rec.Format = domain.Format(format)
	rec.Status = domain.JobStatus(status)
	rec.TxSignature = txSig.String
	rec.SubmittedAt = submittedAt
	rec.UpdatedAt = updatedAt
	rec.StartedAt = timePtr(startedAt)
	rec.CompletedAt = timePtr(completedAt)
	rec.ErrorClass = domain.ErrorClass(errorClass.String)
	rec.ErrorMessage = stringPtr(errorMessage)

	if err := json.Unmarshal([]byte(inputJSON), &rec.Input); err != nil {
		return nil, fmt.Errorf("unmarshal input: %w", err)
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var result domain.JobResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		rec.Result = &result
	}
	return &rec, nil
}

func now() time.Time { return time.Now().UTC() }
