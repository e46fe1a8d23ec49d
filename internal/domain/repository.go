package domain

import (
	"context"
	"time"
)

// JobRepository stores job lifecycle state. Status transitions are written
// only by the worker path.
type JobRepository interface {
	Create(ctx context.Context, job *Job) (*JobRecord, error)
	GetByID(ctx context.Context, id string) (*JobRecord, error)
	MarkRunning(ctx context.Context, id string) error
	MarkSucceeded(ctx context.Context, id string, result JobResult) error
	MarkFailed(ctx context.Context, id string, class ErrorClass, message string) error
	// ListUnfinished returns queued and running jobs, oldest first.
	ListUnfinished(ctx context.Context) ([]JobRecord, error)
	// DeleteTerminalBefore removes succeeded and failed jobs completed
	// before cutoff and returns how many were removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LedgerRepository is the append-only billing ledger.
type LedgerRepository interface {
	Append(ctx context.Context, e *LedgerEntry) (*LedgerEntry, error)
	ListByWallet(ctx context.Context, wallet string, limit, offset int) ([]LedgerEntry, error)
	CountByWallet(ctx context.Context, wallet string) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]LedgerEntry, error)
}

// SnapshotStore is a key-value store of the last resolved aggregate per
// subject key. Put replaces any previous snapshot atomically.
type SnapshotStore interface {
	Get(ctx context.Context, subjectKey string) (*Snapshot, error)
	Put(ctx context.Context, s *Snapshot) error
}

// ProofStore records consumed payment proof references. Consume returns
// true exactly once per reference, even under concurrent calls.
type ProofStore interface {
	Consume(ctx context.Context, ref string, component JobKind, wallet string) (bool, error)
}
