package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"asset-forge/internal/domain"
)

var _ domain.SnapshotStore = (*SnapshotRepo)(nil)

// SnapshotRepo keeps one row per subject key. Put is a single upsert, so a
// reader sees either the previous or the new aggregate, never a mix.
type SnapshotRepo struct {
	db *sql.DB
}

// NewSnapshotRepo creates a new SnapshotRepo.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Get returns the snapshot for subjectKey or a NotFoundError.
func (r *SnapshotRepo) Get(ctx context.Context, subjectKey string) (*domain.Snapshot, error) {
	var (
		s         domain.Snapshot
		aggregate string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT subject_key, captured_at, aggregate_json, content_hash
		FROM subject_snapshots WHERE subject_key = ?
	`, subjectKey).Scan(&s.SubjectKey, &s.CapturedAt, &aggregate, &s.ContentHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("no snapshot for %q", subjectKey)
		}
		return nil, mapDBError(err)
	}
	s.Aggregate = []byte(aggregate)
	return &s, nil
}

// Put replaces the snapshot for s.SubjectKey.
func (r *SnapshotRepo) Put(ctx context.Context, s *domain.Snapshot) error {
	if s == nil || s.SubjectKey == "" {
		return domain.ErrValidation("snapshot subject key is required")
	}
	captured := s.CapturedAt
	if captured.IsZero() {
		captured = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subject_snapshots (subject_key, captured_at, aggregate_json, content_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (subject_key) DO UPDATE SET
			captured_at = excluded.captured_at,
			aggregate_json = excluded.aggregate_json,
			content_hash = excluded.content_hash
	`, s.SubjectKey, captured.UTC(), string(s.Aggregate), s.ContentHash)
	return mapDBError(err)
}
