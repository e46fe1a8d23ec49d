package repository

import (
	"context"
	"database/sql"

	"asset-forge/internal/domain"
)

var _ domain.ProofStore = (*ProofRepo)(nil)

// ProofRepo records consumed payment proofs. The reference is the primary
// key, so the INSERT is the check-and-mark: exactly one concurrent caller
// affects a row.
type ProofRepo struct {
	db *sql.DB
}

// NewProofRepo creates a new ProofRepo.
func NewProofRepo(db *sql.DB) *ProofRepo {
	return &ProofRepo{db: db}
}

// Consume marks ref as used. It returns false if ref was already consumed.
func (r *ProofRepo) Consume(ctx context.Context, ref string, component domain.JobKind, wallet string) (bool, error) {
	if ref == "" {
		return false, domain.ErrValidation("proof reference is required")
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO consumed_proofs (reference, component, wallet)
		VALUES (?, ?, ?)
		ON CONFLICT (reference) DO NOTHING
	`, ref, string(component), wallet)
	if err != nil {
		return false, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
