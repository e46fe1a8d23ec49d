package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"asset-forge/internal/domain"
)

var _ domain.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo is the append-only ledger on PostgreSQL.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

const columns = `id, asset_id, wallet, tx_signature, component, price::text, status, filename, timestamp`

// Append writes one entry and returns it with its assigned id.
func (r *LedgerRepo) Append(ctx context.Context, e *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if e == nil || e.Wallet == "" {
		return nil, domain.ErrValidation("ledger entry with wallet is required")
	}
	out := *e
	if out.AssetID == "" {
		out.AssetID = domain.NewID()
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO ledger (asset_id, wallet, tx_signature, component, price, status, filename, timestamp)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
		RETURNING id
	`, out.AssetID, out.Wallet, out.TxSignature, string(out.Component), out.Price.String(),
		string(out.Status), out.Filename, out.Timestamp).Scan(&out.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

// ListByWallet returns the wallet's entries newest first.
func (r *LedgerRepo) ListByWallet(ctx context.Context, wallet string, limit, offset int) ([]domain.LedgerEntry, error) {
	limit = domain.ClampLedgerLimit(limit, domain.DefaultWalletPageSize)
	if offset < 0 {
		offset = 0
	}
	return r.query(ctx, `SELECT `+columns+` FROM ledger WHERE wallet = $1
		ORDER BY timestamp DESC, id DESC LIMIT $2 OFFSET $3`, wallet, limit, offset)
}

// CountByWallet returns the number of entries for wallet.
func (r *LedgerRepo) CountByWallet(ctx context.Context, wallet string) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM ledger WHERE wallet = $1`, wallet).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// ListRecent returns the newest entries across all wallets.
func (r *LedgerRepo) ListRecent(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	limit = domain.ClampLedgerLimit(limit, domain.DefaultRecentLimit)
	return r.query(ctx, `SELECT `+columns+` FROM ledger ORDER BY timestamp DESC, id DESC LIMIT $1`, limit)
}

func (r *LedgerRepo) query(ctx context.Context, stmt string, args ...any) ([]domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var (
			e                        domain.LedgerEntry
			component, price, status string
		)
		if err := rows.Scan(&e.ID, &e.AssetID, &e.Wallet, &e.TxSignature, &component, &price, &status, &e.Filename, &e.Timestamp); err != nil {
			return nil, mapError(err)
		}
		e.Component = domain.JobKind(component)
		e.Status = domain.LedgerStatus(status)
		if e.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price of %s: %w", e.AssetID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &domain.ConflictError{Message: "resource already exists"}
	}
	return err
}
