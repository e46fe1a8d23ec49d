package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"asset-forge/internal/domain"
)

var _ domain.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo is the append-only billing ledger in SQLite. The schema rejects
// UPDATE and DELETE with triggers.
type LedgerRepo struct {
	db *sql.DB
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

const ledgerColumns = `id, asset_id, wallet, tx_signature, component, price, status, filename, timestamp`

// Append writes one entry and returns it with its assigned id.
func (r *LedgerRepo) Append(ctx context.Context, e *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if e == nil {
		return nil, domain.ErrValidation("ledger entry is required")
	}
	if e.Wallet == "" {
		return nil, domain.ErrValidation("wallet is required")
	}
	if e.Status != domain.LedgerStatusSuccess && e.Status != domain.LedgerStatusFailed {
		return nil, domain.ErrValidation("invalid ledger status %q", e.Status)
	}
	out := *e
	if out.AssetID == "" {
		out.AssetID = domain.NewID()
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}

	var txSig sql.NullString
	if out.TxSignature != nil {
		txSig = nullString(*out.TxSignature)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger (asset_id, wallet, tx_signature, component, price, status, filename, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, out.AssetID, out.Wallet, txSig, string(out.Component), out.Price.String(),
		string(out.Status), out.Filename, out.Timestamp.UTC())
	if err != nil {
		return nil, mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	out.ID = id
	return &out, nil
}

// ListByWallet returns the wallet's entries newest first.
func (r *LedgerRepo) ListByWallet(ctx context.Context, wallet string, limit, offset int) ([]domain.LedgerEntry, error) {
	limit = domain.ClampLedgerLimit(limit, domain.DefaultWalletPageSize)
	if offset < 0 {
		offset = 0
	}
	return r.query(ctx, `
		SELECT `+ledgerColumns+` FROM ledger
		WHERE wallet = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`, wallet, limit, offset)
}

// CountByWallet returns the number of entries for wallet.
func (r *LedgerRepo) CountByWallet(ctx context.Context, wallet string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM ledger WHERE wallet = ?`, wallet).Scan(&n); err != nil {
		return 0, mapDBError(err)
	}
	return n, nil
}

// ListRecent returns the newest entries across all wallets.
func (r *LedgerRepo) ListRecent(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	limit = domain.ClampLedgerLimit(limit, domain.DefaultRecentLimit)
	return r.query(ctx, `
		SELECT `+ledgerColumns+` FROM ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
}

func (r *LedgerRepo) query(ctx context.Context, stmt string, args ...interface{}) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.LedgerEntry
	for rows.Next() {
		var (
			e                        domain.LedgerEntry
			txSig                    sql.NullString
			component, price, status string
		)
		if err := rows.Scan(&e.ID, &e.AssetID, &e.Wallet, &txSig, &component, &price, &status, &e.Filename, &e.Timestamp); err != nil {
			return nil, mapDBError(err)
		}
		e.TxSignature = stringPtr(txSig)
		e.Component = domain.JobKind(component)
		e.Status = domain.LedgerStatus(status)
		if e.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price of %s: %w", e.AssetID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
