// Package billing records and lists ledger entries.
package billing

import (
	"context"
	"log/slog"
	"strings"

	"asset-forge/internal/domain"
)

// Service wraps the ledger repository. Record failures are logged with the
// full entry so they can be reconciled later.
type Service struct {
	repo   domain.LedgerRepository
	logger *slog.Logger
}

// NewService creates a new Service.
func NewService(repo domain.LedgerRepository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With("component", "billing")}
}

// Record appends e. On failure it logs the unrecorded entry at error level
// and returns the error; callers on the job path ignore it.
func (s *Service) Record(ctx context.Context, e *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	out, err := s.repo.Append(ctx, e)
	if err != nil {
		s.logger.Error("ledger append failed",
			"asset_id", e.AssetID,
			"wallet", e.Wallet,
			"component", e.Component,
			"price", e.Price.String(),
			"status", e.Status,
			"filename", e.Filename,
			"error", err)
		return nil, domain.NewJobError(domain.ClassStorageWriteFailed, "ledger", err)
	}
	s.logger.Info("ledger entry recorded",
		"id", out.ID, "wallet", out.Wallet, "component", out.Component, "status", out.Status)
	return out, nil
}

// WalletPage is one page of a wallet's ledger history.
type WalletPage struct {
	Entries []domain.LedgerEntry
	Total   int64
	Limit   int
	Offset  int
}

// ListByWallet returns a newest-first page of the wallet's entries and the
// wallet's total entry count. limit defaults to 5.
func (s *Service) ListByWallet(ctx context.Context, wallet string, limit, offset int) (*WalletPage, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, domain.ErrValidation("wallet is required")
	}
	if offset < 0 {
		return nil, domain.ErrValidation("offset must not be negative")
	}
	limit = domain.ClampLedgerLimit(limit, domain.DefaultWalletPageSize)

	entries, err := s.repo.ListByWallet(ctx, wallet, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return &WalletPage{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// Recent returns the newest entries across all wallets. limit defaults to 50.
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	return s.repo.ListRecent(ctx, domain.ClampLedgerLimit(limit, domain.DefaultRecentLimit))
}
