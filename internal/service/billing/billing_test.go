package billing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-forge/internal/db"
	"asset-forge/internal/db/repository"
	"asset-forge/internal/domain"
)

func newService(t *testing.T) *Service {
	t.Helper()
	writeDB, _ := db.OpenTestSQLite(t)
	return NewService(repository.NewLedgerRepo(writeDB), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

func entry(wallet string, status domain.LedgerStatus) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		Wallet:    wallet,
		Component: domain.KindPromptOptimize,
		Price:     decimal.RequireFromString("0.50"),
		Status:    status,
		Filename:  "prompt_optimizer_1.txt",
	}
}

func TestRecordAndList(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := svc.Record(ctx, entry("W1", domain.LedgerStatusSuccess))
		require.NoError(t, err)
	}
	_, err := svc.Record(ctx, entry("W2", domain.LedgerStatusFailed))
	require.NoError(t, err)

	page, err := svc.ListByWallet(ctx, "W1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, page.Entries, domain.DefaultWalletPageSize)
	assert.Equal(t, int64(7), page.Total)
	assert.Equal(t, domain.DefaultWalletPageSize, page.Limit)

	page2, err := svc.ListByWallet(ctx, "W1", 5, 5)
	require.NoError(t, err)
	assert.Len(t, page2.Entries, 2)

	recent, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 8)
	assert.Equal(t, "W2", recent[0].Wallet)
}

func TestListByWallet_Validation(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	var ve *domain.ValidationError

	_, err := svc.ListByWallet(context.Background(), "  ", 5, 0)
	assert.ErrorAs(t, err, &ve)
	_, err = svc.ListByWallet(context.Background(), "W1", 5, -1)
	assert.ErrorAs(t, err, &ve)
}

type brokenLedger struct{ domain.LedgerRepository }

func (brokenLedger) Append(context.Context, *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	return nil, errors.New("database is locked")
}

func TestRecord_FailureIsLoggedAndClassified(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	svc := NewService(brokenLedger{}, slog.New(slog.NewTextHandler(&logs, nil)))

	e := entry("W9", domain.LedgerStatusSuccess)
	e.AssetID = "asset-123"
	_, err := svc.Record(context.Background(), e)
	require.Error(t, err)
	assert.Equal(t, domain.ClassStorageWriteFailed, domain.ClassOf(err))

	out := logs.String()
	for _, want := range []string{"ledger append failed", "component=billing", "asset_id=asset-123", "wallet=W9", "price=0.5"} {
		assert.Contains(t, out, want, fmt.Sprintf("log line should carry %q", want))
	}
}
