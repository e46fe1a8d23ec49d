package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerStatus is the outcome recorded for a billable job.
type LedgerStatus string

// Ledger statuses.
const (
	LedgerStatusSuccess LedgerStatus = "success"
	LedgerStatusFailed  LedgerStatus = "failed"
)

// Ledger list defaults.
const (
	DefaultWalletPageSize = 5
	DefaultRecentLimit    = 50
	MaxLedgerPageSize     = 100
)

// LedgerEntry is an append-only billing and audit record for one job.
type LedgerEntry struct {
	ID          int64
	AssetID     string
	Wallet      string
	TxSignature *string
	Component   JobKind
	Price       decimal.Decimal
	Status      LedgerStatus
	Filename    string
	Timestamp   time.Time
}

// ClampLedgerLimit bounds a requested page size to (0, MaxLedgerPageSize],
// substituting def for non-positive values.
func ClampLedgerLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxLedgerPageSize {
		return MaxLedgerPageSize
	}
	return limit
}
