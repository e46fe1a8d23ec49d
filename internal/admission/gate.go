// Package admission verifies payment proofs and consumes them exactly once
// before a job may be created.
package admission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"asset-forge/internal/domain"
)

// Gate admits paid submissions. Verification is delegated to a
// domain.ProofVerifier and single-use consumption to a domain.ProofStore.
type Gate struct {
	verifier domain.ProofVerifier
	store    domain.ProofStore
	prices   map[domain.JobKind]decimal.Decimal
	logger   *slog.Logger
}

// NewGate creates a Gate. prices must contain every admitted kind.
func NewGate(verifier domain.ProofVerifier, store domain.ProofStore, prices map[domain.JobKind]decimal.Decimal, logger *slog.Logger) *Gate {
	return &Gate{
		verifier: verifier,
		store:    store,
		prices:   prices,
		logger:   logger.With("component", "admission"),
	}
}

// Price returns the configured price of kind.
func (g *Gate) Price(kind domain.JobKind) (decimal.Decimal, bool) {
	p, ok := g.prices[kind]
	return p, ok
}

// Admit verifies token for kind and marks it consumed. Every proof rejection
// is a *domain.PaymentError and a missing wallet is a *domain.ValidationError;
// neither consumes the proof. Store failures are returned unwrapped so
// callers can tell an outage from a bad proof.
func (g *Gate) Admit(ctx context.Context, token string, kind domain.JobKind, wallet string) (*domain.PaymentProof, error) {
	token = strings.TrimSpace(token)
	wallet = strings.TrimSpace(wallet)
	if token == "" {
		return nil, domain.ErrPayment("payment required for %s", kind)
	}
	price, ok := g.prices[kind]
	if !ok {
		return nil, domain.ErrValidation("no price configured for %s", kind)
	}

	proof, err := g.verifier.Verify(ctx, token)
	if err != nil {
		g.logger.Info("payment proof rejected", "kind", kind, "error", err)
		return nil, domain.ErrPayment("invalid payment proof: %v", err)
	}
	if proof.Reference == "" {
		return nil, domain.ErrPayment("payment proof has no transaction reference")
	}
	if proof.Component != "" && proof.Component != kind {
		return nil, domain.ErrPayment("payment proof is for %s, not %s", proof.Component, kind)
	}
	if wallet != "" && proof.Wallet != "" && !strings.EqualFold(wallet, proof.Wallet) {
		return nil, domain.ErrPayment("payment proof wallet does not match request wallet")
	}
	if proof.Amount.LessThan(price) {
		return nil, domain.ErrPayment("payment of %s is below the %s price of %s", proof.Amount, kind, price)
	}
	if proof.Wallet == "" {
		proof.Wallet = wallet
	}
	if proof.Wallet == "" {
		return nil, domain.ErrValidation("wallet is required: neither the request nor the payment proof names one")
	}

	consumed, err := g.store.Consume(ctx, proof.Reference, kind, proof.Wallet)
	if err != nil {
		return nil, fmt.Errorf("consume payment proof: %w", err)
	}
	if !consumed {
		g.logger.Warn("payment proof replay", "kind", kind, "reference", proof.Reference)
		return nil, domain.ErrPayment("payment proof already used")
	}
	return proof, nil
}
