package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"asset-forge/internal/domain"
)

var _ domain.ProofVerifier = (*ReceiptVerifier)(nil)

// ReceiptClaims is the body of a payment receipt signed by the facilitator
// after it has settled a transfer. The subject is the paying wallet.
type ReceiptClaims struct {
	Tx        string `json:"tx"`
	Amount    string `json:"amount"`
	Component string `json:"component,omitempty"`
	jwt.RegisteredClaims
}

// ReceiptVerifier accepts HS256 receipts issued with a shared secret.
type ReceiptVerifier struct {
	secret []byte
	issuer string
}

// NewReceiptVerifier creates a verifier. An empty issuer accepts any issuer.
func NewReceiptVerifier(secret, issuer string) *ReceiptVerifier {
	return &ReceiptVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify checks the signature and expiry of token and decodes its claim.
func (v *ReceiptVerifier) Verify(_ context.Context, token string) (*domain.PaymentProof, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims ReceiptClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	ref := claims.Tx
	if ref == "" {
		ref = claims.ID
	}
	if ref == "" {
		return nil, errors.New("receipt has no tx or jti")
	}
	amount, err := decimal.NewFromString(claims.Amount)
	if err != nil {
		return nil, fmt.Errorf("receipt amount: %w", err)
	}

	proof := &domain.PaymentProof{
		Reference: ref,
		Wallet:    claims.Subject,
		Amount:    amount,
	}
	if claims.Component != "" {
		kind, err := domain.ParseJobKind(claims.Component)
		if err != nil {
			return nil, err
		}
		proof.Component = kind
	}
	return proof, nil
}

// IssueReceipt signs a receipt. It is used by the CLI for local testing and
// by facilitators sharing the secret.
func IssueReceipt(secret, issuer string, proof domain.PaymentProof, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ReceiptClaims{
		Tx:        proof.Reference,
		Amount:    proof.Amount.String(),
		Component: string(proof.Component),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  proof.Wallet,
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
