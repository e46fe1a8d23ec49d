package domain

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// TextGenerator produces raw markdown-like text from a system context and a
// user payload. Implemented by llm.Client.
type TextGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// ObjectStore stores generated payloads and returns a public reference.
// Writing an existing name overwrites it.
type ObjectStore interface {
	Put(ctx context.Context, data []byte, filename, contentType string) (string, error)
	// URL returns the public reference for filename without fetching it.
	URL(filename string) string
}

// Provider queries one external source for one data category. An empty
// payload means the source had no data for the subject.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, subject Subject) (json.RawMessage, error)
}

// PaymentProof is a verified payment claim.
type PaymentProof struct {
	// Reference is the unique consumption key, usually the transaction signature.
	Reference string
	Wallet    string
	Amount    decimal.Decimal
	Component JobKind
}

// ProofVerifier checks the authenticity of an opaque payment token and
// decodes the claim it carries.
type ProofVerifier interface {
	Verify(ctx context.Context, token string) (*PaymentProof, error)
}
