package domain

import (
	"github.com/google/uuid"
)

// NewID generates a UUIDv7 string for jobs and ledger assets.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
