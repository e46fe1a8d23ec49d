package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"asset-forge/internal/domain"
)

var _ domain.ProofStore = (*RedisProofStore)(nil)

const proofKeyPrefix = "forge:proof:"

// RedisProofStore consumes proofs with SET NX so that several API
// instances share one replay guard. Keys expire after ttl, which must
// exceed the receipt lifetime.
type RedisProofStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProofStore creates a RedisProofStore.
func NewRedisProofStore(client *redis.Client, ttl time.Duration) *RedisProofStore {
	return &RedisProofStore{client: client, ttl: ttl}
}

// Consume marks ref as used and reports whether this call was first.
func (s *RedisProofStore) Consume(ctx context.Context, ref string, component domain.JobKind, wallet string) (bool, error) {
	if ref == "" {
		return false, domain.ErrValidation("proof reference is required")
	}
	ok, err := s.client.SetNX(ctx, proofKeyPrefix+ref, string(component)+"|"+wallet, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}
