package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-forge/internal/db"
	"asset-forge/internal/domain"
)

func TestProofRepo_ConsumeOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewProofRepo(writeDB)

	ok, err := repo.Consume(ctx, "tx-1", domain.KindPromptOptimize, "W1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Consume(ctx, "tx-1", domain.KindPromptOptimize, "W1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Consume(ctx, "", domain.KindPromptOptimize, "W1")
	require.Error(t, err)
}

func TestProofRepo_ConcurrentConsumeSingleWinner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewProofRepo(writeDB)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Consume(ctx, "tx-race", domain.KindContractIntel, "W1")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
