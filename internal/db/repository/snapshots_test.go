package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-forge/internal/db"
	"asset-forge/internal/domain"
)

func TestSnapshotRepo_PutReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	writeDB, readDB := db.OpenTestSQLite(t)
	repo := NewSnapshotRepo(writeDB)

	_, err := repo.Get(ctx, "ethereum:0xabc")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)

	require.NoError(t, repo.Put(ctx, &domain.Snapshot{SubjectKey: "ethereum:0xabc", Aggregate: []byte(`{"v":1}`), ContentHash: "h1"}))
	require.NoError(t, repo.Put(ctx, &domain.Snapshot{SubjectKey: "ethereum:0xabc", Aggregate: []byte(`{"v":2}`), ContentHash: "h2"}))

	got, err := NewSnapshotRepo(readDB).Get(ctx, "ethereum:0xabc")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.ContentHash)
	assert.JSONEq(t, `{"v":2}`, string(got.Aggregate))
	assert.False(t, got.CapturedAt.IsZero())

	var rows int
	require.NoError(t, readDB.QueryRow(`SELECT count(*) FROM subject_snapshots`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestSnapshotRepo_ConcurrentPutsStayWhole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	writeDB, readDB := db.OpenTestSQLite(t)
	repo := NewSnapshotRepo(writeDB)
	reader := NewSnapshotRepo(readDB)

	payloads := map[string]string{"ha": `{"a":1}`, "hb": `{"b":2}`}
	require.NoError(t, repo.Put(ctx, &domain.Snapshot{SubjectKey: "k", Aggregate: []byte(payloads["ha"]), ContentHash: "ha"}))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			hash := "ha"
			if idx%2 == 1 {
				hash = "hb"
			}
			assert.NoError(t, repo.Put(ctx, &domain.Snapshot{SubjectKey: "k", Aggregate: []byte(payloads[hash]), ContentHash: hash}))
		}(i)
		go func() {
			defer wg.Done()
			s, err := reader.Get(ctx, "k")
			if assert.NoError(t, err) {
				assert.JSONEq(t, payloads[s.ContentHash], string(s.Aggregate))
			}
		}()
	}
	wg.Wait()
}

func TestSnapshotRepo_RequiresKey(t *testing.T) {
	t.Parallel()

	writeDB, _ := db.OpenTestSQLite(t)
	err := NewSnapshotRepo(writeDB).Put(context.Background(), &domain.Snapshot{})
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}
