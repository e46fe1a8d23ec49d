package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-forge/internal/db"
	"asset-forge/internal/db/repository"
	"asset-forge/internal/domain"
)

func TestSweeper_DeletesExpiredTerminalJobs(t *testing.T) {
	t.Parallel()
	writeDB, _ := db.OpenTestSQLite(t)
	jobs := repository.NewJobRepo(writeDB)
	ctx := context.Background()

	create := func(text string) *domain.Job {
		job := &domain.Job{Kind: domain.KindPromptOptimize, Input: domain.JobInput{Text: text}, Format: domain.FormatTXT, Wallet: "W1"}
		_, err := jobs.Create(ctx, job)
		require.NoError(t, err)
		return job
	}
	done := create("done")
	require.NoError(t, jobs.MarkRunning(ctx, done.ID))
	require.NoError(t, jobs.MarkSucceeded(ctx, done.ID, domain.JobResult{Filename: "a.txt", Format: domain.FormatTXT}))
	failed := create("failed")
	require.NoError(t, jobs.MarkFailed(ctx, failed.ID, domain.ClassGenerationFailed, "boom"))
	queued := create("queued")

	s := NewSweeper(jobs, 24*time.Hour, "", discardLogger())

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh jobs are kept")

	s.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, id := range []string{done.ID, failed.ID} {
		_, err := jobs.GetByID(ctx, id)
		var notFound *domain.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	}
	rec, err := jobs.GetByID(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, rec.Status)
}

func TestSweeper_ZeroRetentionKeepsEverything(t *testing.T) {
	t.Parallel()
	writeDB, _ := db.OpenTestSQLite(t)
	s := NewSweeper(repository.NewJobRepo(writeDB), 0, "", discardLogger())
	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweeper_StartStop(t *testing.T) {
	t.Parallel()
	writeDB, _ := db.OpenTestSQLite(t)
	jobs := repository.NewJobRepo(writeDB)

	s := NewSweeper(jobs, time.Hour, "@every 1h", discardLogger())
	require.NoError(t, s.Start())
	s.Stop()

	bad := NewSweeper(jobs, time.Hour, "not a schedule", discardLogger())
	err := bad.Start()
	var valErr *domain.ValidationError
	require.ErrorAs(t, err, &valErr)
}
