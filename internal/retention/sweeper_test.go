package retention

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posterforge/internal/adapters/storage/localfs"
	"posterforge/internal/jobs"
	"posterforge/internal/pkg/errors"
	"posterforge/internal/pkg/logger"
	"posterforge/internal/poster"
	"posterforge/internal/ports"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: os.Stderr, Format: "text"})
}

func newSpec(t *testing.T) poster.Spec {
	t.Helper()
	s := poster.Spec{City: "Lisbon", Country: "Portugal"}
	require.NoError(t, s.Validate())
	return s
}

// completedJob drives a job through claim and completion, storing a real
// artifact so the sweep has something to delete.
func completedJob(t *testing.T, store *jobs.MemStore, sp *localfs.LocalFS) jobs.Job {
	t.Helper()
	ctx := context.Background()

	created, err := store.Create(ctx, newSpec(t))
	require.NoError(t, err)
	claimed, ok, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, created.ID, claimed.ID)

	key := "posters/" + created.ID + "/poster.png"
	body := []byte("png")
	_, err = sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   key,
		ContentType: "image/png",
		Reader:      bytes.NewReader(body),
		Size:        int64(len(body)),
	})
	require.NoError(t, err)

	require.NoError(t, store.Complete(ctx, created.ID, key))
	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	return got
}

func failedJob(t *testing.T, store *jobs.MemStore) jobs.Job {
	t.Helper()
	ctx := context.Background()

	created, err := store.Create(ctx, newSpec(t))
	require.NoError(t, err)
	_, ok, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Fail(ctx, created.ID, errors.RenderFailed("boom")))
	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	return got
}

func TestSweep_RemovesExpiredTerminalJobsAndArtifacts(t *testing.T) {
	store := jobs.NewMemStore()
	root := t.TempDir()
	sp := localfs.New(root)
	ctx := context.Background()

	done := completedJob(t, store, sp)
	failed := failedJob(t, store)

	// With a zero TTL everything finished before the sweep is expired.
	time.Sleep(10 * time.Millisecond)
	s := NewSweeper(store, sp, 0, testLogger())

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = store.Get(ctx, done.ID)
	assert.True(t, errors.IsNotFound(err))
	_, err = store.Get(ctx, failed.ID)
	assert.True(t, errors.IsNotFound(err))

	_, err = os.Stat(filepath.Join(root, done.ArtifactKey))
	assert.True(t, os.IsNotExist(err))
}

func TestSweep_KeepsFreshAndNonTerminalJobs(t *testing.T) {
	store := jobs.NewMemStore()
	root := t.TempDir()
	sp := localfs.New(root)
	ctx := context.Background()

	fresh := completedJob(t, store, sp)
	pending, err := store.Create(ctx, newSpec(t))
	require.NoError(t, err)

	s := NewSweeper(store, sp, time.Hour, testLogger())

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
	_, err = store.Get(ctx, pending.ID)
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, fresh.ArtifactKey))
	assert.NoError(t, err)
}

func TestSweep_DrainsExpiredBehindFreshBacklog(t *testing.T) {
	store := jobs.NewMemStore()
	sp := localfs.New(t.TempDir())
	ctx := context.Background()

	// More expired jobs than one listing batch, then an even larger pile
	// of fresh terminal jobs on top. Every expired job must still go.
	const expiredCount = sweepBatch + 5
	const freshCount = sweepBatch + 10

	expired := make([]string, 0, expiredCount)
	for i := 0; i < expiredCount; i++ {
		expired = append(expired, failedJob(t, store).ID)
	}

	time.Sleep(60 * time.Millisecond)

	fresh := make([]string, 0, freshCount)
	for i := 0; i < freshCount; i++ {
		fresh = append(fresh, failedJob(t, store).ID)
	}

	s := NewSweeper(store, sp, 30*time.Millisecond, testLogger())

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, expiredCount, removed)

	for _, id := range expired {
		_, err := store.Get(ctx, id)
		assert.True(t, errors.IsNotFound(err), "expired job %s survived the sweep", id)
	}
	for _, id := range fresh {
		_, err := store.Get(ctx, id)
		assert.NoError(t, err, "fresh job %s was swept", id)
	}
}

func TestSweep_IsIdempotent(t *testing.T) {
	store := jobs.NewMemStore()
	sp := localfs.New(t.TempDir())
	ctx := context.Background()

	completedJob(t, store, sp)
	time.Sleep(10 * time.Millisecond)

	s := NewSweeper(store, sp, 0, testLogger())

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
