package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posterforge/internal/pkg/errors"
	"posterforge/internal/poster"
)

func testSpec(city string) poster.Spec {
	s := poster.Spec{City: city, Country: "Testland"}
	if err := s.Validate(); err != nil {
		panic(err)
	}
	return s
}

func TestMemStore_CreateThenGet(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	job, err := s.Create(ctx, testSpec("Tokyo"))
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, StatePending, job.State)
	assert.False(t, job.CreatedAt.IsZero())
	assert.Nil(t, job.StartedAt)

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, StatePending, got.State)
	assert.Equal(t, "Tokyo", got.Spec.City)
}

func TestMemStore_GetUnknown(t *testing.T) {
	s := NewMemStore()

	_, err := s.Get(context.Background(), "job_missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestMemStore_UniqueIDs(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	const n = 100
	seen := make(map[string]bool, n)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := s.Create(ctx, testSpec("Oslo"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			assert.False(t, seen[job.ID], "duplicate id %s", job.ID)
			seen[job.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
}

func TestMemStore_ClaimOrderIsFIFO(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	var created []string
	for i := 0; i < 5; i++ {
		job, err := s.Create(ctx, testSpec(fmt.Sprintf("City%d", i)))
		require.NoError(t, err)
		created = append(created, job.ID)
	}

	for i := 0; i < 5; i++ {
		job, ok, err := s.ClaimNext(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, created[i], job.ID)
		assert.Equal(t, StateRunning, job.State)
		require.NotNil(t, job.StartedAt)
	}

	_, ok, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemStore_ConcurrentClaimsNeverDouble(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	const jobCount = 50
	for i := 0; i < jobCount; i++ {
		_, err := s.Create(ctx, testSpec("Lima"))
		require.NoError(t, err)
	}

	claimed := make(chan string, jobCount*2)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, ok, err := s.ClaimNext(ctx)
				if !assert.NoError(t, err) || !ok {
					return
				}
				claimed <- job.ID
			}
		}()
	}
	wg.Wait()
	close(claimed)

	seen := make(map[string]bool)
	for id := range claimed {
		assert.False(t, seen[id], "job %s claimed twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, jobCount)
}

func TestMemStore_CompleteSetsArtifactExclusively(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	job, err := s.Create(ctx, testSpec("Rome"))
	require.NoError(t, err)
	_, ok, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Complete(ctx, job.ID, "posters/x/poster.png"))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
	assert.Equal(t, "posters/x/poster.png", got.ArtifactKey)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.FinishedAt)

	// Terminal state is write-once.
	err = s.Complete(ctx, job.ID, "posters/y/poster.png")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	err = s.Fail(ctx, job.ID, errors.RenderFailed("boom"))
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestMemStore_FailRecordsReasonAndCode(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	job, err := s.Create(ctx, testSpec("Cairo"))
	require.NoError(t, err)
	_, _, err = s.ClaimNext(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Fail(ctx, job.ID, errors.Timeout("render")))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, got.State)
	assert.Empty(t, got.ArtifactKey)
	assert.Equal(t, string(errors.CodeTimeout), got.ErrorCode)
	assert.Contains(t, got.Error, "render")
}

func TestMemStore_CompleteRequiresRunning(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	job, err := s.Create(ctx, testSpec("Quito"))
	require.NoError(t, err)

	err = s.Complete(ctx, job.ID, "posters/x/poster.png")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	err = s.Fail(ctx, job.ID, errors.RenderFailed("boom"))
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestMemStore_DeleteOnlyTerminal(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	job, err := s.Create(ctx, testSpec("Perth"))
	require.NoError(t, err)

	err = s.Delete(ctx, job.ID)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	_, _, err = s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, job.ID, "posters/x/poster.png"))

	require.NoError(t, s.Delete(ctx, job.ID))
	_, err = s.Get(ctx, job.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestMemStore_ListFiltersAndOrders(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	a, _ := s.Create(ctx, testSpec("A"))
	b, _ := s.Create(ctx, testSpec("B"))

	_, _, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, a.ID, "posters/a/poster.png"))

	all, err := s.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	pending, err := s.List(ctx, ListFilter{State: StatePending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	completed, err := s.List(ctx, ListFilter{State: StateCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, a.ID, completed[0].ID)
}
