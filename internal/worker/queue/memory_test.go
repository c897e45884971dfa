package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWaker_NotifyWakes(t *testing.T) {
	w := NewMemoryWaker(time.Minute)
	require.NoError(t, w.Notify(context.Background(), "job_1"))

	woken, err := w.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, woken)
}

func TestMemoryWaker_PollTickReturnsUnwoken(t *testing.T) {
	w := NewMemoryWaker(20 * time.Millisecond)

	woken, err := w.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, woken)
}

func TestMemoryWaker_NotifyNeverBlocks(t *testing.T) {
	w := NewMemoryWaker(time.Minute)
	// Far beyond the buffer; extra signals are dropped, not queued.
	for i := 0; i < memWakerBuffer*2; i++ {
		require.NoError(t, w.Notify(context.Background(), "job_1"))
	}

	woken, err := w.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, woken)
}

func TestMemoryWaker_WaitHonorsContext(t *testing.T) {
	w := NewMemoryWaker(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
