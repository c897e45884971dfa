package queue

import (
	"context"
	"time"
)

// memWakerBuffer bounds queued wake signals. Signals beyond the buffer are
// dropped safely: the periodic sweep picks up whatever they announced.
const memWakerBuffer = 1024

// MemoryWaker is the in-process Waker for single-binary deployments.
type MemoryWaker struct {
	signals  chan struct{}
	pollTick time.Duration
}

// NewMemoryWaker creates a waker with the given idle poll interval.
func NewMemoryWaker(pollTick time.Duration) *MemoryWaker {
	if pollTick <= 0 {
		pollTick = 5 * time.Second
	}
	return &MemoryWaker{
		signals:  make(chan struct{}, memWakerBuffer),
		pollTick: pollTick,
	}
}

func (w *MemoryWaker) Notify(ctx context.Context, jobID string) error {
	select {
	case w.signals <- struct{}{}:
	default:
	}
	return nil
}

func (w *MemoryWaker) Wait(ctx context.Context) (bool, error) {
	timer := time.NewTimer(w.pollTick)
	defer timer.Stop()

	select {
	case <-w.signals:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (w *MemoryWaker) Close() error { return nil }
