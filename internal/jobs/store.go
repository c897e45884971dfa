package jobs

import (
	"context"
	"time"

	"posterforge/internal/poster"
)

// ListFilter narrows List results.
type ListFilter struct {
	// State filters by lifecycle state when non-empty.
	State State
	// FinishedBefore, when non-zero, keeps only jobs that reached a
	// terminal state before the given time and orders them oldest-finished
	// first, so batched sweeps always see the most expired jobs.
	FinishedBefore time.Time
	// Limit caps the number of returned jobs; 0 means the store default.
	Limit int
}

// Store owns all Job records. Implementations must make ClaimNext atomic:
// however many workers race, a PENDING job is handed to at most one of them.
// Complete and Fail accept only RUNNING jobs, which makes terminal states
// write-once.
type Store interface {
	// Create allocates a new PENDING job for a validated spec.
	Create(ctx context.Context, spec poster.Spec) (Job, error)

	// Get returns a snapshot of the job, or a NOT_FOUND error.
	Get(ctx context.Context, id string) (Job, error)

	// List returns job snapshots, newest first unless the filter's
	// FinishedBefore ordering applies.
	List(ctx context.Context, f ListFilter) ([]Job, error)

	// ClaimNext atomically moves the oldest PENDING job to RUNNING and
	// returns it. ok is false when no PENDING job exists.
	ClaimNext(ctx context.Context) (job Job, ok bool, err error)

	// Complete moves a RUNNING job to COMPLETED and records the artifact
	// key. Any other state yields a CONFLICT error.
	Complete(ctx context.Context, id string, artifactKey string) error

	// Fail moves a RUNNING job to FAILED, capturing the cause's code and
	// message. Any other state yields a CONFLICT error.
	Fail(ctx context.Context, id string, cause error) error

	// Delete removes a terminal job. Used by retention; deleting a
	// PENDING or RUNNING job is a CONFLICT error.
	Delete(ctx context.Context, id string) error

	// Ping reports store backend health.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close()
}
