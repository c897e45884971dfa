// Package jobs tracks poster-generation jobs through their lifecycle:
// PENDING -> RUNNING -> COMPLETED | FAILED. The Store is the single owner of
// job records; workers write results back through it and never mutate a Job
// they hold.
package jobs

import (
	"time"

	"posterforge/internal/poster"
)

// State is the lifecycle state of a Job.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is one tracked poster-generation request. Store reads return
// snapshots, so holding a Job never races with the worker that executes it.
type Job struct {
	ID   string      `json:"id"`
	Spec poster.Spec `json:"spec"`

	State State `json:"state"`

	// ArtifactKey is the storage object key of the generated poster.
	// Set only in COMPLETED, mutually exclusive with Error.
	ArtifactKey string `json:"artifact_key,omitempty"`
	// Error is the captured failure reason. Set only in FAILED.
	Error string `json:"error,omitempty"`
	// ErrorCode categorizes the failure (RENDER_FAILED, TIMEOUT, ...).
	ErrorCode string `json:"error_code,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
