// Package queue carries wake signals from job submitters to workers so idle
// workers suspend instead of busy-polling. A signal is only a hint that a
// PENDING job may exist; the claim itself always goes through the job store,
// which is what guarantees at-most-one dispatch.
package queue

import "context"

// Waker is the submit-side / worker-side signal pair.
type Waker interface {
	// Notify signals that a job was submitted.
	Notify(ctx context.Context, jobID string) error

	// Wait blocks until a signal arrives, the wait times out, or ctx is
	// canceled. A timed-out wait returns (false, nil) so workers can run a
	// periodic claim sweep anyway.
	Wait(ctx context.Context) (woken bool, err error)

	Close() error
}
