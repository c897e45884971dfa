// Package retention removes old terminal jobs and their stored artifacts on
// a cron schedule. PENDING and RUNNING jobs are never touched.
package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"posterforge/internal/jobs"
	"posterforge/internal/pkg/logger"
	"posterforge/internal/storage"
)

// sweepBatch caps jobs examined per sweep so a single run stays short.
const sweepBatch = 200

type Sweeper struct {
	store jobs.Store
	sp    storage.Provider
	ttl   time.Duration
	log   *logger.Logger
	cron  *cron.Cron
}

// NewSweeper builds a sweeper deleting terminal jobs older than ttl.
func NewSweeper(store jobs.Store, sp storage.Provider, ttl time.Duration, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Sweeper{
		store: store,
		sp:    sp,
		ttl:   ttl,
		log:   log.WithComponent("retention"),
	}
}

// Start schedules sweeps with a cron expression ("@every 15m", "0 3 * * *").
func (s *Sweeper) Start(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		removed, err := s.Sweep(context.Background())
		if err != nil {
			s.log.Error("sweep failed", "error", err.Error())
			return
		}
		if removed > 0 {
			s.log.Info("sweep completed", "removed", removed)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.log.Info("retention sweeper started", "schedule", schedule, "ttl", s.ttl.String())
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep deletes expired terminal jobs once and returns how many went away.
// It lists oldest-finished first and keeps draining batches until no expired
// job remains, so a backlog of fresh terminal jobs can never mask older
// expired ones.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.ttl)
	removed := 0

	for _, state := range []jobs.State{jobs.StateCompleted, jobs.StateFailed} {
		for {
			list, err := s.store.List(ctx, jobs.ListFilter{
				State:          state,
				FinishedBefore: cutoff,
				Limit:          sweepBatch,
			})
			if err != nil {
				return removed, err
			}

			deleted := 0
			for _, job := range list {
				if job.ArtifactKey != "" {
					if err := s.sp.DeleteObject(ctx, job.ArtifactKey); err != nil {
						s.log.Warn("artifact delete failed",
							"job_id", job.ID,
							"artifact_key", job.ArtifactKey,
							"error", err.Error(),
						)
						// Keep the job so the next sweep retries the delete.
						continue
					}
				}

				if err := s.store.Delete(ctx, job.ID); err != nil {
					s.log.Warn("job delete failed", "job_id", job.ID, "error", err.Error())
					continue
				}
				deleted++
			}
			removed += deleted

			// Jobs whose delete failed stay listed; stop once a pass
			// makes no progress or the batch was the last one.
			if deleted == 0 || len(list) < sweepBatch {
				break
			}
		}
	}

	return removed, nil
}
