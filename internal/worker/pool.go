// Package worker runs the bounded pool that executes render jobs. Pool size
// is the concurrency limit: each worker claims one job at a time and blocks
// for the duration of its render, so at most N renders are ever in flight.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"posterforge/internal/jobs"
	"posterforge/internal/pkg/errors"
	"posterforge/internal/pkg/logger"
	"posterforge/internal/ports"
	"posterforge/internal/storage"
	"posterforge/internal/worker/queue"
	"posterforge/internal/worker/renderer"
)

// Deps wires the pool's collaborators.
type Deps struct {
	Store    jobs.Store
	Waker    queue.Waker
	Renderer renderer.Renderer
	Storage  storage.Provider
	Log      *logger.Logger

	// Workers is the concurrency limit (>= 1).
	Workers int
	// RenderTimeout bounds a single render; on expiry the job fails with a
	// TIMEOUT code.
	RenderTimeout time.Duration
	// ScratchDir holds per-job render output before upload.
	ScratchDir string
	// CleanupScratch removes the per-job scratch directory after upload.
	CleanupScratch bool
}

// Pool is a fixed-size set of workers over a shared job store.
type Pool struct {
	store    jobs.Store
	waker    queue.Waker
	renderer renderer.Renderer
	sp       storage.Provider
	log      *logger.Logger

	workers        int
	renderTimeout  time.Duration
	scratchDir     string
	cleanupScratch bool
}

// New creates a pool. Zero values get conservative defaults.
func New(d Deps) *Pool {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	renderTimeout := d.RenderTimeout
	if renderTimeout <= 0 {
		renderTimeout = 3 * time.Minute
	}

	return &Pool{
		store:          d.Store,
		waker:          d.Waker,
		renderer:       d.Renderer,
		sp:             d.Storage,
		log:            log.WithComponent("worker"),
		workers:        workers,
		renderTimeout:  renderTimeout,
		scratchDir:     d.ScratchDir,
		cleanupScratch: d.CleanupScratch,
	}
}

// Run starts the workers and blocks until ctx is canceled and every worker
// has drained. The returned error is ctx.Err().
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info("worker pool starting",
		"workers", p.workers,
		"render_timeout", p.renderTimeout.String(),
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		idx := i
		g.Go(func() error {
			p.worker(ctx, idx)
			return nil
		})
	}
	_ = g.Wait()

	p.log.Info("worker pool stopped")
	return ctx.Err()
}

// worker claims and executes jobs until ctx is canceled. Job failures are
// recorded in the store and never break the loop.
func (p *Pool) worker(ctx context.Context, idx int) {
	log := p.log.With("worker", idx)

	for {
		// Drain everything claimable before going back to sleep.
		for {
			if ctx.Err() != nil {
				log.Debug("worker stopping")
				return
			}

			job, ok, err := p.store.ClaimNext(ctx)
			if err != nil {
				log.Warn("claim failed, backing off", "error", err.Error())
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			if !ok {
				break
			}

			p.process(ctx, job)
		}

		if _, err := p.waker.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				log.Debug("worker stopping")
				return
			}
			log.Warn("wake wait failed, backing off", "error", err.Error())
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

// process runs one claimed job to a terminal state.
func (p *Pool) process(ctx context.Context, job jobs.Job) {
	jobCtx := logger.ContextWithJobID(ctx, job.ID)
	log := p.log.WithJobID(job.ID)

	log.Info("processing job",
		"city", job.Spec.City,
		"country", job.Spec.Country,
		"theme", job.Spec.Theme,
	)
	start := time.Now()

	artifactKey, err := p.execute(jobCtx, job)
	if err != nil {
		p.failJob(jobCtx, job.ID, err)
		log.Error("job failed",
			"error", err.Error(),
			"code", string(errors.GetCode(err)),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	if err := p.store.Complete(jobCtx, job.ID, artifactKey); err != nil {
		log.Error("completion write failed", "error", err.Error())
		return
	}
	log.Info("job completed",
		"artifact_key", artifactKey,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// execute renders the poster and uploads it, returning the artifact key.
func (p *Pool) execute(ctx context.Context, job jobs.Job) (string, error) {
	scratch := filepath.Join(p.scratchDir, job.ID)
	destPath := filepath.Join(scratch, "poster.png")

	renderCtx, cancel := context.WithTimeout(ctx, p.renderTimeout)
	defer cancel()

	if err := p.renderer.Render(renderCtx, job.Spec, destPath); err != nil {
		return "", classifyRenderError(ctx, renderCtx, err)
	}

	f, err := os.Open(destPath)
	if err != nil {
		return "", errors.RenderFailed("renderer reported success but output is missing: " + err.Error())
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", errors.Wrap(err, "worker.upload", "failed to stat render output")
	}

	artifactKey := fmt.Sprintf("posters/%s/poster.png", job.ID)
	out, err := p.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   artifactKey,
		ContentType: "image/png",
		Reader:      f,
		Size:        st.Size(),
	})
	if err != nil {
		return "", errors.Wrap(err, "worker.upload", "failed to store artifact")
	}

	if p.cleanupScratch {
		if err := os.RemoveAll(scratch); err != nil {
			p.log.WithJobID(job.ID).Warn("scratch cleanup failed", "error", err.Error())
		}
	}

	return out.ObjectKey, nil
}

// failJob writes the terminal failure; a store error here only gets logged,
// the worker returns to claiming either way.
func (p *Pool) failJob(ctx context.Context, jobID string, cause error) {
	if err := p.store.Fail(ctx, jobID, cause); err != nil {
		p.log.WithJobID(jobID).Error("failure write failed", "error", err.Error())
	}
}

// classifyRenderError maps context expiry onto the job error taxonomy.
func classifyRenderError(ctx, renderCtx context.Context, err error) error {
	switch {
	case renderCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		return errors.Timeout("render")
	case ctx.Err() != nil:
		return errors.WrapWithCode(err, errors.CodeUnavailable, "worker.render", "render interrupted by shutdown")
	default:
		var coded *errors.Error
		if errors.As(err, &coded) {
			return err
		}
		return errors.RenderFailed(err.Error())
	}
}
