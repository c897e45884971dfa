package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"posterforge/internal/pkg/errors"
	"posterforge/internal/pkg/ids"
	"posterforge/internal/poster"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// memStoreCap bounds how many terminal jobs are kept before the oldest
	// are pruned. PENDING and RUNNING jobs are never pruned.
	memStoreCap = 1000
)

// MemStore is the in-memory Store. State transitions happen inside short
// mutex-guarded sections; a render never runs under the lock.
type MemStore struct {
	mu      sync.RWMutex
	byID    map[string]*Job
	pending []string // claim order, oldest first
	cap     int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		byID: make(map[string]*Job),
		cap:  memStoreCap,
	}
}

func (s *MemStore) Create(ctx context.Context, spec poster.Spec) (Job, error) {
	job := Job{
		ID:        ids.New("job"),
		Spec:      spec,
		State:     StatePending,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.byID[job.ID] = &job
	s.pending = append(s.pending, job.ID)
	s.pruneLocked()
	s.mu.Unlock()

	return job, nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Job, error) {
	s.mu.RLock()
	job, ok := s.byID[id]
	var snapshot Job
	if ok {
		snapshot = *job
	}
	s.mu.RUnlock()

	if !ok {
		return Job{}, errors.NotFound("job", id)
	}
	return snapshot, nil
}

func (s *MemStore) List(ctx context.Context, f ListFilter) ([]Job, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	s.mu.RLock()
	out := make([]Job, 0, len(s.byID))
	for _, job := range s.byID {
		if f.State != "" && job.State != f.State {
			continue
		}
		if !f.FinishedBefore.IsZero() {
			if job.FinishedAt == nil || !job.FinishedAt.Before(f.FinishedBefore) {
				continue
			}
		}
		out = append(out, *job)
	}
	s.mu.RUnlock()

	if f.FinishedBefore.IsZero() {
		sort.Slice(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	} else {
		sort.Slice(out, func(i, j int) bool {
			return out[i].FinishedAt.Before(*out[j].FinishedAt)
		})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) ClaimNext(ctx context.Context) (Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.pending) > 0 {
		id := s.pending[0]
		s.pending = s.pending[1:]

		job, ok := s.byID[id]
		if !ok || job.State != StatePending {
			// Pruned or already handled; try the next one.
			continue
		}

		now := time.Now().UTC()
		job.State = StateRunning
		job.StartedAt = &now
		return *job, true, nil
	}

	return Job{}, false, nil
}

func (s *MemStore) Complete(ctx context.Context, id string, artifactKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[id]
	if !ok {
		return errors.NotFound("job", id)
	}
	if job.State != StateRunning {
		return errors.Conflict("job " + id + " is " + string(job.State) + ", cannot complete").
			WithField("job_id", id).WithField("state", string(job.State))
	}

	now := time.Now().UTC()
	job.State = StateCompleted
	job.ArtifactKey = artifactKey
	job.FinishedAt = &now
	return nil
}

func (s *MemStore) Fail(ctx context.Context, id string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[id]
	if !ok {
		return errors.NotFound("job", id)
	}
	if job.State != StateRunning {
		return errors.Conflict("job " + id + " is " + string(job.State) + ", cannot fail").
			WithField("job_id", id).WithField("state", string(job.State))
	}

	now := time.Now().UTC()
	job.State = StateFailed
	job.Error = truncateReason(cause)
	job.ErrorCode = string(errors.GetCode(cause))
	job.FinishedAt = &now
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[id]
	if !ok {
		return errors.NotFound("job", id)
	}
	if !job.State.Terminal() {
		return errors.Conflict("job " + id + " is " + string(job.State) + ", cannot delete").
			WithField("job_id", id).WithField("state", string(job.State))
	}
	delete(s.byID, id)
	return nil
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Close() {}

// pruneLocked evicts the oldest terminal jobs once the store exceeds its
// cap. Callers must hold the write lock.
func (s *MemStore) pruneLocked() {
	if s.cap <= 0 || len(s.byID) <= s.cap {
		return
	}

	type candidate struct {
		id         string
		finishedAt time.Time
	}
	terminal := make([]candidate, 0, len(s.byID))
	for id, job := range s.byID {
		if !job.State.Terminal() || job.FinishedAt == nil {
			continue
		}
		terminal = append(terminal, candidate{id: id, finishedAt: *job.FinishedAt})
	}
	if len(terminal) == 0 {
		return
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].finishedAt.Before(terminal[j].finishedAt)
	})

	toRemove := len(s.byID) - s.cap
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}
	for i := 0; i < toRemove; i++ {
		delete(s.byID, terminal[i].id)
	}
}

func truncateReason(cause error) string {
	if cause == nil {
		return ""
	}
	msg := cause.Error()
	if len(msg) > 2000 {
		msg = msg[:2000]
	}
	return msg
}
