package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"posterforge/internal/pkg/errors"
	"posterforge/internal/pkg/ids"
	"posterforge/internal/poster"
)

// PGStore is the Postgres-backed Store for deployments that need jobs to
// survive restarts and to be shared between the API and standalone workers.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an existing connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	spec_json    TEXT NOT NULL,
	status       TEXT NOT NULL,
	artifact_key TEXT,
	error_text   TEXT,
	error_code   TEXT,
	created_at   TIMESTAMPTZ NOT NULL,
	started_at   TIMESTAMPTZ,
	finished_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS jobs_status_created_idx ON jobs (status, created_at);
`

// EnsureSchema creates the jobs table if it does not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return errors.Wrap(err, "jobs.schema", "failed to ensure jobs schema")
	}
	return nil
}

// RequeueOrphans moves stale RUNNING jobs back to PENDING. Called at process
// startup: a RUNNING row started longer ago than olderThan outlived any
// legitimate render and belongs to a crashed process. Rows younger than the
// cutoff may still be rendering on a live worker and are left alone.
func (s *PGStore) RequeueOrphans(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status=$1, started_at=NULL WHERE status=$2 AND started_at < $3`,
		StatePending, StateRunning, cutoff,
	)
	if err != nil {
		return 0, errors.Wrap(err, "jobs.requeue", "failed to requeue orphaned jobs")
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) Create(ctx context.Context, spec poster.Spec) (Job, error) {
	job := Job{
		ID:        ids.New("job"),
		Spec:      spec,
		State:     StatePending,
		CreatedAt: time.Now().UTC(),
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return Job{}, errors.Wrap(err, "jobs.create", "failed to encode spec")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, spec_json, status, created_at) VALUES ($1,$2,$3,$4)`,
		job.ID, string(specJSON), job.State, job.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Job{}, errors.Conflict("job id collision: " + job.ID)
		}
		return Job{}, errors.Wrap(err, "jobs.create", "db insert failed")
	}
	return job, nil
}

func (s *PGStore) Get(ctx context.Context, id string) (Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, spec_json, status, COALESCE(artifact_key,''), COALESCE(error_text,''),
		        COALESCE(error_code,''), created_at, started_at, finished_at
		 FROM jobs WHERE id=$1`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, errors.NotFound("job", id)
		}
		return Job{}, errors.Wrap(err, "jobs.get", "db query failed")
	}
	return job, nil
}

func (s *PGStore) List(ctx context.Context, f ListFilter) ([]Job, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `SELECT id, spec_json, status, COALESCE(artifact_key,''), COALESCE(error_text,''),
	                 COALESCE(error_code,''), created_at, started_at, finished_at
	          FROM jobs`
	var (
		conds []string
		args  []any
	)
	if f.State != "" {
		args = append(args, f.State)
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if !f.FinishedBefore.IsZero() {
		args = append(args, f.FinishedBefore)
		conds = append(conds, fmt.Sprintf("finished_at < $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.FinishedBefore.IsZero() {
		query += " ORDER BY created_at DESC"
	} else {
		query += " ORDER BY finished_at ASC"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "jobs.list", "db query failed")
	}
	defer rows.Close()

	out := make([]Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "jobs.list", "row scan failed")
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *PGStore) ClaimNext(ctx context.Context) (Job, bool, error) {
	// SKIP LOCKED makes concurrent claims hand each PENDING row to at most
	// one worker without blocking the others.
	row := s.pool.QueryRow(ctx,
		`UPDATE jobs SET status=$1, started_at=now()
		 WHERE id = (
			SELECT id FROM jobs WHERE status=$2
			ORDER BY created_at ASC LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, spec_json, status, COALESCE(artifact_key,''), COALESCE(error_text,''),
		           COALESCE(error_code,''), created_at, started_at, finished_at`,
		StateRunning, StatePending)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, false, nil
		}
		return Job{}, false, errors.Wrap(err, "jobs.claim", "db claim failed")
	}
	return job, true, nil
}

func (s *PGStore) Complete(ctx context.Context, id string, artifactKey string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status=$1, artifact_key=$2, finished_at=now()
		 WHERE id=$3 AND status=$4`,
		StateCompleted, artifactKey, id, StateRunning,
	)
	if err != nil {
		return errors.Wrap(err, "jobs.complete", "db update failed")
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, id, "complete")
	}
	return nil
}

func (s *PGStore) Fail(ctx context.Context, id string, cause error) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status=$1, error_text=$2, error_code=$3, finished_at=now()
		 WHERE id=$4 AND status=$5`,
		StateFailed, truncateReason(cause), string(errors.GetCode(cause)), id, StateRunning,
	)
	if err != nil {
		return errors.Wrap(err, "jobs.fail", "db update failed")
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, id, "fail")
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs WHERE id=$1 AND status IN ($2,$3)`,
		id, StateCompleted, StateFailed,
	)
	if err != nil {
		return errors.Wrap(err, "jobs.delete", "db delete failed")
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, id, "delete")
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PGStore) Close() {
	s.pool.Close()
}

// transitionConflict distinguishes a missing job from one in the wrong state
// after a guarded UPDATE matched no rows.
func (s *PGStore) transitionConflict(ctx context.Context, id, op string) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id=$1`, id).Scan(&status)
	if err != nil {
		return errors.NotFound("job", id)
	}
	return errors.Conflict("job " + id + " is " + status + ", cannot " + op).
		WithField("job_id", id).WithField("state", status)
}

func scanJob(row pgx.Row) (Job, error) {
	var (
		job      Job
		specJSON string
	)
	err := row.Scan(&job.ID, &specJSON, &job.State, &job.ArtifactKey, &job.Error,
		&job.ErrorCode, &job.CreatedAt, &job.StartedAt, &job.FinishedAt)
	if err != nil {
		return Job{}, err
	}
	if err := json.Unmarshal([]byte(specJSON), &job.Spec); err != nil {
		return Job{}, err
	}
	return job, nil
}

// isUniqueViolation reports a Postgres unique constraint violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
