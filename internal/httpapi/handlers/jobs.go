package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"posterforge/internal/httpkit"
	"posterforge/internal/jobs"
	"posterforge/internal/pkg/errors"
	"posterforge/internal/poster"
)

// jobView is the job representation returned by the API.
type jobView struct {
	ID          string      `json:"id"`
	State       jobs.State  `json:"state"`
	Spec        poster.Spec `json:"spec"`
	ArtifactURL string      `json:"artifact_url,omitempty"`
	Error       string      `json:"error,omitempty"`
	ErrorCode   string      `json:"error_code,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty"`
}

func viewOf(j jobs.Job) jobView {
	v := jobView{
		ID:         j.ID,
		State:      j.State,
		Spec:       j.Spec,
		Error:      j.Error,
		ErrorCode:  j.ErrorCode,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
	if j.State == jobs.StateCompleted {
		v.ArtifactURL = "/jobs/" + j.ID + "/artifact"
	}
	return v
}

// PostJob validates the submitted spec, creates a PENDING job and wakes the
// workers. Validation failures never create a job.
func (h *Handler) PostJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	var spec poster.Spec
	if err := httpkit.DecodeJSON(r, &spec); err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "invalid json body", nil)
		return
	}

	if err := spec.Validate(); err != nil {
		httpkit.WriteError(w, err)
		return
	}

	job, err := h.store.Create(ctx, spec)
	if err != nil {
		log.Error("job create failed", "error", err.Error())
		httpkit.WriteErr(w, 500, string(errors.CodeInternal), "failed to create job", nil)
		return
	}

	if err := h.waker.Notify(ctx, job.ID); err != nil {
		// The job stays PENDING and the workers' periodic sweep will find
		// it; a lost wake signal must not lose the job.
		log.Warn("worker wake failed", "job_id", job.ID, "error", err.Error())
	}

	log.Info("job submitted",
		"job_id", job.ID,
		"city", job.Spec.City,
		"theme", job.Spec.Theme,
	)
	httpkit.WriteJSON(w, 201, map[string]any{"job": viewOf(job)})
}

// ListJobs returns recent jobs, optionally filtered by state.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	f := jobs.ListFilter{}
	if s := strings.TrimSpace(r.URL.Query().Get("state")); s != "" {
		f.State = jobs.State(strings.ToUpper(s))
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			f.Limit = v
		}
	}

	list, err := h.store.List(ctx, f)
	if err != nil {
		h.log.FromContext(ctx).Error("job list failed", "error", err.Error())
		httpkit.WriteErr(w, 500, string(errors.CodeInternal), "failed to list jobs", nil)
		return
	}

	out := make([]jobView, 0, len(list))
	for _, j := range list {
		out = append(out, viewOf(j))
	}
	httpkit.WriteJSON(w, 200, map[string]any{"jobs": out})
}

// GetJob returns the current snapshot of one job.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	job, err := h.store.Get(ctx, jobID)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	httpkit.WriteJSON(w, 200, map[string]any{"job": viewOf(job)})
}
