package handlers

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"posterforge/internal/httpkit"
	"posterforge/internal/jobs"
	"posterforge/internal/pkg/errors"
)

// GetArtifact streams the generated poster of a COMPLETED job. Non-terminal
// jobs get a NOT_READY response, failed jobs get their recorded reason, so
// pollers can always hit this endpoint and branch on the status code.
// With ?encoding=base64 the image is returned inside a JSON envelope
// instead, for clients that cannot handle binary responses.
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")
	log := h.log.FromContext(ctx).WithJobID(jobID)

	job, err := h.store.Get(ctx, jobID)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	switch job.State {
	case jobs.StatePending, jobs.StateRunning:
		httpkit.WriteError(w, errors.NotReady(job.ID, string(job.State)))
		return
	case jobs.StateFailed:
		code := job.ErrorCode
		if code == "" {
			code = string(errors.CodeRenderFailed)
		}
		httpkit.WriteErr(w, 502, code, job.Error, map[string]any{"job_id": job.ID})
		return
	}

	rc, contentType, size, err := h.sp.GetObject(ctx, job.ArtifactKey)
	if err != nil {
		log.Error("artifact read failed", "artifact_key", job.ArtifactKey, "error", err.Error())
		httpkit.WriteErr(w, 500, string(errors.CodeInternal), "artifact unavailable", nil)
		return
	}
	defer rc.Close()

	if contentType == "" {
		contentType = "image/png"
	}

	if r.URL.Query().Get("encoding") == "base64" {
		h.writeBase64Artifact(w, job, rc, contentType)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+artifactFilename(job)+`"`)
	w.Header().Set("X-Poster-City", job.Spec.City)
	w.Header().Set("X-Poster-Country", job.Spec.Country)
	w.Header().Set("X-Poster-Theme", job.Spec.Theme)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		log.Warn("artifact stream interrupted", "error", err.Error())
	}
}

func (h *Handler) writeBase64Artifact(w http.ResponseWriter, job jobs.Job, rc io.Reader, contentType string) {
	data, err := io.ReadAll(rc)
	if err != nil {
		httpkit.WriteErr(w, 500, string(errors.CodeInternal), "artifact read failed", nil)
		return
	}

	httpkit.WriteJSON(w, 200, map[string]any{
		"job_id":       job.ID,
		"filename":     artifactFilename(job),
		"city":         job.Spec.City,
		"country":      job.Spec.Country,
		"theme":        job.Spec.Theme,
		"content_type": contentType,
		"image_base64": base64.StdEncoding.EncodeToString(data),
	})
}

// artifactFilename builds a human-friendly download name like
// "Tokyo_Japan_noir_4f9c0a1b.png".
func artifactFilename(job jobs.Job) string {
	short := job.ID
	if i := strings.IndexByte(short, '_'); i >= 0 && len(short) > i+9 {
		short = short[i+1 : i+9]
	}
	return fmt.Sprintf("%s_%s_%s_%s.png",
		sanitize(job.Spec.City), sanitize(job.Spec.Country), job.Spec.Theme, short)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ' ':
			return '-'
		}
		return r
	}, s)
}
