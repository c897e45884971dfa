package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"posterforge/internal/httpapi/handlers"
	"posterforge/internal/httpkit"
	"posterforge/internal/jobs"
	"posterforge/internal/pkg/logger"
	"posterforge/internal/pkg/middleware"
	"posterforge/internal/storage"
	"posterforge/internal/worker/queue"
)

type Deps struct {
	Store jobs.Store
	Waker queue.Waker
	SP    storage.Provider
	Log   *logger.Logger

	CORSAllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))

	if len(d.CORSAllowedOrigins) > 0 {
		r.Use(httpkit.CORS(httpkit.CORSOptions{
			AllowedOrigins: d.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAgeSeconds:  600,
		}))
	}

	h := handlers.New(handlers.Deps{
		Store: d.Store,
		Waker: d.Waker,
		SP:    d.SP,
		Log:   log,
	})

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/themes", h.Themes)
	r.Get("/sizes", h.Sizes)

	// Submission and status never block on renders; the artifact route
	// streams files, so it stays outside the request timeout.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Post("/jobs", h.PostJob)
		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{jobId}", h.GetJob)
	})
	r.Get("/jobs/{jobId}/artifact", h.GetArtifact)

	return r
}
