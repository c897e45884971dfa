package handlers

import (
	"posterforge/internal/jobs"
	"posterforge/internal/pkg/logger"
	"posterforge/internal/storage"
	"posterforge/internal/worker/queue"
)

// ServiceVersion is reported by the root and health endpoints.
const ServiceVersion = "1.0.0"

type Deps struct {
	Store jobs.Store
	Waker queue.Waker
	SP    storage.Provider
	Log   *logger.Logger
}

type Handler struct {
	store jobs.Store
	waker queue.Waker
	sp    storage.Provider
	log   *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		store: d.Store,
		waker: d.Waker,
		sp:    d.SP,
		log:   log.WithComponent("api"),
	}
}
