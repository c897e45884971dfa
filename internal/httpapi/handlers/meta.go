package handlers

import (
	"net/http"

	"posterforge/internal/httpkit"
	"posterforge/internal/poster"
)

// Root describes the API surface.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(w, 200, map[string]any{
		"name":    "Poster Forge API",
		"version": ServiceVersion,
		"endpoints": map[string]string{
			"POST /jobs":                 "Submit a poster generation job",
			"GET /jobs":                  "List recent jobs",
			"GET /jobs/{jobId}":          "Job status",
			"GET /jobs/{jobId}/artifact": "Download the generated poster",
			"GET /themes":                "List available themes",
			"GET /sizes":                 "List preset sizes",
			"GET /health":                "Health check",
		},
	})
}

// Themes lists the poster theme catalog.
func (h *Handler) Themes(w http.ResponseWriter, r *http.Request) {
	themes := poster.Themes()
	httpkit.WriteJSON(w, 200, map[string]any{
		"themes":  themes,
		"count":   len(themes),
		"default": poster.DefaultTheme,
	})
}

// Sizes lists the preset poster sizes.
func (h *Handler) Sizes(w http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(w, 200, map[string]any{
		"sizes": poster.SizePresets(),
		"note":  "Custom width/height in inches (1-20) are also accepted",
	})
}
