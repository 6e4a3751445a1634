package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"donorcli/internal/config"
)

// HealthHandler reports service liveness and readiness.
type HealthHandler struct {
	paths     *config.Paths
	logger    *slog.Logger
	startTime time.Time
	version   string
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(paths *config.Paths, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		paths:     paths,
		logger:    logger.With(slog.String("component", "health_handler")),
		startTime: time.Now(),
		version:   version,
	}
}

// Routes returns the health routes.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetHealth)
	r.Get("/ready", h.GetReadiness)
	return r
}

// GetHealth reports liveness.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":  "healthy",
		"version": h.version,
		"uptime":  time.Since(h.startTime).String(),
	})
}

// GetReadiness reports whether derived tables are available to serve.
func (h *HealthHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]bool{
		"aggregates": config.FileExists(h.paths.MonthlyAggregateCSV),
		"rollups":    config.FileExists(h.paths.PostcodeRollupCSV),
		"cache":      config.FileExists(h.paths.PostcodeCacheCSV),
	}

	ready := true
	for _, ok := range checks {
		ready = ready && ok
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]interface{}{
		"ready":  ready,
		"checks": checks,
	})
}
