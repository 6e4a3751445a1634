package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"donorcli/internal/config"
	apperrors "donorcli/internal/errors"
	"donorcli/internal/geocode"
	"donorcli/internal/infrastructure"
	"donorcli/internal/pipeline"
	"donorcli/internal/websocket"
)

// PipelineHandler triggers processing runs and reports their status. Progress
// is pushed to websocket clients while a run is in flight; only one run may be
// active at a time.
type PipelineHandler struct {
	cfg     *config.Config
	paths   *config.Paths
	hub     *websocket.Hub
	metrics *infrastructure.PipelineMetrics
	logger  *slog.Logger

	mu         sync.Mutex
	running    bool
	lastResult *pipeline.Result
	lastError  string
}

// NewPipelineHandler creates a pipeline handler. metrics may be nil.
func NewPipelineHandler(cfg *config.Config, paths *config.Paths, hub *websocket.Hub,
	metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{
		cfg:     cfg,
		paths:   paths,
		hub:     hub,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "pipeline_handler")),
	}
}

// Routes returns the pipeline routes.
func (h *PipelineHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/run", h.StartRun)
	r.Get("/status", h.GetStatus)

	return r
}

// RunRequest is the body accepted by StartRun. Input is a filename under the
// uploads directory; an empty body runs the default export.
type RunRequest struct {
	Input        string `json:"input"`
	ForceRebuild bool   `json:"force_rebuild"`
}

// StartRun launches a pipeline run in the background and returns 202. A 409 is
// returned while a previous run is still active.
func (h *PipelineHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		apperrors.WriteError(w, apperrors.ErrInvalidRequest)
		return
	}

	if req.Input == "" {
		req.Input = "donations.csv"
	}
	inputPath := h.paths.GetUploadPath(filepath.Base(req.Input))

	if !config.FileExists(inputPath) {
		apperrors.WriteError(w, apperrors.NotFoundError("input file"))
		return
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		apperrors.WriteError(w, apperrors.ErrPipelineRunning)
		return
	}
	h.running = true
	h.mu.Unlock()

	h.logger.InfoContext(r.Context(), "pipeline run requested",
		slog.String("input", inputPath),
		slog.Bool("force_rebuild", req.ForceRebuild))

	go h.execute(inputPath, req.ForceRebuild)

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"status": "started",
		"input":  inputPath,
	})
}

// GetStatus reports whether a run is active and the outcome of the last run.
func (h *PipelineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	resp := map[string]interface{}{
		"running": h.running,
	}
	if h.lastResult != nil {
		resp["last_result"] = h.lastResult
	}
	if h.lastError != "" {
		resp["last_error"] = h.lastError
	}
	render.JSON(w, r, resp)
}

// execute runs the pipeline outside the request lifecycle, broadcasting stage
// progress to the hub.
func (h *PipelineHandler) execute(inputPath string, forceRebuild bool) {
	ctx := infrastructure.EnsureTraceID(context.Background())

	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	runCfg := *h.cfg
	if forceRebuild {
		runCfg.Pipeline.ForceRebuild = true
	}

	store := geocode.NewStore(h.paths.PostcodeCacheCSV)
	if err := store.Load(); err != nil {
		h.finish(ctx, nil, err)
		return
	}

	client := geocode.NewClient(runCfg.Geocode.BaseURL, runCfg.Geocode.RequestTimeout,
		runCfg.Geocode.MinInterval, geocode.WithLogger(h.logger))
	resolver := geocode.NewResolver(store, client, runCfg.Geocode.Workers,
		runCfg.Geocode.CheckpointEvery, h.logger)

	tracker := pipeline.NewProgressTracker(func(u pipeline.ProgressUpdate) {
		msgType := websocket.TypePipelineProgress
		if u.Stage == pipeline.StageResolve {
			msgType = websocket.TypeResolveProgress
		}
		h.hub.Broadcast(msgType, u)
	})

	p := pipeline.New(&runCfg, h.paths, store, resolver, h.logger, h.metrics, tracker)
	result, err := p.Run(ctx, inputPath)
	h.finish(ctx, result, err)
}

// finish records the outcome and notifies websocket clients.
func (h *PipelineHandler) finish(ctx context.Context, result *pipeline.Result, err error) {
	h.mu.Lock()
	if err != nil {
		h.lastError = err.Error()
		h.lastResult = nil
	} else {
		h.lastError = ""
		h.lastResult = result
	}
	h.mu.Unlock()

	if err != nil {
		h.logger.ErrorContext(ctx, "pipeline run failed", slog.String("error", err.Error()))
		h.hub.Broadcast(websocket.TypePipelineComplete, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	h.hub.Broadcast(websocket.TypePipelineComplete, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}
