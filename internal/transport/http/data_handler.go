// Package http exposes the pipeline's derived tables over a JSON API.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "donorcli/internal/errors"
	"donorcli/internal/services"
	"donorcli/pkg/contracts/domain"
)

// DataHandler serves the derived donation tables.
type DataHandler struct {
	service *services.DataService
	logger  *slog.Logger
}

// NewDataHandler creates a data handler.
func NewDataHandler(service *services.DataService, logger *slog.Logger) *DataHandler {
	return &DataHandler{
		service: service,
		logger:  logger.With(slog.String("component", "data_handler")),
	}
}

// Routes returns the data routes.
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/aggregates", h.GetAggregates)
	r.Get("/events", h.GetEvents)
	r.Get("/rollups", h.GetRollups)
	r.Get("/results", h.GetDonorResults)
	r.Get("/regions", h.GetRegions)
	r.Get("/sources", h.GetSources)
	r.Get("/summary", h.GetSummary)

	return r
}

// GetAggregates returns the monthly aggregate table, optionally filtered by
// region or month query parameters.
func (h *DataHandler) GetAggregates(w http.ResponseWriter, r *http.Request) {
	aggs, err := h.service.Aggregates()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	region := r.URL.Query().Get("region")
	month := r.URL.Query().Get("month")
	if region != "" || month != "" {
		filtered := make([]domain.MonthlyAggregate, 0, len(aggs))
		for _, a := range aggs {
			if region != "" && !strings.EqualFold(a.Region, region) {
				continue
			}
			if month != "" && a.Month != month {
				continue
			}
			filtered = append(filtered, a)
		}
		aggs = filtered
	}

	render.JSON(w, r, map[string]interface{}{
		"count":      len(aggs),
		"aggregates": aggs,
	})
}

// GetEvents returns the enriched per-event table.
func (h *DataHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Events()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"count":  len(events),
		"events": events,
	})
}

// GetRollups returns the per-postcode rollup table.
func (h *DataHandler) GetRollups(w http.ResponseWriter, r *http.Request) {
	rolls, err := h.service.Rollups()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"count":   len(rolls),
		"rollups": rolls,
	})
}

// GetDonorResults returns the durable donor results table.
func (h *DataHandler) GetDonorResults(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.DonorResults()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"count":   len(rows),
		"results": rows,
	})
}

// GetRegions returns the region grouping table.
func (h *DataHandler) GetRegions(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"regions": h.service.Regions(),
	})
}

// GetSources returns per-source donation totals with display labels.
func (h *DataHandler) GetSources(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.SourceTotals()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"sources": totals,
	})
}

// GetSummary returns the headline summary.
func (h *DataHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summarize()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

// writeServiceError maps service errors to API responses.
func (h *DataHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type == apperrors.ErrTypeNotFound {
		apperrors.WriteError(w, apperrors.ErrArtifactNotFound)
		return
	}

	h.logger.ErrorContext(r.Context(), "data request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	apperrors.WriteError(w, apperrors.ErrInternalServer)
}
