// Package services exposes the pipeline's derived tables to the transport
// layer.
package services

import (
	"log/slog"
	"os"
	"sort"

	"donorcli/internal/config"
	"donorcli/internal/dataset"
	apperrors "donorcli/internal/errors"
	"donorcli/internal/exporter"
	"donorcli/internal/postcode"
	"donorcli/pkg/contracts/domain"
)

// DataService reads derived tables from the reports directory. Tables are
// read on demand; the processor may rewrite them between requests.
type DataService struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewDataService creates a data service over the application paths.
func NewDataService(paths *config.Paths, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataService{paths: paths, logger: logger}
}

// Aggregates returns the monthly aggregate table.
func (s *DataService) Aggregates() ([]domain.MonthlyAggregate, error) {
	records, err := s.readArtifact(s.paths.MonthlyAggregateCSV, "monthly aggregates")
	if err != nil {
		return nil, err
	}
	return exporter.DecodeAggregates(records)
}

// Events returns the enriched per-event table.
func (s *DataService) Events() ([]domain.NormalizedEvent, error) {
	records, err := s.readArtifact(s.paths.EnrichedEventsCSV, "enriched events")
	if err != nil {
		return nil, err
	}
	return exporter.DecodeEvents(records)
}

// Rollups returns the per-postcode rollup table.
func (s *DataService) Rollups() ([]domain.PostcodeRollup, error) {
	records, err := s.readArtifact(s.paths.PostcodeRollupCSV, "postcode rollups")
	if err != nil {
		return nil, err
	}
	return exporter.DecodeRollups(records)
}

// DonorResults returns the durable donor results table.
func (s *DataService) DonorResults() ([]domain.DonorTypeMonthly, error) {
	records, err := s.readArtifact(s.paths.DonorResultsCSV, "donor results")
	if err != nil {
		return nil, err
	}
	return exporter.DecodeDonorResults(records)
}

// RegionInfo describes one UK region and its postcode areas.
type RegionInfo struct {
	Name  string   `json:"name"`
	Areas []string `json:"areas"`
}

// Regions returns the region grouping table in display order.
func (s *DataService) Regions() []RegionInfo {
	names := postcode.Regions()
	out := make([]RegionInfo, 0, len(names))
	for _, name := range names {
		out = append(out, RegionInfo{Name: name, Areas: postcode.RegionAreas(name)})
	}
	return out
}

// SourceTotal is the overall donation total for one source code.
type SourceTotal struct {
	Source      string  `json:"source"`
	Label       string  `json:"label"`
	TotalAmount float64 `json:"total_amount"`
	EventCount  int     `json:"event_count"`
}

// SourceTotals aggregates the enriched events by source, attaching display
// labels. Sorted by total amount descending, then source for ties.
func (s *DataService) SourceTotals() ([]SourceTotal, error) {
	events, err := s.Events()
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*SourceTotal)
	for _, e := range events {
		st, ok := totals[e.Source]
		if !ok {
			st = &SourceTotal{Source: e.Source, Label: dataset.SourceLabel(e.Source)}
			totals[e.Source] = st
		}
		st.TotalAmount += e.Amount
		st.EventCount++
	}

	out := make([]SourceTotal, 0, len(totals))
	for _, st := range totals {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalAmount != out[j].TotalAmount {
			return out[i].TotalAmount > out[j].TotalAmount
		}
		return out[i].Source < out[j].Source
	})
	return out, nil
}

// Summary is the headline view of the derived data.
type Summary struct {
	Postcodes     int                `json:"postcodes"`
	Events        int                `json:"events"`
	TotalAmount   float64            `json:"total_amount"`
	LatestMonth   string             `json:"latest_month"`
	RegionAmounts map[string]float64 `json:"region_amounts"`
}

// Summarize computes the headline summary from the rollup table.
func (s *DataService) Summarize() (*Summary, error) {
	rolls, err := s.Rollups()
	if err != nil {
		return nil, err
	}

	summary := &Summary{RegionAmounts: make(map[string]float64)}
	summary.Postcodes = len(rolls)
	for _, r := range rolls {
		summary.Events += r.EventCount
		summary.TotalAmount += r.TotalAmount
		summary.RegionAmounts[r.Region] += r.TotalAmount
		if r.LatestMonth > summary.LatestMonth {
			summary.LatestMonth = r.LatestMonth
		}
	}
	return summary, nil
}

// readArtifact reads a derived table, mapping a missing file to a not-found
// error the transport layer can translate.
func (s *DataService) readArtifact(path, name string) ([][]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, apperrors.NewNotFoundError(name)
	}
	_, records, err := exporter.ReadCSV(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read "+name, err)
	}
	return records, nil
}
