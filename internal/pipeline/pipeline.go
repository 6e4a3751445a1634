// Package pipeline orchestrates the full processing run: load a raw donation
// export, normalize it, resolve missing postcodes through the cache, enrich
// events with coordinates, and write the derived tables.
package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"donorcli/internal/aggregate"
	"donorcli/internal/artifact"
	"donorcli/internal/config"
	"donorcli/internal/dataset"
	"donorcli/internal/exporter"
	"donorcli/internal/geocode"
	"donorcli/internal/infrastructure"
	"donorcli/pkg/contracts/domain"
)

// Result summarizes one pipeline run.
type Result struct {
	InputPath      string           `json:"input_path"`
	Outcome        *dataset.Outcome `json:"outcome"`
	Resolution     *geocode.Summary `json:"resolution"`
	EnrichedEvents int              `json:"enriched_events"`
	AggregateRows  int              `json:"aggregate_rows"`
	RollupRows     int              `json:"rollup_rows"`
	ResultRows     int              `json:"result_rows"`
	Duration       time.Duration    `json:"duration"`
}

// Pipeline wires the processing stages together.
type Pipeline struct {
	cfg       *config.Config
	paths     *config.Paths
	store     *geocode.Store
	resolver  *geocode.Resolver
	writer    *exporter.CSVWriter
	artifacts *artifact.Cache
	logger    *slog.Logger
	metrics   *infrastructure.PipelineMetrics
	progress  *ProgressTracker
}

// New assembles a pipeline from its parts. metrics and progress may be nil.
func New(cfg *config.Config, paths *config.Paths, store *geocode.Store, resolver *geocode.Resolver,
	logger *slog.Logger, metrics *infrastructure.PipelineMetrics, progress *ProgressTracker) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if progress == nil {
		progress = NewProgressTracker(nil)
	}
	return &Pipeline{
		cfg:       cfg,
		paths:     paths,
		store:     store,
		resolver:  resolver,
		writer:    exporter.NewCSVWriter(paths),
		artifacts: artifact.NewCache(cfg.Pipeline.ForceRebuild, cfg.Pipeline.StalenessCheck, logger),
		logger:    logger,
		metrics:   metrics,
		progress:  progress,
	}
}

// Run executes the full pipeline for one raw export file.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (*Result, error) {
	start := time.Now()
	result := &Result{InputPath: inputPath}

	success := false
	defer func() {
		result.Duration = time.Since(start)
		infrastructure.RecordPipelineRun(ctx, p.metrics, "full", result.Duration, success)
	}()

	events, err := p.normalize(ctx, inputPath, result)
	if err != nil {
		return result, err
	}

	if err := p.resolve(ctx, events, result); err != nil {
		return result, err
	}

	p.progress.StartStage(StageEnrich, len(events))
	result.EnrichedEvents = dataset.AttachCoordinates(events, p.store)
	p.progress.Update(len(events), "coordinates attached")

	if err := p.export(ctx, inputPath, events, result); err != nil {
		return result, err
	}

	success = true
	p.logger.InfoContext(ctx, "pipeline run complete",
		slog.String("input", inputPath),
		slog.Int("kept", result.Outcome.Kept),
		slog.Int("aggregates", result.AggregateRows),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// normalize loads the raw export and converts it to canonical events.
func (p *Pipeline) normalize(ctx context.Context, inputPath string, result *Result) ([]domain.NormalizedEvent, error) {
	p.progress.StartStage(StageLoad, 1)

	table, err := loadTable(inputPath)
	if err != nil {
		return nil, err
	}
	p.progress.Update(1, fmt.Sprintf("loaded %d rows", len(table.Rows)))

	minDate, err := p.cfg.Pipeline.MinDateTime()
	if err != nil {
		return nil, err
	}

	p.progress.StartStage(StageNormalize, len(table.Rows))
	events, outcome, err := dataset.NewNormalizer(minDate, p.logger).Normalize(table)
	if err != nil {
		return nil, err
	}
	result.Outcome = outcome
	p.progress.Update(len(table.Rows), fmt.Sprintf("kept %d rows", outcome.Kept))

	if p.metrics != nil {
		p.metrics.RowsKeptTotal.Add(ctx, int64(outcome.Kept))
		p.metrics.RowsDroppedTotal.Add(ctx, int64(outcome.DroppedTotal()))
	}
	return events, nil
}

// resolve fills the geocode cache for every postcode the events reference.
func (p *Pipeline) resolve(ctx context.Context, events []domain.NormalizedEvent, result *Result) error {
	missing := dataset.MissingPostcodes(events)
	p.progress.StartStage(StageResolve, len(missing))

	p.resolver.OnProgress = func(done, total int) {
		p.progress.Update(done, fmt.Sprintf("resolved %d/%d postcodes", done, total))
	}

	summary, err := p.resolver.ResolveMissing(ctx, missing)
	result.Resolution = summary
	return err
}

// export rebuilds the derived tables, honoring the artifact cache for the
// event, aggregate and rollup tables. The donor results table always merges;
// it is durable state, not a derived artifact.
func (p *Pipeline) export(ctx context.Context, inputPath string, events []domain.NormalizedEvent, result *Result) error {
	p.progress.StartStage(StageAggregate, 3)

	placed := make([]domain.NormalizedEvent, 0, len(events))
	for _, e := range events {
		if e.HasCoords {
			placed = append(placed, e)
		}
	}

	aggs := aggregate.Monthly(events)
	result.AggregateRows = len(aggs)
	p.progress.Increment("monthly aggregates computed")

	rolls := aggregate.Rollup(events)
	result.RollupRows = len(rolls)
	p.progress.Increment("postcode rollups computed")

	byType := aggregate.ByDonorType(placed)
	p.progress.Increment("donor type grouping computed")

	p.progress.StartStage(StageExport, 4)

	if _, err := p.artifacts.GetOrBuild(inputPath, p.paths.EnrichedEventsCSV, func() ([]byte, error) {
		return encodeTable(exporter.EventHeader, exporter.EncodeEvents(placed))
	}); err != nil {
		return err
	}
	p.progress.Increment("enriched events written")

	if _, err := p.artifacts.GetOrBuild(inputPath, p.paths.MonthlyAggregateCSV, func() ([]byte, error) {
		return encodeTable(exporter.AggregateHeader, exporter.EncodeAggregates(aggs))
	}); err != nil {
		return err
	}
	p.progress.Increment("monthly aggregates written")

	if _, err := p.artifacts.GetOrBuild(inputPath, p.paths.PostcodeRollupCSV, func() ([]byte, error) {
		return encodeTable(exporter.RollupHeader, exporter.EncodeRollups(rolls))
	}); err != nil {
		return err
	}
	p.progress.Increment("postcode rollups written")

	merged, err := p.mergeDonorResults(byType)
	if err != nil {
		return err
	}
	result.ResultRows = len(merged)
	p.progress.Increment("donor results merged")

	return nil
}

// mergeDonorResults folds newly grouped rows into the durable results table.
func (p *Pipeline) mergeDonorResults(incoming []domain.DonorTypeMonthly) ([]domain.DonorTypeMonthly, error) {
	var existing []domain.DonorTypeMonthly
	if config.FileExists(p.paths.DonorResultsCSV) {
		_, records, err := exporter.ReadCSV(p.paths.DonorResultsCSV)
		if err != nil {
			return nil, err
		}
		existing, err = exporter.DecodeDonorResults(records)
		if err != nil {
			return nil, err
		}
	}

	merged := aggregate.MergeDonorTypeResults(existing, incoming)
	if err := p.writer.WriteSimpleCSV(p.paths.DonorResultsCSV,
		exporter.DonorResultsHeader, exporter.EncodeDonorResults(merged)); err != nil {
		return nil, err
	}
	return merged, nil
}

// loadTable picks the loader by file extension.
func loadTable(path string) (*dataset.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return dataset.LoadWorkbook(path, "")
	default:
		return dataset.LoadCSV(path)
	}
}

// encodeTable renders a header and records as CSV bytes for artifact storage.
func encodeTable(header []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	if err := writer.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
