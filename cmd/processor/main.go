package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"donorcli/internal/config"
	"donorcli/internal/geocode"
	"donorcli/internal/infrastructure"
	"donorcli/internal/pipeline"
)

func main() {
	inPath := flag.String("in", "", "raw donation export (.csv or .xlsx); defaults to data/uploads/donations.csv")
	cachePath := flag.String("cache", "", "postcode cache CSV; defaults to data/cache/postcode_cache.csv")
	dataDir := flag.String("data", "", "override the data root directory (defaults to the executable directory)")
	fullRework := flag.Bool("full", false, "force full rebuild of all derived tables")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *fullRework {
		cfg.Pipeline.ForceRebuild = true
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	paths, err := resolvePaths(*dataDir)
	if err != nil {
		logger.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		logger.Error("Failed to create directories", "error", err)
		os.Exit(1)
	}

	if *inPath == "" {
		*inPath = paths.GetUploadPath("donations.csv")
	}
	if *cachePath != "" {
		paths.PostcodeCacheCSV = *cachePath
	}

	if !config.FileExists(*inPath) {
		logger.Error("Input file not found", "path", *inPath)
		os.Exit(1)
	}

	store := geocode.NewStore(paths.PostcodeCacheCSV)
	if err := store.Load(); err != nil {
		logger.Error("Failed to load postcode cache", "error", err)
		os.Exit(1)
	}
	logger.Info("Postcode cache loaded", "entries", store.Len())

	client := geocode.NewClient(cfg.Geocode.BaseURL, cfg.Geocode.RequestTimeout, cfg.Geocode.MinInterval,
		geocode.WithLogger(logger))
	resolver := geocode.NewResolver(store, client, cfg.Geocode.Workers, cfg.Geocode.CheckpointEvery, logger)

	progress := pipeline.NewProgressTracker(func(u pipeline.ProgressUpdate) {
		if u.Total > 0 {
			fmt.Printf("[%s] %d/%d (%.0f%%) %s\n", u.Stage, u.Current, u.Total, u.Percentage, u.Message)
		}
	})

	p := pipeline.New(cfg, paths, store, resolver, logger, nil, progress)

	result, err := p.Run(context.Background(), *inPath)
	if err != nil {
		logger.Error("Pipeline run failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\nProcessing complete in %s\n", result.Duration.Round(1e7))
	fmt.Printf("  rows kept:        %d (dropped %d)\n", result.Outcome.Kept, result.Outcome.DroppedTotal())
	fmt.Printf("  postcodes cached: %d, resolved: %d, unresolved: %d\n",
		result.Resolution.Cached, result.Resolution.Resolved, result.Resolution.Unresolved)
	fmt.Printf("  aggregate rows:   %d\n", result.AggregateRows)
	fmt.Printf("  rollup rows:      %d\n", result.RollupRows)
	fmt.Printf("  result rows:      %d\n", result.ResultRows)
}

func resolvePaths(dataDir string) (*config.Paths, error) {
	if dataDir != "" {
		return config.PathsAt(dataDir), nil
	}
	return config.GetPaths()
}
