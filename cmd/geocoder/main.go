package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"donorcli/internal/config"
	"donorcli/internal/dataset"
	"donorcli/internal/geocode"
	"donorcli/internal/infrastructure"
	"donorcli/internal/postcode"
)

func main() {
	inPath := flag.String("in", "", "donation export or plain list of postcodes to resolve (.csv or .xlsx)")
	cachePath := flag.String("cache", "", "postcode cache CSV; defaults to data/cache/postcode_cache.csv")
	dataDir := flag.String("data", "", "override the data root directory (defaults to the executable directory)")
	rateMs := flag.Int("rate", 0, "minimum milliseconds between lookups (overrides config)")
	workers := flag.Int("workers", 0, "concurrent lookup workers (overrides config)")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "usage: geocoder -in <export.csv> [-cache <cache.csv>] [-rate <ms>] [-workers <n>]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *rateMs > 0 {
		cfg.Geocode.MinInterval = time.Duration(*rateMs) * time.Millisecond
	}
	if *workers > 0 {
		cfg.Geocode.Workers = *workers
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
	if *cachePath != "" {
		paths.PostcodeCacheCSV = *cachePath
	}

	if !config.FileExists(*inPath) {
		logger.Error("Input file not found", "path", *inPath)
		os.Exit(1)
	}

	codes, err := loadPostcodes(*inPath, cfg, logger)
	if err != nil {
		logger.Error("Failed to load postcodes", "path", *inPath, "error", err)
		os.Exit(1)
	}
	logger.Info("Postcodes loaded", "count", len(codes))

	store := geocode.NewStore(paths.PostcodeCacheCSV)
	if err := store.Load(); err != nil {
		logger.Error("Failed to load postcode cache", "error", err)
		os.Exit(1)
	}

	client := geocode.NewClient(cfg.Geocode.BaseURL, cfg.Geocode.RequestTimeout, cfg.Geocode.MinInterval,
		geocode.WithLogger(logger))
	resolver := geocode.NewResolver(store, client, cfg.Geocode.Workers, cfg.Geocode.CheckpointEvery, logger)
	resolver.OnProgress = func(done, total int) {
		fmt.Printf("\rresolving %d/%d", done, total)
		if done == total {
			fmt.Println()
		}
	}

	summary, err := resolver.ResolveMissing(context.Background(), codes)
	if err != nil {
		logger.Error("Resolution failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Resolution complete: %d requested, %d already cached, %d resolved, %d unresolved\n",
		summary.Requested, summary.Cached, summary.Resolved, summary.Unresolved)
	fmt.Printf("Cache now holds %d postcodes at %s\n", store.Len(), paths.PostcodeCacheCSV)
}

// loadPostcodes extracts the distinct normalized postcodes that still lack
// coordinates from a donation export. A file without the expected columns is
// treated as a plain postcode list, one code per line.
func loadPostcodes(path string, cfg *config.Config, logger *slog.Logger) ([]string, error) {
	table, err := loadTable(path)
	if err != nil {
		return nil, err
	}

	minDate, err := cfg.Pipeline.MinDateTime()
	if err != nil {
		return nil, err
	}

	events, _, err := dataset.NewNormalizer(minDate, logger).Normalize(table)
	if err == nil {
		return dataset.MissingPostcodes(events), nil
	}

	seen := make(map[string]bool)
	var codes []string
	for _, row := range append([][]string{table.Header}, table.Rows...) {
		if len(row) == 0 {
			continue
		}
		code, ok := postcode.Normalize(row[0])
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}

func loadTable(path string) (*dataset.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return dataset.LoadWorkbook(path, "")
	default:
		return dataset.LoadCSV(path)
	}
}

func resolvePaths(dataDir string) (*config.Paths, error) {
	if dataDir != "" {
		return config.PathsAt(dataDir), nil
	}
	return config.GetPaths()
}
