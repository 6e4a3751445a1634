package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths.
// This is the single source of truth for file locations: raw exports land in
// uploads/, derived tables in reports/, and the durable postcode cache in
// cache/.
type Paths struct {
	ExecutableDir string
	DataDir       string
	UploadsDir    string
	ReportsDir    string
	CacheDir      string
	LogsDir       string

	// Well-known files
	PostcodeCacheCSV    string
	EnrichedEventsCSV   string
	MonthlyAggregateCSV string
	PostcodeRollupCSV   string
	DonorResultsCSV     string
}

// GetPaths returns the application paths relative to the executable location.
// Paths are always executable-relative, never working-directory relative, so
// the binaries behave the same wherever they are launched from.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}
	return pathsUnder(filepath.Dir(exe)), nil
}

// PathsAt builds the path set rooted at an explicit directory. Used by tests
// and by commands that accept a -data override.
func PathsAt(root string) *Paths {
	return pathsUnder(root)
}

func pathsUnder(rootDir string) *Paths {
	dataDir := filepath.Join(rootDir, "data")
	reportsDir := filepath.Join(dataDir, "reports")
	cacheDir := filepath.Join(dataDir, "cache")

	return &Paths{
		ExecutableDir: rootDir,
		DataDir:       dataDir,
		UploadsDir:    filepath.Join(dataDir, "uploads"),
		ReportsDir:    reportsDir,
		CacheDir:      cacheDir,
		LogsDir:       filepath.Join(rootDir, "logs"),

		PostcodeCacheCSV:    filepath.Join(cacheDir, "postcode_cache.csv"),
		EnrichedEventsCSV:   filepath.Join(reportsDir, "donation_events_geocoded.csv"),
		MonthlyAggregateCSV: filepath.Join(reportsDir, "monthly_aggregates.csv"),
		PostcodeRollupCSV:   filepath.Join(reportsDir, "postcode_rollup.csv"),
		DonorResultsCSV:     filepath.Join(reportsDir, "donation_results.csv"),
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.UploadsDir,
		p.ReportsDir,
		p.CacheDir,
		p.LogsDir,
	}
	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetUploadPath returns the path for a raw input file
func (p *Paths) GetUploadPath(filename string) string {
	return filepath.Join(p.UploadsDir, filename)
}

// GetReportPath returns the path for a derived report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetCachePath returns the path for a cache file
func (p *Paths) GetCachePath(filename string) string {
	return filepath.Join(p.CacheDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved path layout for debugging
func (p *Paths) LogPathResolution() {
	slog.Default().Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("uploads", p.UploadsDir),
			slog.String("reports", p.ReportsDir),
			slog.String("cache", p.CacheDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("files",
			slog.String("postcode_cache", p.PostcodeCacheCSV),
			slog.String("enriched_events", p.EnrichedEventsCSV),
			slog.String("monthly_aggregates", p.MonthlyAggregateCSV),
			slog.String("donor_results", p.DonorResultsCSV),
		))
}
