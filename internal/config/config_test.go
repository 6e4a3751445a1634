package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.postcodes.io", cfg.Geocode.BaseURL)
	assert.Equal(t, 80*time.Millisecond, cfg.Geocode.MinInterval)
	assert.Equal(t, 1, cfg.Geocode.Workers)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	assert.Error(t, cfg.validate())
}

func TestValidateRejectsBadMinDate(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.MinDate = "01/01/2022"
	assert.Error(t, cfg.validate())
}

func TestValidateCorrectsLogFormat(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "syslog"
	require.NoError(t, cfg.validate())

	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "both", cfg.Logging.Output)
}

func TestMinDateTime(t *testing.T) {
	p := PipelineConfig{MinDate: "2022-01-01"}
	got, err := p.MinDateTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), got)

	p.MinDate = ""
	got, err = p.MinDateTime()
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestPathsAt(t *testing.T) {
	root := t.TempDir()
	paths := PathsAt(root)

	assert.Equal(t, filepath.Join(root, "data", "cache", "postcode_cache.csv"), paths.PostcodeCacheCSV)
	assert.Equal(t, filepath.Join(root, "data", "uploads", "export.csv"), paths.GetUploadPath("export.csv"))

	require.NoError(t, paths.EnsureDirectories())
	assert.DirExists(t, paths.UploadsDir)
	assert.DirExists(t, paths.CacheDir)
	assert.DirExists(t, paths.ReportsDir)
}
