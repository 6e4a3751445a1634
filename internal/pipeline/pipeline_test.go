package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donorcli/internal/config"
	"donorcli/internal/exporter"
	"donorcli/internal/geocode"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	pipeline *Pipeline
	paths    *config.Paths
	store    *geocode.Store
	lookups  *atomic.Int64
}

func newTestEnv(t *testing.T, known map[string][2]float64) *testEnv {
	t.Helper()

	var lookups atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lookups.Add(1)
		code := r.URL.Path[len("/postcodes/"):]
		coords, ok := known[code]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"status":404,"error":"Postcode not found"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":200,"result":{"latitude":%f,"longitude":%f,"admin_district":"Bromley","admin_county":"","country":"England"}}`,
			coords[0], coords[1])
	}))
	t.Cleanup(srv.Close)

	paths := config.PathsAt(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())

	cfg := config.Default()
	cfg.Geocode.BaseURL = srv.URL
	cfg.Geocode.MinInterval = 0
	cfg.Pipeline.MinDate = "2022-01-01"

	logger := discardLogger()
	store := geocode.NewStore(paths.PostcodeCacheCSV)
	require.NoError(t, store.Load())
	client := geocode.NewClient(srv.URL, 5*time.Second, 0)
	resolver := geocode.NewResolver(store, client, 1, 50, logger)

	return &testEnv{
		pipeline: New(cfg, paths, store, resolver, logger, nil, nil),
		paths:    paths,
		store:    store,
		lookups:  &lookups,
	}
}

func writeInput(t *testing.T, paths *config.Paths, content string) string {
	t.Helper()
	path := paths.GetUploadPath("export.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const sampleExport = `Postcode,Date,Total_Amount,Donor_Type,Source
BR1 3AB,01/03/2024,£10.00,Individual,LOTDON
br1 3ab,15/03/2024,£5,Individual,LOTDON
DA11 3AB,02/03/2024,20,Corporate,CFADON
ZZ99 9ZZ,02/03/2024,30,Individual,LOTDON
BR1 3AB,02/03/2020,999,Individual,LOTDON
`

func TestRunEndToEnd(t *testing.T) {
	env := newTestEnv(t, map[string][2]float64{
		"BR13AB":  {51.406, 0.015},
		"DA113AB": {51.440, 0.330},
	})
	input := writeInput(t, env.paths, sampleExport)

	result, err := env.pipeline.Run(context.Background(), input)
	require.NoError(t, err)

	// 2020 row is before the cutoff
	assert.Equal(t, 4, result.Outcome.Kept)
	assert.Equal(t, 1, result.Outcome.DroppedTotal())

	// Three distinct postcodes needed lookups; one is unknown
	assert.Equal(t, 2, result.Resolution.Resolved)
	assert.Equal(t, 1, result.Resolution.Unresolved)
	assert.Equal(t, 3, result.EnrichedEvents)

	// Aggregates: case variants of BR1 3AB collapse into one row
	_, records, err := exporter.ReadCSV(env.paths.MonthlyAggregateCSV)
	require.NoError(t, err)
	aggs, err := exporter.DecodeAggregates(records)
	require.NoError(t, err)
	require.Len(t, aggs, 2)

	br := aggs[0]
	assert.Equal(t, "BR13AB", br.Postcode)
	assert.Equal(t, "2024-03", br.Month)
	assert.Equal(t, 15.0, br.TotalAmount)
	assert.Equal(t, 2, br.EventCount)
	assert.Equal(t, 10.0, br.MaxSingleAmount)
	assert.Equal(t, "LOTDON", br.PrimarySource)
	assert.Equal(t, "South East", br.Region)

	da := aggs[1]
	assert.Equal(t, "DA113AB", da.Postcode)
	assert.Equal(t, "East", da.Catchment)
}

func TestRunSecondPassUsesCacheAndArtifacts(t *testing.T) {
	env := newTestEnv(t, map[string][2]float64{
		"BR13AB":  {51.406, 0.015},
		"DA113AB": {51.440, 0.330},
	})
	input := writeInput(t, env.paths, sampleExport)

	_, err := env.pipeline.Run(context.Background(), input)
	require.NoError(t, err)
	firstLookups := env.lookups.Load()

	result, err := env.pipeline.Run(context.Background(), input)
	require.NoError(t, err)

	// Resolved postcodes come from the cache; only the unknown one is retried
	assert.Equal(t, 2, result.Resolution.Cached)
	assert.Equal(t, firstLookups+1, env.lookups.Load(), "only the unresolved postcode goes back to the network")
}

func TestRunDonorResultsMergeAcrossRuns(t *testing.T) {
	env := newTestEnv(t, map[string][2]float64{"BR13AB": {51.406, 0.015}})
	input := writeInput(t, env.paths, "Postcode,Date,Amount,Donor_Type\nBR1 3AB,01/03/2024,10,Individual\n")

	_, err := env.pipeline.Run(context.Background(), input)
	require.NoError(t, err)

	// Re-ingest the same data; results table merges by summation
	_, err = env.pipeline.Run(context.Background(), input)
	require.NoError(t, err)

	_, records, err := exporter.ReadCSV(env.paths.DonorResultsCSV)
	require.NoError(t, err)
	rows, err := exporter.DecodeDonorResults(records)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 20.0, rows[0].TotalAmount)
	assert.Equal(t, 2, rows[0].DonorCount)
}

func TestRunMissingPostcodeColumnFails(t *testing.T) {
	env := newTestEnv(t, nil)
	input := writeInput(t, env.paths, "Date,Amount\n01/03/2024,10\n")

	_, err := env.pipeline.Run(context.Background(), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEMA")
}

func TestRunMissingInputFileFails(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.pipeline.Run(context.Background(), env.paths.GetUploadPath("absent.csv"))
	require.Error(t, err)
}

func TestRunReportsProgressStages(t *testing.T) {
	env := newTestEnv(t, map[string][2]float64{"BR13AB": {51.406, 0.015}})
	input := writeInput(t, env.paths, "Postcode,Date,Amount\nBR1 3AB,01/03/2024,10\n")

	stages := make(map[string]bool)
	progress := NewProgressTracker(func(u ProgressUpdate) {
		stages[u.Stage] = true
	})
	cfgPipeline := New(env.pipeline.cfg, env.paths, env.store,
		geocode.NewResolver(env.store, geocode.NewClient(env.pipeline.cfg.Geocode.BaseURL, time.Second, 0), 1, 50, discardLogger()),
		discardLogger(), nil, progress)

	_, err := cfgPipeline.Run(context.Background(), input)
	require.NoError(t, err)

	for _, stage := range []string{StageLoad, StageNormalize, StageResolve, StageEnrich, StageAggregate, StageExport} {
		assert.True(t, stages[stage], "stage %s should report progress", stage)
	}
}
