package geocode

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, known map[string][2]float64, hits *atomic.Int64, workers int) (*Resolver, *Store) {
	t.Helper()

	srv := newLookupServer(t, known, hits)
	t.Cleanup(srv.Close)

	store := NewStore(filepath.Join(t.TempDir(), "cache.csv"))
	client := NewClient(srv.URL, 5*time.Second, 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewResolver(store, client, workers, 50, logger), store
}

func TestResolveMissingFillsCache(t *testing.T) {
	known := map[string][2]float64{
		"BR13AB":  {51.406, 0.015},
		"DA11AA":  {51.446, 0.214},
		"TN151AA": {51.270, 0.320},
	}
	resolver, store := newTestResolver(t, known, nil, 1)

	summary, err := resolver.ResolveMissing(context.Background(), []string{"BR13AB", "DA11AA", "TN151AA"})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Requested)
	assert.Equal(t, 0, summary.Cached)
	assert.Equal(t, 3, summary.Resolved)
	assert.Equal(t, 0, summary.Unresolved)
	assert.Equal(t, 3, store.Len())

	rec, ok := store.Get("DA11AA")
	require.True(t, ok)
	assert.InDelta(t, 51.446, rec.Latitude, 0.001)
}

func TestResolveMissingSecondRunMakesNoLookups(t *testing.T) {
	known := map[string][2]float64{"BR13AB": {51.4, 0.0}}
	var hits atomic.Int64
	resolver, _ := newTestResolver(t, known, &hits, 1)

	_, err := resolver.ResolveMissing(context.Background(), []string{"BR13AB"})
	require.NoError(t, err)
	firstRun := hits.Load()
	require.Positive(t, firstRun)

	summary, err := resolver.ResolveMissing(context.Background(), []string{"BR13AB"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Cached)
	assert.Equal(t, 0, summary.Resolved)
	assert.Equal(t, firstRun, hits.Load(), "cached postcode must not hit the network")
}

func TestResolveMissingCountsUnresolved(t *testing.T) {
	known := map[string][2]float64{"BR13AB": {51.4, 0.0}}
	resolver, store := newTestResolver(t, known, nil, 1)

	summary, err := resolver.ResolveMissing(context.Background(), []string{"BR13AB", "ZZ99ZZ"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Resolved)
	assert.Equal(t, 1, summary.Unresolved)
	assert.False(t, store.Has("ZZ99ZZ"))
}

func TestResolveMissingDeduplicatesInput(t *testing.T) {
	known := map[string][2]float64{"BR13AB": {51.4, 0.0}}
	var hits atomic.Int64
	resolver, _ := newTestResolver(t, known, &hits, 1)

	summary, err := resolver.ResolveMissing(context.Background(), []string{"BR13AB", "BR13AB", "BR13AB"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Resolved)
	assert.Equal(t, int64(1), hits.Load())
}

func TestResolveMissingPersistsCache(t *testing.T) {
	known := map[string][2]float64{"BR13AB": {51.4, 0.0}}
	resolver, store := newTestResolver(t, known, nil, 1)

	_, err := resolver.ResolveMissing(context.Background(), []string{"BR13AB"})
	require.NoError(t, err)

	reloaded := NewStore(store.path)
	require.NoError(t, reloaded.Load())
	assert.True(t, reloaded.Has("BR13AB"))
}

func TestResolveMissingConcurrentWorkers(t *testing.T) {
	known := make(map[string][2]float64)
	codes := make([]string, 0, 20)
	for _, outward := range []string{"BR1", "BR2", "DA1", "DA2"} {
		for _, inward := range []string{"1AA", "2BB", "3CC", "4DD", "5EE"} {
			code := outward + inward
			known[code] = [2]float64{51.4, 0.1}
			codes = append(codes, code)
		}
	}

	resolver, store := newTestResolver(t, known, nil, 4)

	summary, err := resolver.ResolveMissing(context.Background(), codes)
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Resolved)
	assert.Equal(t, 20, store.Len())
}

func TestResolveMissingReportsProgress(t *testing.T) {
	known := map[string][2]float64{
		"BR13AB": {51.4, 0.0},
		"DA11AA": {51.4, 0.2},
	}
	resolver, _ := newTestResolver(t, known, nil, 1)

	var calls atomic.Int64
	var lastTotal atomic.Int64
	resolver.OnProgress = func(done, total int) {
		calls.Add(1)
		lastTotal.Store(int64(total))
	}

	_, err := resolver.ResolveMissing(context.Background(), []string{"BR13AB", "DA11AA"})
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, int64(2), lastTotal.Load())
}

func TestResolveMissingEmptyInput(t *testing.T) {
	resolver, _ := newTestResolver(t, nil, nil, 1)

	summary, err := resolver.ResolveMissing(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, &Summary{}, summary)
}
