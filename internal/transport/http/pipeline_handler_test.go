package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donorcli/internal/config"
	"donorcli/internal/websocket"
)

func newLookupServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimPrefix(r.URL.Path, "/postcodes/")
		if code == "ZZ999ZZ" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"status":200,"result":{"latitude":51.4,"longitude":0.01,"admin_district":"Bromley","admin_county":"","country":"England"}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPipelineHandler(t *testing.T) (*PipelineHandler, *config.Paths) {
	t.Helper()
	paths := config.PathsAt(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())

	srv := newLookupServer(t)
	cfg := config.Default()
	cfg.Geocode.BaseURL = srv.URL
	cfg.Geocode.MinInterval = 0

	hub := websocket.NewHub(testLogger())
	hub.Start()
	t.Cleanup(hub.Stop)

	return NewPipelineHandler(cfg, paths, hub, nil, testLogger()), paths
}

func seedUpload(t *testing.T, paths *config.Paths, name string) {
	t.Helper()
	content := "Postcode,Date,Amount,Donor Type,Source\n" +
		"BR1 3AB,03/03/2024,£10.00,Individual,LOTDON\n" +
		"BR1 3AB,10/03/2024,5.00,Individual,LOTDON\n"
	require.NoError(t, os.WriteFile(paths.GetUploadPath(name), []byte(content), 0644))
}

func TestStartRunMissingInput(t *testing.T) {
	handler, _ := newPipelineHandler(t)

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestStartRunCompletes(t *testing.T) {
	handler, paths := newPipelineHandler(t)
	seedUpload(t, paths, "donations.csv")

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "started")

	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return !handler.running && handler.lastResult != nil
	}, 5*time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Running    bool `json:"running"`
		LastResult struct {
			AggregateRows int `json:"aggregate_rows"`
		} `json:"last_result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.LastResult.AggregateRows)

	assert.FileExists(t, filepath.Join(paths.ReportsDir, "monthly_aggregates.csv"))
	assert.FileExists(t, paths.PostcodeCacheCSV)
}

func TestStartRunNamedInput(t *testing.T) {
	handler, paths := newPipelineHandler(t)
	seedUpload(t, paths, "march.csv")

	body := strings.NewReader(`{"input":"march.csv"}`)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", body))

	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return !handler.running
	}, 5*time.Second, 10*time.Millisecond)
}

func TestGetStatusIdle(t *testing.T) {
	handler, _ := newPipelineHandler(t)

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"running":false`)
}
