package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLookupServer(t *testing.T, known map[string][2]float64, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
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
}

func TestClientResolveSuccess(t *testing.T) {
	srv := newLookupServer(t, map[string][2]float64{"BR13AB": {51.406, 0.015}}, nil)
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 0)
	rec, err := client.Resolve(context.Background(), "BR13AB")

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "BR13AB", rec.Postcode)
	assert.InDelta(t, 51.406, rec.Latitude, 0.001)
	assert.Equal(t, "England", rec.Country)
}

func TestClientResolveNotFoundIsNotAnError(t *testing.T) {
	srv := newLookupServer(t, nil, nil)
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 0)
	rec, err := client.Resolve(context.Background(), "ZZ99ZZ")

	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestClientResolveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 0)
	rec, err := client.Resolve(context.Background(), "BR13AB")

	require.Error(t, err)
	assert.Nil(t, rec)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClientResolveTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL, 1*time.Second, 0)
	rec, err := client.Resolve(context.Background(), "BR13AB")

	require.Error(t, err)
	assert.Nil(t, rec)
}

func TestClientRespectsMinInterval(t *testing.T) {
	srv := newLookupServer(t, map[string][2]float64{"BR13AB": {51.4, 0.0}}, nil)
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 40*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Resolve(context.Background(), "BR13AB")
		require.NoError(t, err)
	}
	// First request is immediate (burst 1); the next two each wait the interval.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestClientResolveCancelledContext(t *testing.T) {
	srv := newLookupServer(t, nil, nil)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(srv.URL, 5*time.Second, time.Second)
	_, err := client.Resolve(ctx, "BR13AB")
	require.Error(t, err)
}
