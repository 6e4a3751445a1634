package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	apperrors "donorcli/internal/errors"
	"donorcli/pkg/contracts/domain"
)

// Client looks up postcodes against a postcodes.io compatible service. All
// requests pass through a shared rate limiter so concurrent callers never
// exceed the service's polite request interval.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a lookup client. minInterval is the enforced delay between
// consecutive requests; zero disables throttling.
func NewClient(baseURL string, timeout time.Duration, minInterval time.Duration, opts ...ClientOption) *Client {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lookupResponse matches the postcodes.io result envelope
type lookupResponse struct {
	Status int `json:"status"`
	Result struct {
		Latitude      float64 `json:"latitude"`
		Longitude     float64 `json:"longitude"`
		AdminDistrict string  `json:"admin_district"`
		AdminCounty   string  `json:"admin_county"`
		Country       string  `json:"country"`
	} `json:"result"`
}

// Resolve looks up a single canonical postcode. A postcode the service does
// not know returns (nil, nil): unknown is an expected outcome, not an error.
// Transport and decode failures return an error.
func (c *Client) Resolve(ctx context.Context, postcode string) (*domain.GeocodeRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewNetworkError("rate limiter wait cancelled", err)
	}

	endpoint := fmt.Sprintf("%s/postcodes/%s", c.baseURL, url.PathEscape(postcode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to build lookup request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("postcode lookup failed for %s", postcode), err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logger.DebugContext(ctx, "postcode not known to lookup service",
			slog.String("postcode", postcode))
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.NewNetworkError(
			fmt.Sprintf("postcode lookup for %s returned status %d", postcode, resp.StatusCode), nil)
	}

	var decoded lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to decode lookup response for %s", postcode), err)
	}

	return &domain.GeocodeRecord{
		Postcode:      postcode,
		Latitude:      decoded.Result.Latitude,
		Longitude:     decoded.Result.Longitude,
		AdminDistrict: decoded.Result.AdminDistrict,
		AdminCounty:   decoded.Result.AdminCounty,
		Country:       decoded.Result.Country,
	}, nil
}
