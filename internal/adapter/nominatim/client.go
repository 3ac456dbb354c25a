package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
	"github.com/couchcryptid/quake-bulletin-etl/internal/observability"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Client implements domain.Geocoder using the Nominatim search API.
// Requests are rate limited; the public instance allows one per second.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. requestsPerSecond <= 0 disables rate limiting.
func NewClient(baseURL, userAgent string, timeout time.Duration, requestsPerSecond float64, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(requestsPerSecond),
		metrics:    metrics,
		logger:     logger,
	}
}

func newLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
}

// Geocode resolves a free-text query to the best matching place.
func (c *Client) Geocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	if strings.TrimSpace(query) == "" {
		return domain.GeocodingResult{}, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("geocode rate limit: %w", err)
	}

	params := url.Values{
		"format": {"json"},
		"limit":  {"1"},
		"q":      {query},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodingResult{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(places) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		c.logger.Debug("nominatim returned no results", "query", query)
		return domain.GeocodingResult{}, nil
	}

	result, err := places[0].result()
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodingResult{}, err
	}
	c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	return result, nil
}

// Nominatim API response types. Coordinates arrive as decimal strings.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (p place) result() (domain.GeocodingResult, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}
	return domain.GeocodingResult{Lat: lat, Lon: lon, DisplayName: p.DisplayName, Found: true}, nil
}
