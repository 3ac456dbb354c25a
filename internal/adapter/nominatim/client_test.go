package nominatim

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/quake-bulletin-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserAgent     = "quake-test/1.0"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string, metrics *observability.Metrics) *Client {
	return NewClient(baseURL, testUserAgent, 5*time.Second, 0, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestClient_Geocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "Lisboa, Portugal", r.URL.Query().Get("q"))
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[{"lat":"38.7077507","lon":"-9.1365919","display_name":"Lisboa, Portugal"}]`))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := testClient(srv.URL, metrics)
	result, err := c.Geocode(context.Background(), "Lisboa, Portugal")
	require.NoError(t, err)

	assert.True(t, result.Found)
	assert.InDelta(t, 38.7077507, result.Lat, 1e-9)
	assert.InDelta(t, -9.1365919, result.Lon, 1e-9)
	assert.Equal(t, "Lisboa, Portugal", result.DisplayName)
	assert.InDelta(t, 1, counterValue(t, metrics.GeocodeRequests.WithLabelValues("success")), 0)
}

func TestClient_Geocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := testClient(srv.URL, metrics)
	result, err := c.Geocode(context.Background(), "Nenhures, Portugal")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.InDelta(t, 1, counterValue(t, metrics.GeocodeRequests.WithLabelValues("empty")), 0)
}

func TestClient_Geocode_EmptyQuerySkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	result, err := testClient(srv.URL, observability.NewMetricsForTesting()).Geocode(context.Background(), "  ")
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestClient_Geocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	_, err := testClient(srv.URL, metrics).Geocode(context.Background(), "Lisboa, Portugal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.InDelta(t, 1, counterValue(t, metrics.GeocodeRequests.WithLabelValues("error")), 0)
}

func TestClient_Geocode_MalformedCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"north","lon":"-9.1"}]`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, observability.NewMetricsForTesting()).Geocode(context.Background(), "Lisboa, Portugal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse lat")
}

func TestClient_Geocode_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, observability.NewMetricsForTesting()).Geocode(context.Background(), "Lisboa, Portugal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_Geocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testUserAgent, 50*time.Millisecond, 0, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.Geocode(context.Background(), "Lisboa, Portugal")
	require.Error(t, err)
}

func TestClient_Geocode_CancelledWhileRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	// One request every 100s: the second call must wait and sees the cancellation.
	c := NewClient(srv.URL, testUserAgent, time.Second, 0.01, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.Geocode(context.Background(), "Lisboa, Portugal")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Geocode(ctx, "Porto, Portugal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := NewClient("", testUserAgent, time.Second, 1, observability.NewMetricsForTesting(), slog.Default())
	assert.Equal(t, DefaultBaseURL, c.baseURL)

	c = NewClient("http://nominatim.local/", testUserAgent, time.Second, 1, observability.NewMetricsForTesting(), slog.Default())
	assert.Equal(t, "http://nominatim.local", c.baseURL)
}
