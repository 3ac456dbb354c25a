package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
)

// maxEventsLimit caps the number of events a single request may read.
const maxEventsLimit = 1000

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker = sharedobs.ReadinessChecker

// EventReader returns the newest persisted events, newest first.
type EventReader interface {
	Latest(n int) []domain.EarthquakeEvent
}

// Server exposes health, readiness, metrics, and the latest-events API.
type Server struct {
	httpServer   *http.Server
	events       EventReader
	defaultLimit int
	logger       *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /api/events routes. defaultLimit applies when a request sets no limit.
func NewServer(addr string, ready ReadinessChecker, events EventReader, defaultLimit int, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		events:       events,
		defaultLimit: defaultLimit,
		logger:       logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/events", s.handleEvents)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := s.defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxEventsLimit {
			sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be an integer between 1 and " + strconv.Itoa(maxEventsLimit),
			})
			return
		}
		limit = n
	}

	events := s.events.Latest(limit)
	payloads := make([]domain.Payload, len(events))
	for i, e := range events {
		payloads[i] = e.Payload()
	}
	sharedobs.WriteJSON(w, http.StatusOK, payloads)
}
