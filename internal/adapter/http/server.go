// Package http exposes the service API: event ingestion and queries, the
// three safety operations, and the health/readiness/metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/crisis-safety-service/internal/domain"
	"github.com/couchcryptid/crisis-safety-service/internal/safety"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// SafetyEngine is the query surface the API exposes.
type SafetyEngine interface {
	NearbyThreats(ctx context.Context, query safety.ThreatQuery) (safety.ThreatReport, error)
	AnalyzeRoutes(ctx context.Context, query safety.RouteQuery) (safety.RouteReport, error)
	CheckLocation(ctx context.Context, query safety.SafetyQuery) (safety.SafetyReport, error)
}

// NotificationPublisher emits a wake-up message for a freshly ingested
// event. May be nil when push delivery is disabled.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, event domain.Event) error
}

// Server hosts the API plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	store      domain.EventStore
	engine     SafetyEngine
	notifier   NotificationPublisher
	clock      clockwork.Clock
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewServer wires the full route table.
func NewServer(addr string, store domain.EventStore, engine SafetyEngine,
	notifier NotificationPublisher, ready ReadinessChecker,
	clock clockwork.Clock, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:    store,
		engine:   engine,
		notifier: notifier,
		clock:    clock,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/events", s.handleIngestEvent)
	mux.HandleFunc("GET /api/events", s.handleListEvents)
	mux.HandleFunc("GET /api/events/high-risk", s.handleHighRiskEvents)
	mux.HandleFunc("GET /api/events/{id}", s.handleGetEvent)
	mux.HandleFunc("POST /api/threats/nearby", s.handleThreatsNearby)
	mux.HandleFunc("POST /api/routes/analyze", s.handleRoutesAnalyze)
	mux.HandleFunc("POST /api/safety/check", s.handleSafetyCheck)

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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
