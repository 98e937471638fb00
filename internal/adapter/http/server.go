// Package http is the dashboard's local command surface: health, readiness,
// metrics, the rendered dashboard, and the verify action.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/resq-grid/internal/dashboard"
	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/couchcryptid/resq-grid/internal/livesync"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotSource provides the repository's current state.
type SnapshotSource interface {
	Snapshot() livesync.Snapshot
}

// VerifyAction marks an incident verified without waiting for the backend.
type VerifyAction interface {
	Verify(ctx context.Context, id domain.IncidentID)
	VisibleWithin() time.Duration
}

// Server exposes health, readiness, metrics, and dashboard HTTP endpoints.
type Server struct {
	httpServer *http.Server
	source     SnapshotSource
	media      dashboard.MediaResolver
	verifier   VerifyAction
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /api/dashboard, and /api/incidents/{id}/verify routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, source SnapshotSource, media dashboard.MediaResolver, verifier VerifyAction, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		source:   source,
		media:    media,
		verifier: verifier,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /api/incidents/{id}/verify", s.handleVerify)

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

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dashboard.Build(s.source.Snapshot(), s.media))
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing incident id"})
		return
	}

	s.verifier.Verify(r.Context(), domain.IncidentID(id))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":         "verifying",
		"incident_id":    id,
		"visible_within": s.verifier.VisibleWithin().String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
