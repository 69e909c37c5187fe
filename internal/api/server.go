// Package api exposes the gateway over HTTP: transaction authorization,
// administrative revocation, the read-only signature validation query, and
// operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quorumgate/quorumgate/internal/config"
	"github.com/quorumgate/quorumgate/internal/logger"
	"github.com/quorumgate/quorumgate/internal/metrics"
	"github.com/quorumgate/quorumgate/internal/middleware"
	apperrors "github.com/quorumgate/quorumgate/pkg/errors"
)

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	authz      AuthorizationService
	audit      AuditLog
	metrics    *metrics.Metrics
	httpServer *http.Server
}

// NewServer creates a new API server. audit may be nil when no audit store is
// configured.
func NewServer(cfg *config.Config, authz AuthorizationService, audit AuditLog, m *metrics.Metrics) *Server {
	return &Server{
		config:  cfg,
		authz:   authz,
		audit:   audit,
		metrics: m,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Operational endpoints (no rate limiting)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())

	rl := middleware.NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst, true)

	mux.Handle("POST /v1/transactions/authorize", rl.Limit(http.HandlerFunc(s.handleAuthorize)))
	mux.Handle("POST /v1/authorizations/{id}/revoke", rl.Limit(http.HandlerFunc(s.handleRevoke)))
	mux.Handle("GET /v1/authorizations/{id}", rl.Limit(http.HandlerFunc(s.handleGetAuthorization)))
	mux.Handle("GET /v1/authorizations/{id}/audit", rl.Limit(http.HandlerFunc(s.handleListAudit)))
	mux.Handle("POST /v1/signatures/validate", rl.Limit(http.HandlerFunc(s.handleValidateSignature)))

	s.httpServer = &http.Server{
		Addr: fmt.Sprintf(":%d", s.config.Port),
		// Chain middleware: RequestID -> Logging -> BodyLimit -> Routes
		Handler:      middleware.RequestID(s.loggingMiddleware(middleware.LimitBody(mux))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.FromContext(context.Background()).Info("starting server", "port", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests with their status and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := middleware.NewStatusRecorder(w)

		next.ServeHTTP(rec, r)

		logger.FromContext(r.Context()).Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.StatusCode,
			"duration", time.Since(start).String())
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps an error to the JSON error envelope. Unknown errors are
// reported as internal without leaking their detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := apperrors.IsAppError(err); ok {
		writeJSON(w, appErr.StatusCode, appErr)
		return
	}

	logger.FromContext(r.Context()).Error("internal error", "error", err)
	writeJSON(w, http.StatusInternalServerError, apperrors.ErrInternalError)
}
