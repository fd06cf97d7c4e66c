// Package server implements the HTTP front for the ai-me agent: a small JSON
// API for conversational turns and session teardown, plus health, readiness,
// and Prometheus metrics endpoints.
// The server is started by the `aime serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/byoung/ai-me/internal/logging"
	"github.com/byoung/ai-me/internal/session"
)

// New constructs a Server from the provided session runner and config.
func New(sessions sessionRunner, cfg *Config) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("server: session runner must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full turn: model calls, retrieval, and
		// any delegate hops.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.ChatTimeout == 0 {
		cfg.ChatTimeout = 2 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		sessions: sessions,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		cfg.Logger.Warn("server: AIME_API_KEY not set, API authentication disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat",
		s.instrument("chat", authMiddleware(cfg.APIKey, rl.middleware(http.HandlerFunc(s.handleChat)))))
	mux.Handle("DELETE /api/session/{id}",
		s.instrument("session_end", authMiddleware(cfg.APIKey, http.HandlerFunc(s.handleSessionEnd))))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(cfg.Logger, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown: in-flight requests
// are drained, every live session is torn down, and the rate limiter's
// background goroutine is stopped.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)

		s.sessions.CloseAll(logging.WithLogger(context.Background(), s.log))
		s.stopRL()

		if err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleChat handles POST /api/chat: one conversational turn. A request with
// no session_id starts a new session; the minted ID is echoed back so the
// client can continue the thread. The reply body is always safe to show —
// turn failures surface as one of the session layer's fixed fallback
// messages, never as an error payload.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()

	start := time.Now()
	reply, err := s.sessions.RunTurn(ctx, req.SessionID, req.Message)
	outcome := turnOutcome(reply, err)

	s.metrics.turnsTotal.WithLabelValues(outcome).Inc()
	s.metrics.turnDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	s.metrics.activeSessions.Set(float64(s.sessions.Len()))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(chatResponse{
		SessionID: req.SessionID,
		Reply:     reply,
	}); err != nil {
		logging.FromContext(r.Context()).Error("chat encode error", slog.Any("error", err))
	}
}

// handleSessionEnd handles DELETE /api/session/{id}: tears down the session's
// capability providers and removes it from the active set. Ending an unknown
// session succeeds — teardown is idempotent.
func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	s.sessions.End(r.Context(), id)
	s.metrics.activeSessions.Set(float64(s.sessions.Len()))
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		logging.FromContext(r.Context()).Error("health encode error", slog.Any("error", err))
	}
}

// instrument wraps a handler with per-endpoint request count and latency
// metrics, keyed by the logical handler name rather than the raw URL path.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}

// turnOutcome maps a turn's result onto a metrics label. The session layer
// returns a fixed retry message for rate-limited turns, which is the only
// way to distinguish them here without re-parsing the internal error.
func turnOutcome(reply string, err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case reply == session.RetryMessage:
		return outcomeRateLimited
	default:
		return outcomeError
	}
}
