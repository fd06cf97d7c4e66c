package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds a single conversational turn, covering model calls,
	// retrieval, and any delegate hops. Defaults to 2 minutes if zero.
	ChatTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's Prometheus metric registrations.
	// Defaults to prometheus.DefaultRegisterer. Tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint.
	// Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// sessionRunner is the interface the chat handlers call. *session.Manager
// satisfies it in production; tests inject a fake.
type sessionRunner interface {
	// RunTurn serves one visitor message. The reply is always safe to show;
	// the error, if any, reflects the internal outcome for metrics.
	RunTurn(ctx context.Context, sessionID, message string) (string, error)
	// End tears down one session and its per-session resources.
	End(ctx context.Context, sessionID string)
	// CloseAll ends every live session.
	CloseAll(ctx context.Context)
	// Len returns the number of live sessions, sampled for the active
	// sessions gauge.
	Len() int
}

// Server is the HTTP front for the session manager.
type Server struct {
	// sessions routes turns to per-visitor agent runtimes.
	sessions sessionRunner
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// SessionID identifies the conversation thread. Empty means a new
	// session: the server mints an ID and returns it in the response.
	SessionID string `json:"session_id"`
	// Message is the visitor's message for this turn.
	Message string `json:"message"`
}

// chatResponse is the JSON response for POST /api/chat.
type chatResponse struct {
	// SessionID is the thread the turn ran in. Clients send it back on the
	// next turn to continue the conversation.
	SessionID string `json:"session_id"`
	// Reply is the agent's answer, normalized to plain ASCII punctuation.
	Reply string `json:"reply"`
}
