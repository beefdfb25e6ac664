// Package api exposes the chatbot over a JSON HTTP API: one chat endpoint
// plus health probes, wrapped in recovery, logging, CORS, and per-IP rate
// limiting middleware.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medifestructuras/asistente/internal/chat"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Bot         *chat.Bot     // Required
	Pool        *pgxpool.Pool // Optional: nil disables the DB check in /ready
	CORSOrigins []string      // Allowed origins for CORS
	TrustProxy  bool          // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst   int           // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Bot == nil {
		return nil, errors.New("chat bot is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{
		bot:        cfg.Bot,
		trustProxy: cfg.TrustProxy,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", ch.send)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
