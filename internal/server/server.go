// Package server exposes the read-only ops API: health, pipeline status,
// positions, PnL, and followed-trader activity.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/server/handler"
	"github.com/alanyoungcy/copybot/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// API rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Positions *handler.PositionHandler
	PnL       *handler.PnLHandler
	Traders   *handler.TraderHandler

	// Archives is optional; its routes are registered only when cold
	// archiving is enabled.
	Archives *handler.ArchiveHandler
}

// Server is the headless HTTP API server for the copy-trading bot.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limit, CORS, logging, auth) applied. limiter
// may be nil when rate limiting is disabled.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Pipeline status.
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Position views.
	mux.HandleFunc("GET /api/positions/open", handlers.Positions.ListOpen)
	mux.HandleFunc("GET /api/positions/closed", handlers.Positions.ListClosed)

	// PnL report.
	mux.HandleFunc("GET /api/pnl", handlers.PnL.GetTraderPnL)

	// Followed traders and journal activity.
	mux.HandleFunc("GET /api/traders", handlers.Traders.ListTraders)
	mux.HandleFunc("GET /api/traders/{wallet}/activity", handlers.Traders.GetTraderActivity)
	mux.HandleFunc("GET /api/activity", handlers.Traders.ListActivity)

	// Cold-storage archive inventory, when enabled.
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.ListArchives)
		mux.HandleFunc("GET /api/archives/{path...}", handlers.Archives.GetArchive)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	// Apply per-client rate limiting when configured.
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
