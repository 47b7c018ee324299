// Package http wires the chi router, the middleware chain and the
// net/http server of the API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kaliumosint/api/internal/config"
	"github.com/kaliumosint/api/internal/infra/http/middleware"
	"github.com/kaliumosint/api/pkg/logger"
)

// Server represents the HTTP server.
type Server struct {
	httpServer   *http.Server
	router       Router
	config       *config.Config
	logger       *logger.Logger
	cleanupFuncs []func()
}

// ServerOption is a function that configures the server.
type ServerOption func(*Server)

// WithRouter sets a custom router implementation.
func WithRouter(r Router) ServerOption {
	return func(s *Server) {
		s.router = r
	}
}

// NewServer creates a new HTTP server. streamPaths are long-lived endpoints
// (the websocket) that skip the request timeout and access log.
func NewServer(cfg *config.Config, log *logger.Logger, streamPaths []string, opts ...ServerOption) *Server {
	s := &Server{
		config: cfg,
		logger: log.With("component", "http"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.router == nil {
		s.router = NewChiRouter()
	}

	rateLimitMw, rateLimitStop := middleware.RateLimitWithStop(&cfg.RateLimit, log)
	s.cleanupFuncs = append(s.cleanupFuncs, rateLimitStop)

	loggerCfg := middleware.DefaultLoggerConfig()
	loggerCfg.SkipPaths = append(loggerCfg.SkipPaths, streamPaths...)
	loggerCfg.SlowRequestThreshold = time.Duration(cfg.Log.SlowRequestSeconds) * time.Second
	if !cfg.Log.SkipHealthLogs {
		loggerCfg.SkipPaths = streamPaths
	}

	// Order matters: recovery outermost, request id before anything logs.
	s.router.Use(
		middleware.RecoveryWithConfig(log, cfg.IsProduction()),
		middleware.RequestID(),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{HSTSEnabled: cfg.IsProduction()}),
		middleware.CORS(&cfg.CORS),
		middleware.Decompress(middleware.DecompressConfig{}),
		middleware.BodyLimit(cfg.Server.MaxBodySize),
		rateLimitMw,
		middleware.Timeout(cfg.Server.RequestTimeout, streamPaths...),
		middleware.Metrics(),
		middleware.LoggerWithConfig(log, loggerCfg),
	)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.router.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       time.Minute,
	}

	return s
}

// Router returns the router for registering handlers.
func (s *Server) Router() Router {
	return s.router
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.config.Server.Addr())

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	for _, cleanup := range s.cleanupFuncs {
		cleanup()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
