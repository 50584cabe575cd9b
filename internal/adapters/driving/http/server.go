package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the public endpoint the identity provider redirects to.
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	callbackPath     string
	postAuthRedirect string

	callbackService driving.CallbackService
	store           Pinger
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// CallbackPath is the path component of the registered redirect URI.
	CallbackPath string

	// PostAuthRedirectURL is where the browser goes after a successful callback.
	PostAuthRedirectURL string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		Version:      "dev",
		CallbackPath: "/",
	}
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, callbackService driving.CallbackService, store Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = "/"
	}

	s := &Server{
		router:           http.NewServeMux(),
		version:          cfg.Version,
		logger:           logger,
		callbackPath:     cfg.CallbackPath,
		postAuthRedirect: cfg.PostAuthRedirectURL,
		callbackService:  callbackService,
		store:            store,
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// callbackPattern returns the mux pattern for the callback path. A root
// path matches only "/" itself rather than every unmatched path.
func callbackPattern(path string) string {
	if path == "/" {
		return "GET /{$}"
	}
	return "GET " + path
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Provider redirect
	s.router.HandleFunc(callbackPattern(s.callbackPath), s.handleCallback)
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	recovery := NewRecoveryMiddleware(s.logger)
	logging := NewLoggingMiddleware(s.logger)
	return logging.Handler(recovery.Handler(s.router))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting callback server", "addr", s.httpServer.Addr, "callback_path", s.callbackPath)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("callback server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down callback server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("callback server stopped")
	return nil
}
