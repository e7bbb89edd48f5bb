// ABOUTME: Server orchestrator that owns the store, HTTP server, and background components
// ABOUTME: Manages listener setup (TCP or tailnet), routing, and graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/tally/internal/auth"
	"github.com/2389/tally/internal/config"
	"github.com/2389/tally/internal/dedupe"
	"github.com/2389/tally/internal/events"
	"github.com/2389/tally/internal/metrics"
	"github.com/2389/tally/internal/pdf"
	"github.com/2389/tally/internal/store"
)

// Server serves the tally HTTP API for a single database.
type Server struct {
	config      *config.Config
	store       store.Store
	renderer    *pdf.Renderer
	events      *events.Broadcaster
	dedupe      *dedupe.Cache
	metrics     *metrics.Metrics
	verifier    *auth.JWTVerifier // nil when auth is disabled
	handler     http.Handler
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// New opens the configured database and builds the HTTP handler.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	srv, err := NewWithStore(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return srv, nil
}

// NewWithStore builds a server around an already opened store. The server
// takes ownership of st and closes it on Shutdown.
func NewWithStore(cfg *config.Config, st store.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	srv := &Server{
		config:   cfg,
		store:    st,
		renderer: pdf.NewRenderer(st, cfg.I18n.DefaultLanguage, logger),
		events:   events.NewBroadcaster(logger),
		dedupe:   dedupe.New(dedupe.DefaultWindow, dedupe.DefaultMaxKeys),
		metrics:  metrics.New(),
		logger:   logger.With("component", "server"),
	}

	if cfg.Auth.JWTSecret != "" {
		srv.verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		srv.logger.Info("HTTP auth middleware enabled")
	} else {
		srv.logger.Warn("HTTP auth disabled - no jwt_secret configured")
	}

	srv.handler = srv.routes()
	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	return srv, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Store returns the store the server was built with.
func (s *Server) Store() store.Store { return s.store }

// setupListener creates the HTTP listener based on configuration (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}

	s.logger.Info("starting server", "http_addr", s.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run starts serving and blocks until ctx is canceled or the server fails.
// Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// The run context is already canceled; shutdown gets its own deadline.
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases every component.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// Streams block Shutdown until they end, so close subscriber channels first.
	s.events.Close()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", s.store.Close())
	s.dedupe.Close()

	return errors.Join(errs...)
}
