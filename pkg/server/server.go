package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/recording"
	"mercator-hq/playback/pkg/telemetry/health"
	"mercator-hq/playback/pkg/telemetry/metrics"
)

// Options wires the server to the record or replay machinery.
type Options struct {
	// Transport serves proxied requests.
	Transport http.RoundTripper

	// Store returns the store listed by /recordings. It is called per
	// request so hot-reloaded engines are reflected.
	Store func() *recording.Store

	// Metrics backs the metrics endpoint. May be nil.
	Metrics *metrics.Collector

	// MetricsPath overrides the metrics route. Default: "/metrics"
	MetricsPath string

	// Health backs /readyz. May be nil.
	Health *health.Checker

	// Build is served by /version when Build.Version is set.
	Build health.VersionInfo

	Logger *slog.Logger
}

// Server is the playback proxy server.
type Server struct {
	config       *config.ServerConfig
	opts         Options
	handler      http.Handler
	httpServer   *http.Server
	logger       *slog.Logger
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
	ready        chan struct{}
}

// NewServer creates a new proxy server.
func NewServer(cfg *config.ServerConfig, opts Options) (*Server, error) {
	if opts.Transport == nil {
		return nil, errors.New("server: transport is required")
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = config.DefaultMetricsPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	s := &Server{
		config: cfg,
		opts:   opts,
		logger: logger,
		ready:  make(chan struct{}),
	}
	s.handler = s.setupRoutes()
	return s, nil
}

// Handler returns the routed handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and blocks until ctx is
// cancelled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.isRunning = false
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.addr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.mu.Unlock()
	close(s.ready)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting playback proxy",
			"address", s.addr.String(),
			"mode", s.config.Mode,
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Ready is closed once Start is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or nil before Start is listening.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("playback proxy stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
