package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rhuss/gantry/pkg/transport"
)

// Server wraps an http.Server with the transport adapter and manages
// the full lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr              string
	MaxBodySize       int64
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
	Logger            *slog.Logger

	// MetricsPath, when set together with MetricsHandler, is served
	// beside the application.
	MetricsPath    string
	MetricsHandler http.Handler

	// TraceOperation enables otelhttp instrumentation under this name.
	TraceOperation string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              "0.0.0.0:8080",
		MaxBodySize:       10 << 20, // 10 MB
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		Logger:            slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithReadHeaderTimeout bounds how long reading request headers may take.
func WithReadHeaderTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.config.ReadHeaderTimeout = d
		}
	}
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithMetrics serves h on path next to the application.
func WithMetrics(path string, h http.Handler) ServerOption {
	return func(s *Server) {
		s.config.MetricsPath = path
		s.config.MetricsHandler = h
	}
}

// WithTracing wraps the handler in otelhttp spans named operation.
func WithTracing(operation string) ServerOption {
	return func(s *Server) { s.config.TraceOperation = operation }
}

// NewServer creates a server running app behind the HTTP adapter.
func NewServer(app transport.Handler, opts ...ServerOption) *Server {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	acfg := DefaultConfig()
	acfg.MaxBodySize = s.config.MaxBodySize
	acfg.Logger = s.logger
	s.adapter = NewAdapter(app, acfg)

	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Handler returns the complete http.Handler: the adapter, the optional
// metrics endpoint and the optional tracing wrapper. Other net/http based
// backends (FastCGI) serve the same handler.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.adapter
	if s.config.MetricsPath != "" && s.config.MetricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle(s.config.MetricsPath, s.config.MetricsHandler)
		mux.Handle("/", s.adapter)
		h = mux
	}
	if s.config.TraceOperation != "" {
		h = otelhttp.NewHandler(h, s.config.TraceOperation)
	}
	return h
}

// Serve accepts connections on ln until ctx is cancelled. It then shuts
// down gracefully, waiting for in-flight requests within the configured
// timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
