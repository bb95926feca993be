// Package app assembles a gantry server from configuration: it opens the
// session store, folds the middleware chain around the dispatcher, wraps
// it in the application boundary and serves it on the selected adapter.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"time"

	"github.com/rhuss/gantry/pkg/adapter"
	"github.com/rhuss/gantry/pkg/config"
	"github.com/rhuss/gantry/pkg/debug"
	"github.com/rhuss/gantry/pkg/dispatch"
	"github.com/rhuss/gantry/pkg/middleware"
	"github.com/rhuss/gantry/pkg/observability"
	"github.com/rhuss/gantry/pkg/session"
	"github.com/rhuss/gantry/pkg/session/cookie"
	"github.com/rhuss/gantry/pkg/session/memory"
	"github.com/rhuss/gantry/pkg/session/postgres"
	"github.com/rhuss/gantry/pkg/transport"
)

// tracerName is the instrumentation scope for request spans.
const tracerName = "github.com/rhuss/gantry"

// App is a configured server ready to run.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *adapter.Registry
	dispatcher *dispatch.Dispatcher
	store      session.Store
	ownsStore  bool
	listener   net.Listener

	chain   *transport.Builder
	handler *transport.Application

	shutdownTracing func(context.Context) error
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithRegistry sets the adapter registry. Defaults to adapter.Default().
func WithRegistry(r *adapter.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithDispatcher sets the terminal dispatcher. Defaults to a catch-all
// route answering with dispatch.Echo.
func WithDispatcher(d *dispatch.Dispatcher) Option {
	return func(a *App) { a.dispatcher = d }
}

// WithSessionStore uses store instead of opening the configured one. The
// caller keeps ownership and must close it.
func WithSessionStore(store session.Store) Option {
	return func(a *App) { a.store = store }
}

// WithListener serves on ln instead of binding host and port.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// New builds an App from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.registry == nil {
		a.registry = adapter.Default()
	}
	if a.dispatcher == nil {
		a.dispatcher = dispatch.New()
		if err := a.dispatcher.Route("", "/{path:.*}", dispatch.Echo); err != nil {
			return nil, err
		}
	}

	if _, err := a.registry.Lookup(cfg.Server.Adapter); err != nil {
		return nil, err
	}

	var deferred *regexp.Regexp
	if cfg.App.DeferredPattern != "" {
		re, err := regexp.Compile(cfg.App.DeferredPattern)
		if err != nil {
			return nil, fmt.Errorf("app.deferred_pattern: %w", err)
		}
		deferred = re
	}

	if cfg.Session.Enabled && a.store == nil {
		store, err := OpenStore(ctx, cfg.Session)
		if err != nil {
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		a.store = store
		a.ownsStore = true
	}

	a.shutdownTracing = func(context.Context) error { return nil }
	if tc := cfg.Observability.Tracing; tc.Enabled {
		shutdown, err := observability.SetupTracing(ctx, observability.TracingConfig{
			ServiceName: tc.ServiceName,
			Endpoint:    tc.Endpoint,
			Insecure:    tc.Insecure,
			Headers:     tc.Headers,
		})
		if err != nil {
			a.closeStore()
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.shutdownTracing = shutdown
	}

	a.chain = a.buildChain()
	inner, err := a.chain.Build(a.dispatcher)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.handler = transport.NewApplication(inner,
		transport.WithDeferredPattern(deferred),
		transport.WithAppLogger(a.logger),
	)

	a.logger.Info("chain built", "middleware", a.chain.String(), "debug", debug.Categories())
	return a, nil
}

// buildChain registers the middleware in order, outermost first.
func (a *App) buildChain() *transport.Builder {
	cfg := a.cfg
	b := transport.NewBuilder().
		Use("request_id", transport.RequestID()).
		Use("logging", transport.Logging(a.logger)).
		Use("recovery", transport.Recovery())

	if cfg.Observability.Metrics.Enabled {
		b.Use("metrics", observability.Metrics())
	}
	if cfg.Observability.Tracing.Enabled {
		b.Use("tracing", observability.Tracing(tracerName))
	}
	if debug.Enabled("chain") {
		b.Use("tracer", middleware.Tracer(a.logger))
	}

	b.Use("head", middleware.Head()).
		Use("content_length", middleware.ContentLength())

	if cfg.App.PathPrefix != "" {
		b.Use("path_prefix", middleware.PathPrefix(cfg.App.PathPrefix))
	}
	if cfg.App.ConditionalGet {
		b.Use("conditional_get", middleware.ConditionalGet())
	}
	if cfg.App.Static {
		b.Use("static", middleware.Static(cfg.App.PublicDir))
	}
	if a.store != nil {
		b.Use("session", session.Middleware(a.store, session.Config{
			CookieName: cfg.Session.CookieName,
			MaxAge:     cfg.Session.MaxAge,
			Secure:     cfg.Session.Secure,
			Logger:     a.logger,
		}))
	}
	if cfg.App.CSRF.Enabled {
		b.Use("csrf", middleware.CSRF(cfg.App.CSRF.Secret, a.logger))
	}
	return b
}

// OpenStore opens the session store named by cfg.Store.
func OpenStore(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Store {
	case "", "memory":
		return memory.New(cfg.MaxSize, cfg.MaxAge), nil
	case "cookie":
		return cookie.New([]byte(cfg.Secret), cfg.MaxAge)
	case "postgres":
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			TTL:            cfg.MaxAge,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

// Handler returns the composed chain including the application boundary.
func (a *App) Handler() transport.Handler { return a.handler }

// Middleware lists the chain layers in order, outermost first.
func (a *App) Middleware() []string { return a.chain.Names() }

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Options converts the server configuration into adapter options.
func (a *App) Options() adapter.Options {
	s := a.cfg.Server
	opts := adapter.Options{
		Host:              s.Host,
		Port:              s.Port,
		ShutdownTimeout:   s.ShutdownTimeout,
		ReadHeaderTimeout: s.ReadHeaderTimeout,
		MaxBodySize:       s.MaxBodySize,
		Logger:            a.logger,
		Listener:          a.listener,
		DeferredLimit:     int64(s.DeferredLimit),
		DeferredWait:      s.DeferredWait,
	}
	if m := a.cfg.Observability.Metrics; m.Enabled {
		opts.MetricsPath = m.Path
		opts.MetricsHandler = observability.Handler()
	}
	if a.cfg.Observability.Tracing.Enabled {
		opts.TraceOperation = a.cfg.Observability.Tracing.ServiceName
	}
	return opts
}

// Run serves the chain on the configured adapter until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	backend, err := a.registry.Lookup(a.cfg.Server.Adapter)
	if err != nil {
		return err
	}
	opts := a.Options()
	a.logger.Info("starting server",
		"adapter", backend.Name(),
		"requested", a.cfg.Server.Adapter,
		"addr", opts.Addr(),
	)
	return backend.Start(ctx, a.handler, opts)
}

// Close releases the session store (when the App opened it) and flushes
// pending spans.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return errors.Join(a.closeStore(), a.shutdownTracing(ctx))
}

func (a *App) closeStore() error {
	if a.store == nil || !a.ownsStore {
		return nil
	}
	return a.store.Close()
}
