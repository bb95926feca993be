// Package adapter binds a composed handler chain to a network listener.
//
// Each backend owns its accept loop and concurrency model. Backends are
// looked up by identifier in a Registry that is populated at boot and
// frozen before serving starts.
package adapter

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rhuss/gantry/pkg/transport"
)

// Default listen settings.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8080
)

// Adapter serves a handler chain until its context is cancelled.
type Adapter interface {
	// Name returns the canonical backend identifier.
	Name() string

	// Start binds the listener and serves app. It blocks until ctx is
	// cancelled or the listener fails, then shuts down gracefully.
	Start(ctx context.Context, app transport.Handler, opts Options) error
}

// Factory creates a fresh Adapter instance.
type Factory func() Adapter

// Options are the startup options shared by all backends.
type Options struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	MaxBodySize     int64
	Logger          *slog.Logger

	// ReadHeaderTimeout bounds reading request headers. fasthttp has no
	// header-only timeout and applies it to the whole request read.
	ReadHeaderTimeout time.Duration

	// Listener, when set, is used instead of Host and Port.
	Listener net.Listener

	// MetricsPath and MetricsHandler expose metrics next to the app.
	MetricsPath    string
	MetricsHandler http.Handler

	// TraceOperation enables request spans where the backend supports it.
	TraceOperation string

	// DeferredLimit bounds concurrently running deferred requests on
	// backends with a fixed worker pool.
	DeferredLimit int64

	// DeferredWait is how long a deferred request waits for a slot
	// before it is rejected with 503.
	DeferredWait time.Duration
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = DefaultHost
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 30 * time.Second
	}
	if o.ReadHeaderTimeout <= 0 {
		o.ReadHeaderTimeout = 10 * time.Second
	}
	if o.MaxBodySize == 0 {
		o.MaxBodySize = 10 << 20
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.DeferredLimit <= 0 {
		o.DeferredLimit = 16
	}
	if o.DeferredWait <= 0 {
		o.DeferredWait = 5 * time.Second
	}
	return o
}

// Addr returns the host:port listen address.
func (o Options) Addr() string {
	o = o.withDefaults()
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// listen returns the configured listener or binds Addr.
func (o Options) listen() (net.Listener, error) {
	if o.Listener != nil {
		return o.Listener, nil
	}
	return net.Listen("tcp", o.Addr())
}
