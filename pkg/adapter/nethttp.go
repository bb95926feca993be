package adapter

import (
	"context"

	transporthttp "github.com/rhuss/gantry/pkg/transport/http"

	"github.com/rhuss/gantry/pkg/debug"
	"github.com/rhuss/gantry/pkg/transport"
)

// NetHTTP serves the chain with net/http: one goroutine per connection.
type NetHTTP struct{}

// Name implements Adapter.
func (*NetHTTP) Name() string { return "nethttp" }

// Start implements Adapter.
func (*NetHTTP) Start(ctx context.Context, app transport.Handler, opts Options) error {
	opts = opts.withDefaults()
	srv := transporthttp.NewServer(app, serverOptions(opts)...)

	ln, err := opts.listen()
	if err != nil {
		return err
	}
	debug.Log("adapter", "nethttp listening", "addr", ln.Addr().String())
	return srv.Serve(ctx, ln)
}

func serverOptions(opts Options) []transporthttp.ServerOption {
	so := []transporthttp.ServerOption{
		transporthttp.WithAddr(opts.Addr()),
		transporthttp.WithMaxBodySize(opts.MaxBodySize),
		transporthttp.WithShutdownTimeout(opts.ShutdownTimeout),
		transporthttp.WithReadHeaderTimeout(opts.ReadHeaderTimeout),
		transporthttp.WithLogger(opts.Logger),
	}
	if opts.MetricsPath != "" && opts.MetricsHandler != nil {
		so = append(so, transporthttp.WithMetrics(opts.MetricsPath, opts.MetricsHandler))
	}
	if opts.TraceOperation != "" {
		so = append(so, transporthttp.WithTracing(opts.TraceOperation))
	}
	return so
}
