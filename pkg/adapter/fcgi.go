package adapter

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http/fcgi"

	transporthttp "github.com/rhuss/gantry/pkg/transport/http"

	"github.com/rhuss/gantry/pkg/debug"
	"github.com/rhuss/gantry/pkg/transport"
)

// FCGI serves the chain as a FastCGI responder behind a front web server.
type FCGI struct{}

// Name implements Adapter.
func (*FCGI) Name() string { return "fcgi" }

// Start implements Adapter. FastCGI has no graceful drain: on
// cancellation the listener is closed and requests already accepted
// finish on their own goroutines.
func (*FCGI) Start(ctx context.Context, app transport.Handler, opts Options) error {
	opts = opts.withDefaults()
	handler := transporthttp.NewServer(app, serverOptions(opts)...).Handler()

	ln, err := opts.listen()
	if err != nil {
		return err
	}
	debug.Log("adapter", "fcgi listening", "addr", ln.Addr().String())
	opts.Logger.Info("fcgi responder starting", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- fcgi.Serve(ln, handler) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	opts.Logger.Info("fcgi responder stopping")
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	<-errCh
	return nil
}
