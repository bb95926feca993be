package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/gantry/pkg/debug"
	"github.com/rhuss/gantry/pkg/transport"
)

type tracer struct {
	transport.Base
}

// Tracer returns middleware that logs each request on the way in and on
// the way out at debug level. At TRACE level with the "chain" category
// enabled it also dumps the environment record.
func Tracer(logger *slog.Logger) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next transport.Handler) transport.Handler {
		return &tracer{Base: transport.Base{Next: next, Logger: logger}}
	}
}

func (t *tracer) Handle(ctx context.Context, env transport.Env) (*transport.Response, error) {
	start := time.Now()
	t.Logger.DebugContext(ctx, "request started",
		slog.String("method", env.Method()),
		slog.String("uri", env.String(transport.KeyRequestURI)),
		slog.String("remote_addr", env.String(transport.KeyRemoteAddr)),
	)
	debug.Dump("chain", "environment", env)

	resp, err := t.Next.Handle(ctx, env)

	attrs := []slog.Attr{
		slog.String("method", env.Method()),
		slog.String("path", env.Path()),
		slog.Duration("duration", time.Since(start)),
	}
	if resp != nil {
		attrs = append(attrs, slog.Int("status", resp.Status))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	t.Logger.LogAttrs(ctx, slog.LevelDebug, "request finished", attrs...)
	return resp, err
}
