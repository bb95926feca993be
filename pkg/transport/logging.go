package transport

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that emits structured log entries for each
// request. The log entry includes method, path, status, duration, request
// ID and whether the request succeeded or failed.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return Wrap(next, func(ctx context.Context, env Env) (*Response, error) {
			start := time.Now()
			method, path := env.Method(), env.Path()

			resp, err := next.Handle(ctx, env)

			attrs := []slog.Attr{
				slog.String("request_id", env.RequestID()),
				slog.String("method", method),
				slog.String("path", path),
				slog.Duration("duration", time.Since(start)),
			}
			if resp != nil {
				attrs = append(attrs, slog.Int("status", resp.Status))
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}

			return resp, err
		})
	}
}
