package transport

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Handler maps an Env to a Response. It is the primary contract between
// adapters, middleware and the dispatcher.
type Handler interface {
	Handle(ctx context.Context, env Env) (*Response, error)
}

// HandlerFunc is an adapter that allows using an ordinary function as a
// Handler.
type HandlerFunc func(ctx context.Context, env Env) (*Response, error)

// Handle calls f(ctx, env).
func (f HandlerFunc) Handle(ctx context.Context, env Env) (*Response, error) {
	return f(ctx, env)
}

// Deferrer is implemented by handlers that can tell whether a request
// should bypass normal dispatch.
type Deferrer interface {
	IsDeferred(env Env) bool
}

// IsDeferred asks h whether env should be deferred. Handlers that do not
// implement Deferrer never defer.
func IsDeferred(h Handler, env Env) bool {
	if d, ok := h.(Deferrer); ok {
		return d.IsDeferred(env)
	}
	return false
}

// NormalizePath strips a single trailing slash. The root path "/" becomes
// the empty string.
func NormalizePath(path string) string {
	return strings.TrimSuffix(path, "/")
}

// Base carries the default middleware behaviour. Struct middleware embed
// it and override Handle; IsDeferred is inherited.
type Base struct {
	// Next is the inner handler.
	Next Handler

	// Deferred, when set, marks matching paths as deferred.
	Deferred *regexp.Regexp

	// Logger receives deferral events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Handle delegates unchanged to the inner handler.
func (b *Base) Handle(ctx context.Context, env Env) (*Response, error) {
	return b.Next.Handle(ctx, env)
}

// IsDeferred matches the normalized path against the deferral pattern.
// A match is logged and reported; otherwise the inner handler decides.
func (b *Base) IsDeferred(env Env) bool {
	if b.Deferred != nil {
		path := NormalizePath(env.Path())
		if b.Deferred.MatchString(path) {
			b.logger().Info("deferring request",
				slog.String("path", path),
				slog.String("request_id", env.RequestID()),
			)
			env[KeyDeferred] = true
			return true
		}
	}
	if b.Next == nil {
		return false
	}
	return IsDeferred(b.Next, env)
}

func (b *Base) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// wrapped is a function middleware that keeps deferral delegation.
type wrapped struct {
	Base
	fn HandlerFunc
}

func (w *wrapped) Handle(ctx context.Context, env Env) (*Response, error) {
	return w.fn(ctx, env)
}

// Wrap builds a Handler from fn that delegates IsDeferred to next. Use it
// for function middleware so the deferral question still reaches the
// inner handlers.
func Wrap(next Handler, fn HandlerFunc) Handler {
	return &wrapped{Base: Base{Next: next}, fn: fn}
}
