package transport

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"runtime/debug"
)

// Application is the outermost layer of a chain. It is the single error
// boundary: any error or panic from the layers it wraps is converted into
// a response here, so adapters always receive a Response. It also carries
// the deferral pattern the adapters consult through IsDeferred.
type Application struct {
	Base
}

// AppOption configures an Application.
type AppOption func(*Application)

// WithDeferredPattern marks paths matching re as deferred.
func WithDeferredPattern(re *regexp.Regexp) AppOption {
	return func(a *Application) { a.Deferred = re }
}

// WithAppLogger sets the logger for boundary and deferral events.
func WithAppLogger(l *slog.Logger) AppOption {
	return func(a *Application) { a.Logger = l }
}

// NewApplication wraps next in the error boundary.
func NewApplication(next Handler, opts ...AppOption) *Application {
	a := &Application{Base: Base{Next: next}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle runs the chain and converts failures into responses. It never
// returns an error.
func (a *Application) Handle(ctx context.Context, env Env) (resp *Response, _ error) {
	defer func() {
		if r := recover(); r != nil {
			resp = a.fail(ctx, env, &PanicError{Value: r, Stack: debug.Stack()})
		}
	}()

	resp, err := a.Next.Handle(ctx, env)
	if err != nil {
		return a.fail(ctx, env, err), nil
	}
	if resp == nil {
		return a.fail(ctx, env, fmt.Errorf("handler returned no response for %s %s", env.Method(), env.Path())), nil
	}
	if err := resp.Validate(); err != nil {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return a.fail(ctx, env, err), nil
	}
	return resp, nil
}

func (a *Application) fail(ctx context.Context, env Env, err error) *Response {
	resp := ErrorResponse(err)
	level := slog.LevelError
	if resp.Status < 500 {
		level = slog.LevelInfo
	}
	a.logger().LogAttrs(ctx, level, "request failed",
		slog.String("request_id", env.RequestID()),
		slog.String("method", env.Method()),
		slog.String("path", env.Path()),
		slog.Int("status", resp.Status),
		slog.String("error", err.Error()),
	)
	return resp
}
