package transport

import (
	"context"
	"runtime/debug"
)

// Recovery returns middleware that catches panics in the inner handler
// and turns them into a *PanicError carrying the stack. The error then
// propagates like any other so outer middleware still observe it.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return Wrap(next, func(ctx context.Context, env Env) (resp *Response, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					resp = nil
					retErr = &PanicError{Value: r, Stack: debug.Stack()}
				}
			}()
			return next.Handle(ctx, env)
		})
	}
}
