package middleware

import (
	"context"
	"strconv"

	"github.com/rhuss/gantry/pkg/transport"
)

type contentLength struct {
	transport.Base
}

// ContentLength returns middleware that sets Content-Length when the
// response has none and the body size is known. Producer bodies are
// left alone.
func ContentLength() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return &contentLength{Base: transport.Base{Next: next}}
	}
}

func (c *contentLength) Handle(ctx context.Context, env transport.Env) (*transport.Response, error) {
	resp, err := c.Next.Handle(ctx, env)
	if err != nil || resp == nil || resp.Body == nil {
		return resp, err
	}
	if resp.Header.Has("Content-Length") || !transport.BodyAllowed(resp.Status) {
		return resp, nil
	}
	if resp.Body.Kind() == transport.Producer {
		return resp, nil
	}
	if n := resp.Body.Size(); n >= 0 {
		resp.Header.Set("Content-Length", strconv.FormatInt(n, 10))
	}
	return resp, nil
}
