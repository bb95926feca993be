package middleware

import (
	"context"
	"net/http"

	"github.com/rhuss/gantry/pkg/debug"
	"github.com/rhuss/gantry/pkg/observability"
	"github.com/rhuss/gantry/pkg/transport"
)

type conditionalGet struct {
	transport.Base
}

// ConditionalGet returns middleware that answers 304 Not Modified when
// the response validators equal the request's conditional headers:
// ETag against If-None-Match, or Last-Modified against
// If-Modified-Since. Comparison is exact string equality and needs both
// sides present.
func ConditionalGet() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return &conditionalGet{Base: transport.Base{Next: next}}
	}
}

func (c *conditionalGet) Handle(ctx context.Context, env transport.Env) (*transport.Response, error) {
	resp, err := c.Next.Handle(ctx, env)
	if err != nil || resp == nil {
		return resp, err
	}
	if NotModified(env, resp.Header) {
		debug.Log("conditional", "not modified", "path", env.Path())
		observability.NotModifiedTotal.Inc()
		resp.Status = http.StatusNotModified
		resp.ReplaceBody(transport.EmptyBody())
		resp.Header.Del("Content-Length")
	}
	return resp, nil
}

// NotModified reports whether the response validators in h match the
// request's conditional headers.
func NotModified(env transport.Env, h *transport.Header) bool {
	if etag := h.Get("ETag"); etag != "" && etag == env.Header("If-None-Match") {
		return true
	}
	if lm := h.Get("Last-Modified"); lm != "" && lm == env.Header("If-Modified-Since") {
		return true
	}
	return false
}
