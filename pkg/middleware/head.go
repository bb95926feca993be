package middleware

import (
	"context"
	"net/http"

	"github.com/rhuss/gantry/pkg/transport"
)

type head struct {
	transport.Base
}

// Head returns middleware that answers HEAD requests with the status and
// headers of the inner response and an empty body.
func Head() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return &head{Base: transport.Base{Next: next}}
	}
}

func (h *head) Handle(ctx context.Context, env transport.Env) (*transport.Response, error) {
	resp, err := h.Next.Handle(ctx, env)
	if err != nil || resp == nil || env.Method() != http.MethodHead {
		return resp, err
	}
	resp.ReplaceBody(transport.EmptyBody())
	return resp, nil
}
