package transport

import (
	"context"

	"github.com/google/uuid"
)

// RequestIDHeader is propagated from the request and echoed on the response.
const RequestIDHeader = "X-Request-ID"

// RequestID returns middleware that assigns a unique request ID to each
// request. If the client sent an X-Request-ID header, that value is used.
// Otherwise, a new UUID is generated. The ID is stored in the Env and
// echoed on the response.
func RequestID() Middleware {
	return func(next Handler) Handler {
		return Wrap(next, func(ctx context.Context, env Env) (*Response, error) {
			id := env.RequestID()
			if id == "" {
				id = env.Header(RequestIDHeader)
			}
			if id == "" {
				id = uuid.New().String()
			}
			env[KeyRequestID] = id

			resp, err := next.Handle(ctx, env)
			if resp != nil && resp.Header != nil && !resp.Header.Has(RequestIDHeader) {
				resp.Header.Set(RequestIDHeader, id)
			}
			return resp, err
		})
	}
}
