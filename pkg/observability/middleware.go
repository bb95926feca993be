package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/rhuss/gantry/pkg/transport"
)

// Metrics returns chain middleware that records request metrics:
//   - gantry_requests_total (counter): method and status class labels
//   - gantry_request_duration_seconds (histogram): method label
//   - gantry_requests_in_flight (gauge)
//   - gantry_deferred_requests_total (counter): requests marked deferred
func Metrics() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.Wrap(next, func(ctx context.Context, env transport.Env) (*transport.Response, error) {
			start := time.Now()
			InFlightRequests.Inc()
			defer InFlightRequests.Dec()

			method := env.Method()
			resp, err := next.Handle(ctx, env)

			status := transport.HTTPStatusFromError(err)
			if err == nil && resp != nil {
				status = resp.Status
			}
			RequestsTotal.WithLabelValues(method, statusClass(status)).Inc()
			RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
			if deferred, _ := env[transport.KeyDeferred].(bool); deferred {
				DeferredTotal.Inc()
			}
			return resp, err
		})
	}
}

// statusClass builds a label like "2xx", "4xx", "5xx".
func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
