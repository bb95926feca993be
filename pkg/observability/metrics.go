// Package observability provides Prometheus metrics, OpenTelemetry
// tracing and the chain middleware that feeds them.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBuckets covers quick static hits through slow deferred actions.
var DefaultBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

var (
	// RequestsTotal counts requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantry_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records time spent in the chain by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gantry_request_duration_seconds",
			Help:    "Request duration",
			Buckets: DefaultBuckets,
		},
		[]string{"method"},
	)

	// InFlightRequests tracks requests currently inside the chain.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gantry_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// DeferredTotal counts requests the chain reported as deferred.
	DeferredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gantry_deferred_requests_total",
			Help: "Deferred requests",
		},
	)

	// CSRFRejectionsTotal counts POST requests refused for a bad token.
	CSRFRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gantry_csrf_rejections_total",
			Help: "CSRF rejections",
		},
	)

	// StaticServedTotal counts static short-circuits by kind
	// (file, cached_page, favicon).
	StaticServedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantry_static_served_total",
			Help: "Static responses",
		},
		[]string{"kind"},
	)

	// NotModifiedTotal counts responses downgraded to 304.
	NotModifiedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gantry_not_modified_total",
			Help: "Conditional GET hits",
		},
	)

	// SessionsCreatedTotal counts new sessions by store.
	SessionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantry_sessions_created_total",
			Help: "Sessions created",
		},
		[]string{"store"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InFlightRequests,
		DeferredTotal,
		CSRFRejectionsTotal,
		StaticServedTotal,
		NotModifiedTotal,
		SessionsCreatedTotal,
	)
}

// Handler returns the exposition handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
