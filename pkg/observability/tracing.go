package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/rhuss/gantry/pkg/transport"
)

// TracingConfig describes the tracer provider bootstrap options.
type TracingConfig struct {
	ServiceName string
	Endpoint    string
	Insecure    bool
	Headers     map[string]string
}

// SetupTracing installs the process-wide tracer provider exporting over
// OTLP/gRPC and returns the shutdown function that flushes buffered
// spans. Without an endpoint it is a no-op.
func SetupTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	} else {
		clientOpts = append(clientOpts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	clientOpts = append(clientOpts, otlptracegrpc.WithDialOption(
		grpc.WithReturnConnectionError(), //nolint:staticcheck // surfaces dial errors without blocking
	))

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exporter, err := otlptrace.New(dialCtx, otlptracegrpc.NewClient(clientOpts...))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// Tracing returns chain middleware that opens a server span per request.
// Backends without listener-level instrumentation (fasthttp) rely on it.
func Tracing(name string) transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		tracer := otel.Tracer(name)
		return transport.Wrap(next, func(ctx context.Context, env transport.Env) (*transport.Response, error) {
			ctx, span := tracer.Start(ctx, env.Method()+" "+env.Path(),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(env.Method()),
					semconv.URLPath(env.Path()),
					attribute.String("gantry.request_id", env.RequestID()),
				),
			)
			defer span.End()

			resp, err := next.Handle(ctx, env)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return resp, err
			}
			if resp != nil {
				span.SetAttributes(semconv.HTTPResponseStatusCode(resp.Status))
				if resp.Status >= 500 {
					span.SetStatus(codes.Error, "")
				}
			}
			if deferred, _ := env[transport.KeyDeferred].(bool); deferred {
				span.SetAttributes(attribute.Bool("gantry.deferred", true))
			}
			return resp, nil
		})
	}
}
