// Package telemetry wires the OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/wolfman30/reserv/pkg/logging"
)

// Setup installs a batching OTLP/gRPC tracer provider when endpoint is set.
// The returned function flushes and shuts the provider down; it is a no-op
// when tracing is disabled.
func Setup(ctx context.Context, serviceName, endpoint string, insecure bool, logger *logging.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if strings.TrimSpace(endpoint) == "" {
		return noop
	}
	if logger == nil {
		logger = logging.Default()
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		logger.Warn("otel exporter unavailable", "error", err)
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		logger.Warn("otel resource error", "error", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	logger.Info("tracing enabled", "endpoint", endpoint)

	return provider.Shutdown
}
