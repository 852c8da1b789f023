// Package telemetry wires OpenTelemetry tracing for the aggregator and its
// outbound API clients.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config selects the OTLP/HTTP trace exporter.
type Config struct {
	// Endpoint is a full OTLP/HTTP traces URL, e.g.
	// "http://localhost:4318/v1/traces". Empty disables export.
	Endpoint string            `json:"endpoint"`
	Headers  map[string]string `json:"headers"`
}

// Telemetry owns the installed tracer provider.
type Telemetry struct {
	TracerProvider *trace.TracerProvider
}

// Shutdown flushes pending spans. Safe on a zero Telemetry.
func (t Telemetry) Shutdown(ctx context.Context) error {
	if t.TracerProvider == nil {
		return nil
	}
	return t.TracerProvider.Shutdown(ctx)
}

// Setup installs a global tracer provider exporting to cfg.Endpoint. With
// no endpoint it leaves the no-op provider in place.
func Setup(ctx context.Context, serviceName string, cfg Config, logger *slog.Logger) (Telemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		logger.Debug("tracing disabled, no otlp endpoint configured")
		return Telemetry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	r, err := newResource(serviceName)
	if err != nil {
		return Telemetry{}, fmt.Errorf("telemetry resource: %w", err)
	}

	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
		otlptracehttp.WithHeaders(cfg.Headers),
	)
	if err != nil {
		return Telemetry{}, fmt.Errorf("otlp exporter: %w", err)
	}
	logger.Info("tracer export initialized", "type", "http", "endpoint", cfg.Endpoint, "headers", len(cfg.Headers) > 0)

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return Telemetry{TracerProvider: tp}, nil
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}
