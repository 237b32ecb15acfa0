// Package telemetry sets up OpenTelemetry tracing with an OTLP/HTTP
// exporter.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds tracing configuration.
type Config struct {
	// Endpoint is the OTLP/HTTP collector URL. Empty disables tracing.
	Endpoint string

	// Headers are sent with every export request.
	Headers map[string]string
}

// Telemetry owns the installed tracer provider.
type Telemetry struct {
	TracerProvider *trace.TracerProvider
}

// Enabled reports whether spans are exported.
func (t Telemetry) Enabled() bool {
	return t.TracerProvider != nil
}

// Shutdown flushes pending spans and stops the exporter.
func (t Telemetry) Shutdown(ctx context.Context) error {
	if t.TracerProvider == nil {
		return nil
	}
	return errors.Join(t.TracerProvider.ForceFlush(ctx), t.TracerProvider.Shutdown(ctx))
}

// Setup installs a global tracer provider exporting to cfg.Endpoint. With
// no endpoint the global no-op provider stays in place.
func Setup(ctx context.Context, serviceName string, cfg Config) (Telemetry, error) {
	if cfg.Endpoint == "" {
		log.Debug().Msg("Tracing disabled")
		return Telemetry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	r, err := newResource(ctx, serviceName)
	if err != nil {
		return Telemetry{}, err
	}

	tracerProvider, err := newTraceProvider(ctx, r, cfg)
	if err != nil {
		return Telemetry{}, err
	}
	otel.SetTracerProvider(tracerProvider)

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Bool("headers", len(cfg.Headers) > 0).
		Msg("Tracer export initialized")

	return Telemetry{TracerProvider: tracerProvider}, nil
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
}

func newTraceProvider(ctx context.Context, r *resource.Resource, cfg Config) (*trace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
		otlptracehttp.WithHeaders(cfg.Headers),
	)
	if err != nil {
		return nil, err
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(r),
	), nil
}
