// Package telemetry sets up OpenTelemetry tracing for runs.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	defaultBatchTimeout = 5 * time.Second
	serviceName         = "kairo"
)

// Config configures span export.
type Config struct {
	Enabled bool
	// Provider is "log", "otlp" or "noop".
	Provider string
	// Endpoint is the OTLP collector address.
	Endpoint   string
	SampleRate float64
	// Insecure disables TLS for the OTLP connection.
	Insecure bool
	// ServiceVersion is recorded on the resource.
	ServiceVersion string
}

// Validate checks the provider and sample rate.
func (c Config) Validate() error {
	switch strings.ToLower(c.Provider) {
	case "log", "otlp", "noop":
	default:
		return fmt.Errorf("unsupported tracing provider: %s", c.Provider)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate must be between 0.0 and 1.0, got %v", c.SampleRate)
	}
	return nil
}

// InitTracing creates the tracer provider for cfg. Spans of the "log"
// provider are written to logger. When tracing is disabled the provider
// records nothing.
func InitTracing(ctx context.Context, cfg Config, logger *slog.Logger) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		return sdktrace.NewTracerProvider(), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracing configuration: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch strings.ToLower(cfg.Provider) {
	case "noop":
		return sdktrace.NewTracerProvider(), nil

	case "log":
		exporter = NewLogExporter(logger)

	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("connect otlp exporter %s: %w", cfg.Endpoint, err)
		}
		exporter = exp
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(defaultBatchTimeout)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Shutdown flushes pending spans and stops the provider.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
