// Package observability provides OpenTelemetry tracing and metrics plus the
// notification hub the command bus, query bus, event store and projection
// engine report to.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Config configures the observability stack
type Config struct {
	// Service metadata
	ServiceName    string
	ServiceVersion string
	Environment    string // dev, staging, prod

	// Tracing
	TraceExporter   sdktrace.SpanExporter // Pluggable exporter (OTLP, stdout, in-memory)
	TraceSampleRate float64               // 0.0 to 1.0 (1.0 = trace everything)
	SyncExport      bool                  // Export spans synchronously (tests)

	// Metrics
	MetricReader sdkmetric.Reader // Pluggable reader (Prometheus, OTLP, manual)

	Logger *slog.Logger
}

// Telemetry manages the observability stack
type Telemetry struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Metrics        *Metrics
	Logger         *slog.Logger

	shutdown []func(context.Context) error
}

// Init initializes OpenTelemetry with graceful degradation.
// If exporters/readers are nil, telemetry is disabled but calls are no-ops.
// Providers are returned rather than installed globally.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tel := &Telemetry{Logger: cfg.Logger}

	if cfg.TraceExporter != nil {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			spanProcessor(cfg),
			sdktrace.WithSampler(sampler(cfg.TraceSampleRate)),
		)
		tel.TracerProvider = tp
		tel.shutdown = append(tel.shutdown, tp.Shutdown)
		cfg.Logger.InfoContext(ctx, "tracing initialized", slog.String("service", cfg.ServiceName))
	} else {
		tel.TracerProvider = tracenoop.NewTracerProvider()
		cfg.Logger.DebugContext(ctx, "tracing disabled (no exporter configured)")
	}

	var meter metric.Meter
	if cfg.MetricReader != nil {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(cfg.MetricReader),
		)
		tel.MeterProvider = mp
		tel.shutdown = append(tel.shutdown, mp.Shutdown)
		meter = mp.Meter("eventsourcing")
		cfg.Logger.InfoContext(ctx, "metrics initialized", slog.String("service", cfg.ServiceName))
	} else {
		tel.MeterProvider = noop.NewMeterProvider()
		meter = tel.MeterProvider.Meter("eventsourcing")
		cfg.Logger.DebugContext(ctx, "metrics disabled (no reader configured)")
	}

	tel.Metrics, err = NewMetrics(meter)
	if err != nil {
		return nil, err
	}

	return tel, nil
}

func spanProcessor(cfg Config) sdktrace.TracerProviderOption {
	if cfg.SyncExport {
		return sdktrace.WithSyncer(cfg.TraceExporter)
	}
	return sdktrace.WithBatcher(cfg.TraceExporter)
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, shutdown := range t.shutdown {
		if err := shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdown = nil
	return errors.Join(errs...)
}

// Tracer returns a tracer for the given name
func (t *Telemetry) Tracer(name string) trace.Tracer {
	return t.TracerProvider.Tracer(name)
}

// Meter returns a meter for the given name
func (t *Telemetry) Meter(name string) metric.Meter {
	return t.MeterProvider.Meter(name)
}
