// Package observability wires structured logging and OpenTelemetry RED
// metrics (rate, errors, duration) for a substrate instance.
//
// Grounded on the teacher's pkg/observability/observability.go (Provider,
// RED metric set, DefaultConfig), with the OTLP gRPC exporters dropped:
// nothing in this module runs as a long-lived service with a collector
// sidecar assumed, so the Provider takes an exporter-pluggable
// sdkmetric.Reader / sdktrace.SpanExporter instead of hardcoding OTLP gRPC.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config configures a Provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
	// MetricReader, if non-nil, is registered with the meter provider so
	// metrics are actually exported somewhere (Prometheus, OTLP, stdout).
	// Nil means metrics are recorded but never read out.
	MetricReader sdkmetric.Reader
	// SpanExporter, if non-nil, is registered with the tracer provider via a
	// batch span processor.
	SpanExporter sdktrace.SpanExporter
}

// DefaultConfig returns baseline values for a standalone substrate instance.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "substrate",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		Enabled:        true,
	}
}

// Provider holds the tracer/meter and the RED metric instruments every
// backend operation records against.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	requestCounter   metric.Int64Counter
	errorCounter     metric.Int64Counter
	durationHist     metric.Float64Histogram
	activeOperations metric.Int64UpDownCounter
}

// New builds a Provider. A nil config uses DefaultConfig(). If
// config.Enabled is false, New returns a Provider whose instruments are
// no-ops (Record* calls are always safe to make unconditionally).
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Provider{config: config, logger: slog.Default().With("component", "observability")}

	if !config.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		p.tracer = otel.Tracer("substrate")
		p.meter = otel.Meter("substrate")
		return p, p.initREDMetrics()
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			attribute.String("service.name", config.ServiceName),
			attribute.String("service.version", config.ServiceVersion),
			attribute.String("deployment.environment", config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: building resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if config.SpanExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(config.SpanExporter))
	}
	p.tracerProvider = sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(p.tracerProvider)

	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if config.MetricReader != nil {
		metricOpts = append(metricOpts, sdkmetric.WithReader(config.MetricReader))
	}
	p.meterProvider = sdkmetric.NewMeterProvider(metricOpts...)
	otel.SetMeterProvider(p.meterProvider)

	p.tracer = p.tracerProvider.Tracer("substrate", trace.WithInstrumentationVersion(config.ServiceVersion))
	p.meter = p.meterProvider.Meter("substrate", metric.WithInstrumentationVersion(config.ServiceVersion))

	if err := p.initREDMetrics(); err != nil {
		return nil, fmt.Errorf("observability: init RED metrics: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized", "service", config.ServiceName, "environment", config.Environment)
	return p, nil
}

func (p *Provider) initREDMetrics() error {
	var err error
	p.requestCounter, err = p.meter.Int64Counter("substrate.requests", metric.WithDescription("backend operations invoked"))
	if err != nil {
		return err
	}
	p.errorCounter, err = p.meter.Int64Counter("substrate.errors", metric.WithDescription("backend operations that returned an error"))
	if err != nil {
		return err
	}
	p.durationHist, err = p.meter.Float64Histogram("substrate.duration_ms", metric.WithDescription("backend operation duration in milliseconds"))
	if err != nil {
		return err
	}
	p.activeOperations, err = p.meter.Int64UpDownCounter("substrate.active_operations", metric.WithDescription("in-flight backend operations"))
	return err
}

// Tracer returns the provider's tracer, for starting spans around backend
// operations.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Logger returns the provider's structured logger.
func (p *Provider) Logger() *slog.Logger { return p.logger }

// RecordOperation records one RED sample: one request, an error increment
// if err != nil, and the observed duration, tagged by operation name.
func (p *Provider) RecordOperation(ctx context.Context, operation string, durationMs float64, err error) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	p.requestCounter.Add(ctx, 1, attrs)
	p.durationHist.Record(ctx, durationMs, attrs)
	if err != nil {
		p.errorCounter.Add(ctx, 1, attrs)
	}
}

// TrackActive increments the active-operations gauge and returns a func
// that decrements it; callers defer the returned func.
func (p *Provider) TrackActive(ctx context.Context, operation string) func() {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	p.activeOperations.Add(ctx, 1, attrs)
	return func() { p.activeOperations.Add(ctx, -1, attrs) }
}

// Shutdown flushes and stops the tracer/meter providers. Safe to call on a
// disabled Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if p.meterProvider != nil {
		return p.meterProvider.Shutdown(ctx)
	}
	return nil
}
