package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/pipecat/logger"
)

const meterName = "github.com/kbukum/pipecat"

// InitMeter installs a global meter provider exporting over OTLP/HTTP.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, cfg *Config, log *logger.Logger) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.Version, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.OrNop(log).Info("meter initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns the pipecat meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(meterName)
}

// StreamMetrics counts what flows through named streams. A nil
// *StreamMetrics records nothing.
type StreamMetrics struct {
	values metric.Int64Counter
	stops  metric.Int64Counter
	errors metric.Int64Counter
}

// NewStreamMetrics creates the stream instruments on meter.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	values, err := meter.Int64Counter("pipecat.records",
		metric.WithDescription("Records yielded per stream"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipecat.records counter: %w", err)
	}

	stops, err := meter.Int64Counter("pipecat.stops",
		metric.WithDescription("Stream stops by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipecat.stops counter: %w", err)
	}

	errs, err := meter.Int64Counter("pipecat.errors",
		metric.WithDescription("Producer failures per stream"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipecat.errors counter: %w", err)
	}

	return &StreamMetrics{values: values, stops: stops, errors: errs}, nil
}

// RecordValue counts one value yielded by stream.
func (m *StreamMetrics) RecordValue(ctx context.Context, stream string) {
	if m == nil {
		return
	}
	m.values.Add(ctx, 1, metric.WithAttributes(attribute.String("stream", stream)))
}

// RecordStop counts stream ending for reason.
func (m *StreamMetrics) RecordStop(ctx context.Context, stream, reason string) {
	if m == nil {
		return
	}
	m.stops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stream", stream),
		attribute.String("reason", reason),
	))
}

// RecordError counts a producer failure seen by stream.
func (m *StreamMetrics) RecordError(ctx context.Context, stream string) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("stream", stream)))
}
