package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestMetrics(t *testing.T) (*StreamMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewStreamMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewStreamMetrics: %v", err)
	}
	return m, reader
}

// counterValue sums the data points of the named counter that carry attr.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestStreamMetricsRecordValue(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordValue(ctx, "gps")
	m.RecordValue(ctx, "gps")
	m.RecordValue(ctx, "battery")

	if got := counterValue(t, reader, "pipecat.records", attribute.String("stream", "gps")); got != 2 {
		t.Errorf("gps records = %d, want 2", got)
	}
	if got := counterValue(t, reader, "pipecat.records", attribute.String("stream", "battery")); got != 1 {
		t.Errorf("battery records = %d, want 1", got)
	}
}

func TestStreamMetricsRecordStop(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStop(ctx, "gps", "timeout")
	m.RecordStop(ctx, "gps", "count")

	if got := counterValue(t, reader, "pipecat.stops", attribute.String("reason", "timeout")); got != 1 {
		t.Errorf("timeout stops = %d, want 1", got)
	}
	if got := counterValue(t, reader, "pipecat.stops", attribute.String("stream", "gps")); got != 2 {
		t.Errorf("gps stops = %d, want 2", got)
	}
}

func TestStreamMetricsRecordError(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordError(context.Background(), "serial")

	if got := counterValue(t, reader, "pipecat.errors", attribute.String("stream", "serial")); got != 1 {
		t.Errorf("serial errors = %d, want 1", got)
	}
}

func TestStreamMetricsNilReceiver(t *testing.T) {
	var m *StreamMetrics
	ctx := context.Background()
	// None of these may panic.
	m.RecordValue(ctx, "x")
	m.RecordStop(ctx, "x", "count")
	m.RecordError(ctx, "x")
}

func TestMeter(t *testing.T) {
	if Meter() == nil {
		t.Fatal("expected non-nil meter")
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.ServiceName != "pipecat" {
		t.Errorf("ServiceName = %q, want pipecat", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("Endpoint = %q, want localhost:4318", cfg.Endpoint)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("Interval = %v, want 15s", cfg.Interval)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("SampleRate = %f, want 1.0", cfg.SampleRate)
	}

	custom := Config{ServiceName: "logger", SampleRate: 0.25}
	custom.ApplyDefaults()
	if custom.ServiceName != "logger" || custom.SampleRate != 0.25 {
		t.Errorf("explicit values overwritten: %+v", custom)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
	}
	for _, tc := range tests {
		if got := sampler(tc.rate).Description(); got != tc.want {
			t.Errorf("sampler(%v) = %s, want %s", tc.rate, got, tc.want)
		}
	}
}

func withRecordingTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestStartSpanAttributes(t *testing.T) {
	exporter := withRecordingTracer(t)

	ctx, span := StartSpan(context.Background(), SpanRun)
	SetSpanAttribute(ctx, AttrSource, "udp")
	SetSpanAttribute(ctx, AttrRecords, 42)
	SetSpanAttribute(ctx, "ratio", 0.5)
	SetSpanAttribute(ctx, "ignored", struct{}{})
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != SpanRun {
		t.Errorf("span name = %s, want %s", spans[0].Name, SpanRun)
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes {
		attrs[kv.Key] = kv.Value
	}
	if attrs[AttrSource].AsString() != "udp" {
		t.Errorf("source attribute = %v", attrs[AttrSource])
	}
	if attrs[AttrRecords].AsInt64() != 42 {
		t.Errorf("records attribute = %v", attrs[AttrRecords])
	}
	if _, ok := attrs["ignored"]; ok {
		t.Error("unsupported attribute type should be ignored")
	}
}

func TestSetSpanError(t *testing.T) {
	exporter := withRecordingTracer(t)

	ctx, span := StartSpan(context.Background(), SpanRun)
	SetSpanError(ctx, fmt.Errorf("source failed"))
	SetSpanError(ctx, nil)
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status.Code)
	}
	if len(spans[0].Events) != 1 {
		t.Errorf("expected 1 error event, got %d", len(spans[0].Events))
	}
}

func TestSpanHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, fmt.Errorf("no span"))
}

func TestInitMeterAndTracer(t *testing.T) {
	cfg := &Config{Enabled: true, Insecure: true}
	cfg.ApplyDefaults()
	ctx := context.Background()

	mp, err := InitMeter(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("InitMeter: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_ = mp.Shutdown(shutdownCtx)
	}()

	tp, err := InitTracer(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()
}
