package pipeline

import (
	"context"
	"time"

	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/observability"
)

const (
	// DefaultPollInterval bounds each blocking pop made by Duration.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultInitialTimeout is how long Timeout waits for the first value.
	DefaultInitialTimeout = time.Hour
)

// Option configures an operator.
type Option func(*options)

type options struct {
	name     string
	log      *logger.Logger
	metrics  *observability.StreamMetrics
	capacity int
}

// WithName sets the stream name used in log output and metrics.
// Defaults to the operator name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger for stop and failure events.
// Defaults to a no-op logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records per-stream value and stop counters.
func WithMetrics(m *observability.StreamMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithQueueCapacity bounds the queue used by bridge-backed operators.
// Zero or negative means unbounded, which is the default.
func WithQueueCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

func newOptions(operator string, opts []Option) *options {
	o := &options{name: operator}
	for _, opt := range opts {
		opt(o)
	}
	o.log = logger.OrNop(o.log).WithComponent("pipeline").WithFields(logger.Fields(
		logger.FieldStream, o.name,
		logger.FieldOperation, operator,
	))
	return o
}

func (o *options) yielded(ctx context.Context) {
	o.metrics.RecordValue(ctx, o.name)
}

func (o *options) stopped(ctx context.Context, reason string, fields ...map[string]interface{}) {
	o.log.Debug("iteration stopped", append([]map[string]interface{}{
		logger.Fields(logger.FieldReason, reason),
	}, fields...)...)
	o.metrics.RecordStop(ctx, o.name, reason)
}

func (o *options) failed(ctx context.Context, err error) {
	o.log.Debug("producer failed", logger.Fields(logger.FieldError, err.Error()))
	o.metrics.RecordError(ctx, o.name)
}
