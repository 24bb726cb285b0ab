package transform

import (
	"time"

	"github.com/kbukum/pipecat/logger"
)

// Option configures a transform stage.
type Option func(*options)

type options struct {
	log *logger.Logger
	now func() time.Time
}

// WithLogger sets the logger for overwrite warnings, traces and parse
// errors. Defaults to a no-op logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock replaces the clock used by AddTimestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(stage string, opts []Option) *options {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	o.log = logger.OrNop(o.log).WithComponent("transform").WithFields(logger.Fields(
		logger.FieldOperation, stage,
	))
	return o
}
