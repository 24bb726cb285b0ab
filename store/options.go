package store

import (
	"github.com/kbukum/pipecat/logger"
)

// Option configures a store stage.
type Option func(*options)

type options struct {
	log *logger.Logger
}

// WithLogger sets the logger used for write failures.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

func newOptions(stage string, opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	o.log = logger.OrNop(o.log).WithComponent("store").WithFields(logger.Fields(
		logger.FieldOperation, stage,
	))
	return o
}
