package source

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/record"
	"github.com/kbukum/pipecat/resilience"
)

// Option configures a source.
type Option func(*options)

type options struct {
	log     *logger.Logger
	retry   resilience.RetryConfig
	client  *resty.Client
	headers map[string]string
}

// WithLogger sets the logger for read failures and reconnects. Defaults to
// a no-op logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRetry sets how Serial reopens its device. Defaults to
// resilience.DefaultRetryConfig, which retries until the context ends.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(o *options) { o.retry = cfg }
}

// WithClient sets the resty client HTTPGet uses.
func WithClient(c *resty.Client) Option {
	return func(o *options) { o.client = c }
}

// WithHeader adds a request header to every HTTPGet request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

func newOptions(src string, opts []Option) *options {
	o := &options{retry: resilience.DefaultRetryConfig()}
	for _, opt := range opts {
		opt(o)
	}
	o.log = logger.OrNop(o.log).WithComponent("source").WithFields(logger.Fields(
		logger.FieldOperation, src,
	))
	return o
}

// failedIter reports an error from a source that could not be started.
type failedIter struct {
	err error
}

func (it *failedIter) Next(context.Context) (*record.Record, bool, error) {
	return nil, false, it.err
}

func (it *failedIter) Close() error { return nil }
