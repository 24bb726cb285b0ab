package device

import (
	"context"
	"fmt"

	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
)

// Option configures a device parser.
type Option func(*options)

type options struct {
	log *logger.Logger
	key record.Key
}

// WithLogger sets the logger that reports dropped input. Defaults to a
// no-op logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithKey sets the field the parser reads. Each parser documents its
// default.
func WithKey(k record.Key) Option {
	return func(o *options) { o.key = k }
}

func newOptions(parser string, key record.Key, opts []Option) *options {
	o := &options{key: key}
	for _, opt := range opts {
		opt(o)
	}
	o.log = logger.OrNop(o.log).WithComponent("device").WithFields(logger.Fields(
		logger.FieldOperation, parser,
	))
	return o
}

func (o *options) drop(err error) {
	o.log.Warn("dropping record", logger.Fields(
		logger.FieldKey, o.key.String(),
		logger.FieldError, err.Error(),
	))
}

// text returns the string stored under key.
func text(r *record.Record, key record.Key) (string, error) {
	v, ok := r.Get(key)
	if !ok {
		return "", fmt.Errorf("record has no field %s", key)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("field %s is %T, not text", key, v)
	}
}

// decodeEach maps every record through decode, dropping the ones it
// rejects.
func decodeEach(p *pipeline.Pipeline[*record.Record], o *options, decode func(string) (*record.Record, error)) *pipeline.Pipeline[*record.Record] {
	decoded := pipeline.Map(p, func(_ context.Context, r *record.Record) (*record.Record, error) {
		line, err := text(r, o.key)
		if err == nil {
			var out *record.Record
			if out, err = decode(line); err == nil {
				return out, nil
			}
		}
		o.drop(err)
		return nil, nil
	})
	return pipeline.Filter(decoded, func(r *record.Record) bool { return r != nil })
}
