package transform

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
)

// DefaultTimestampKey is the field AddTimestamp writes when no key is given.
const DefaultTimestampKey record.Key = "timestamp"

// AddField sets key to value on every record. Overwriting an existing
// field is logged as a warning.
func AddField(p *pipeline.Pipeline[*record.Record], key record.Key, value any, opts ...Option) *pipeline.Pipeline[*record.Record] {
	o := newOptions("add_field", opts)
	return pipeline.Tap(p, func(_ context.Context, r *record.Record) error {
		record.AddField(o.log, r, key, value)
		return nil
	})
}

// AddTimestamp stores the current UTC time under key on every record. An
// empty key means DefaultTimestampKey.
func AddTimestamp(p *pipeline.Pipeline[*record.Record], key record.Key, opts ...Option) *pipeline.Pipeline[*record.Record] {
	if key == "" {
		key = DefaultTimestampKey
	}
	o := newOptions("add_timestamp", opts)
	return pipeline.Tap(p, func(_ context.Context, r *record.Record) error {
		record.AddField(o.log, r, key, o.now().UTC())
		return nil
	})
}

// Trace logs the life of a stream at debug level: its start, every record,
// any error and its end. Each iteration gets its own stream id. Errors are
// passed on unchanged.
func Trace(p *pipeline.Pipeline[*record.Record], name string, opts ...Option) *pipeline.Pipeline[*record.Record] {
	o := newOptions("trace", opts)
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[*record.Record] {
		log := o.log.WithFields(logger.Fields(
			logger.FieldStream, name,
			logger.FieldStreamID, uuid.NewString(),
		))
		log.Debug("stream started")
		return &traceIter{source: p.Iter(ctx), log: log}
	})
}

type traceIter struct {
	source pipeline.Iterator[*record.Record]
	log    *logger.Logger
	done   bool
}

func (it *traceIter) Next(ctx context.Context) (*record.Record, bool, error) {
	r, ok, err := it.source.Next(ctx)
	switch {
	case err != nil:
		it.log.Debug("stream failed", logger.Fields(logger.FieldError, err.Error()))
	case !ok:
		if !it.done {
			it.done = true
			it.log.Debug("stream finished")
		}
	default:
		it.log.Debug("record", logger.Fields(logger.FieldRecord, r.String()))
	}
	return r, ok, err
}

func (it *traceIter) Close() error { return it.source.Close() }

// UntilKey yields records until, and including, the first one whose key
// field equals value. Numbers match across Go numeric types, so 5 stops
// at a float64(5) decoded from JSON.
func UntilKey(p *pipeline.Pipeline[*record.Record], key record.Key, value any, opts ...pipeline.Option) *pipeline.Pipeline[*record.Record] {
	return pipeline.Until(p, func(r *record.Record) bool {
		v, ok := r.Get(key)
		return ok && equal(v, value)
	}, opts...)
}

// equal compares field values, numbers by value whatever their type.
// Integers beyond 2^53 may compare equal to a neighbour.
func equal(a, b any) bool {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
