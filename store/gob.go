package store

import (
	"context"
	"encoding/gob"
	stderrors "errors"
	"io"
	"time"

	"github.com/kbukum/pipecat/errors"
	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/quantity"
	"github.com/kbukum/pipecat/record"
)

func init() {
	gob.Register(quantity.Quantity{})
	gob.Register(time.Time{})
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// entry is the stored form of a record: keys in insertion order with their
// values alongside.
type entry struct {
	Keys   []string
	Values []any
}

func toEntry(r *record.Record) entry {
	e := entry{Keys: make([]string, 0, r.Len()), Values: make([]any, 0, r.Len())}
	r.Range(func(k record.Key, v any) bool {
		e.Keys = append(e.Keys, string(k))
		e.Values = append(e.Values, v)
		return true
	})
	return e
}

func (e entry) record() *record.Record {
	r := record.New()
	for i, k := range e.Keys {
		r.Set(record.Key(k), e.Values[i])
	}
	return r
}

// WriteGob appends every record to w as a gob stream and passes it on.
// Values must be gob-encodable: numbers, strings, bools, times, quantities
// and nested maps or slices of those. Records carrying anything else, such
// as a parsed XML tree, fail the stream with a STORAGE_ERROR.
//
// A gob stream describes its types once, so w should be a fresh file per
// pipeline run rather than one opened for append.
func WriteGob(p *pipeline.Pipeline[*record.Record], w io.Writer, opts ...Option) *pipeline.Pipeline[*record.Record] {
	o := newOptions("gob", opts)
	enc := gob.NewEncoder(w)
	return pipeline.Tap(p, func(_ context.Context, r *record.Record) error {
		if err := enc.Encode(toEntry(r)); err != nil {
			o.log.Error("gob encode failed", logger.ErrorFields("encode", err))
			return errors.Storage("write gob", err)
		}
		if f, ok := w.(interface{ Flush() error }); ok {
			return f.Flush()
		}
		return nil
	})
}

// ReadGob is a source replaying the records stored by WriteGob, in order.
// It ends cleanly at the end of r; a truncated or corrupt stream fails it.
func ReadGob(r io.Reader) *pipeline.Pipeline[*record.Record] {
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[*record.Record] {
		dec := gob.NewDecoder(r)
		return pipeline.Generate(func(_ context.Context) (*record.Record, bool, error) {
			var e entry
			if err := dec.Decode(&e); err != nil {
				if stderrors.Is(err, io.EOF) {
					return nil, false, nil
				}
				return nil, false, errors.Storage("read gob", err)
			}
			return e.record(), true, nil
		}).Iter(ctx)
	})
}
