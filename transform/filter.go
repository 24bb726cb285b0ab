package transform

import (
	"context"

	"github.com/kbukum/pipecat/errors"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
)

// Keep drops records without a key field. When value is non-nil, records
// whose key field differs from value are dropped too.
func Keep(p *pipeline.Pipeline[*record.Record], key record.Key, value any) *pipeline.Pipeline[*record.Record] {
	return pipeline.Filter(p, func(r *record.Record) bool {
		v, ok := r.Get(key)
		if !ok {
			return false
		}
		return value == nil || equal(v, value)
	})
}

// Duplicates drops records whose key field has the same value as the
// previous record's. A record without the field ends the stream with a
// NOT_FOUND error.
func Duplicates(p *pipeline.Pipeline[*record.Record], key record.Key) *pipeline.Pipeline[*record.Record] {
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[*record.Record] {
		var (
			seen bool
			last any
		)
		changed := pipeline.Map(p, func(_ context.Context, r *record.Record) (*record.Record, error) {
			v, ok := r.Get(key)
			if !ok {
				return nil, errors.KeyNotFound(key.String())
			}
			if seen && equal(v, last) {
				return nil, nil
			}
			seen, last = true, v
			return r, nil
		})
		return dropNil(changed).Iter(ctx)
	})
}

// dropNil removes the nil records stages use to mark dropped input.
func dropNil(p *pipeline.Pipeline[*record.Record]) *pipeline.Pipeline[*record.Record] {
	return pipeline.Filter(p, func(r *record.Record) bool { return r != nil })
}
