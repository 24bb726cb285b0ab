package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/kbukum/pipecat/errors"
	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
)

// WriteCSV writes every record to w as "start,key,value" rows and passes
// it on. A record becomes one row per field in sorted key order; start is
// 1 on its first row and 0 on the rest. Path keys are written "/"-joined.
// w is flushed after every record.
func WriteCSV(p *pipeline.Pipeline[*record.Record], w io.Writer, opts ...Option) *pipeline.Pipeline[*record.Record] {
	o := newOptions("csv", opts)
	cw := csv.NewWriter(w)
	return pipeline.Tap(p, func(_ context.Context, r *record.Record) error {
		start := "1"
		for _, k := range r.SortedKeys() {
			v, _ := r.Get(k)
			if err := cw.Write([]string{start, k.String(), fmt.Sprint(v)}); err != nil {
				return errors.Storage("write csv", err)
			}
			start = "0"
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			o.log.Error("csv flush failed", logger.ErrorFields("flush", err))
			return errors.Storage("write csv", err)
		}
		return nil
	})
}
