package store

import (
	"context"
	"io"

	"github.com/kbukum/pipecat/errors"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
)

// Dump writes a readable rendering of every record to w and passes it on.
// See record.Dump for the layout.
func Dump(p *pipeline.Pipeline[*record.Record], w io.Writer) *pipeline.Pipeline[*record.Record] {
	return pipeline.Tap(p, func(_ context.Context, r *record.Record) error {
		if err := record.Dump(w, r); err != nil {
			return errors.Storage("dump", err)
		}
		return nil
	})
}
