package source

import (
	"context"
	"time"

	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
	"github.com/kbukum/pipecat/resilience"
)

// Metronome yields an empty record immediately and then once every rate.
// Ticks are scheduled from the previous tick, not from when the consumer
// asked, so slow consumers do not make the clock drift. Use
// transform.AddField or transform.AddTimestamp to fill the records.
func Metronome(rate time.Duration) *pipeline.Pipeline[*record.Record] {
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[*record.Record] {
		var next time.Time
		return pipeline.Generate(func(ctx context.Context) (*record.Record, bool, error) {
			if next.IsZero() {
				next = time.Now()
				return record.New(), true, nil
			}
			next = next.Add(rate)
			if err := resilience.Sleep(ctx, time.Until(next)); err != nil {
				return nil, false, err
			}
			return record.New(), true, nil
		}).Iter(ctx)
	})
}
