package broadcast

import (
	"context"

	"github.com/kbukum/pipecat/errors"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
)

// Publisher receives encoded records. *Hub implements it.
type Publisher interface {
	Publish(topic string, data []byte)
}

var _ Publisher = (*Hub)(nil)

// Broadcast publishes every record on topic as a JSON object keyed by the
// "/"-joined field names, then passes it on unchanged.
func Broadcast(p *pipeline.Pipeline[*record.Record], pub Publisher, topic string) *pipeline.Pipeline[*record.Record] {
	return pipeline.Tap(p, func(_ context.Context, r *record.Record) error {
		data, err := r.MarshalJSON()
		if err != nil {
			return errors.InvalidFormat("record", "json-encodable values").WithCause(err)
		}
		pub.Publish(topic, data)
		return nil
	})
}
