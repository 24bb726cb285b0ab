package transform

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/quantity"
	"github.com/kbukum/pipecat/record"
)

// DefaultPayloadKey is the field the parsers read by default, the one
// line and datagram sources write.
const DefaultPayloadKey record.Key = "string"

// ParseJSON replaces each record with one built from the JSON object in
// its key field (a string or []byte). Top-level members become fields,
// added in sorted order.
//
// With a non-empty delimiter, member names are split on it into
// hierarchical keys, and objects with both "value" and "units" members
// become quantities. Records that cannot be parsed are logged and dropped.
func ParseJSON(p *pipeline.Pipeline[*record.Record], key record.Key, delimiter string, opts ...Option) *pipeline.Pipeline[*record.Record] {
	if key == "" {
		key = DefaultPayloadKey
	}
	o := newOptions("parse_json", opts)
	parsed := pipeline.Map(p, func(_ context.Context, r *record.Record) (*record.Record, error) {
		out, err := decodeJSON(r, key, delimiter, o.log)
		if err != nil {
			o.log.Error("dropping record", logger.Fields(
				logger.FieldKey, key.String(),
				logger.FieldError, err.Error(),
			))
			return nil, nil
		}
		return out, nil
	})
	return dropNil(parsed)
}

func decodeJSON(r *record.Record, key record.Key, delimiter string, log *logger.Logger) (*record.Record, error) {
	raw, err := payload(r, key)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := sonic.ConfigStd.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing json: %w", err)
	}

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	out := record.New()
	for _, name := range names {
		k, v := record.Key(name), data[name]
		if delimiter != "" {
			k = record.Path(strings.Split(name, delimiter)...)
			v = asQuantity(v)
		}
		record.AddField(log, out, k, v)
	}
	return out, nil
}

// asQuantity converts {"value": n, "units": "u"} objects and leaves every
// other value alone.
func asQuantity(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	mag, ok := obj["value"].(float64)
	if !ok {
		return v
	}
	units, ok := obj["units"].(string)
	if !ok {
		return v
	}
	return quantity.New(mag, units)
}

func payload(r *record.Record, key record.Key) ([]byte, error) {
	v, ok := r.Get(key)
	if !ok {
		return nil, fmt.Errorf("record has no field %s", key)
	}
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	default:
		return nil, fmt.Errorf("field %s is %T, not text", key, v)
	}
}
