package store

import (
	"context"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kbukum/pipecat/errors"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/quantity"
	"github.com/kbukum/pipecat/record"
)

// Table collects record fields into columns, one per key, in the order
// keys were first seen. Columns are ragged: a record lacking a key adds
// nothing to that column. Safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	keys    []record.Key
	columns map[record.Key][]any
	rows    int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{columns: make(map[record.Key][]any)}
}

// Append adds every field of r to its column.
func (t *Table) Append(r *record.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r.Range(func(k record.Key, v any) bool {
		if _, ok := t.columns[k]; !ok {
			t.keys = append(t.keys, k)
		}
		t.columns[k] = append(t.columns[k], v)
		return true
	})
	t.rows++
}

// Len returns the number of records appended.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows
}

// Keys returns the column keys in first-seen order.
func (t *Table) Keys() []record.Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]record.Key(nil), t.keys...)
}

// Column returns a copy of the values stored under key.
func (t *Table) Column(key record.Key) ([]any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	col, ok := t.columns[key]
	if !ok {
		return nil, false
	}
	return append([]any(nil), col...), true
}

// Floats returns the column under key as magnitudes. Quantities are
// converted to the unit of the first one and that unit is returned;
// plain numbers come back with an empty unit. Mixing the two, or any
// value that is not numeric, is an INVALID_FORMAT error.
func (t *Table) Floats(key record.Key) ([]float64, quantity.Unit, error) {
	col, ok := t.Column(key)
	if !ok {
		return nil, "", errors.KeyNotFound(key.String())
	}
	out := make([]float64, 0, len(col))
	var unit quantity.Unit
	for i, v := range col {
		if q, isQ := v.(quantity.Quantity); isQ {
			if i == 0 {
				unit = q.Unit
			} else if unit == "" {
				return nil, "", errors.InvalidFormat(key.String(), "numbers only")
			}
			conv, err := q.To(unit)
			if err != nil {
				return nil, "", err
			}
			out = append(out, conv.Magnitude)
			continue
		}
		if unit != "" {
			return nil, "", errors.InvalidFormat(key.String(), fmt.Sprintf("quantities in %s", unit))
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, "", errors.InvalidFormat(key.String(), "numeric values")
		}
		out = append(out, f)
	}
	return out, unit, nil
}

// Summary describes a numeric column.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Unit   quantity.Unit
}

// Summary computes count, mean, sample standard deviation and range of the
// column under key. An empty column yields a zero Summary.
func (t *Table) Summary(key record.Key) (Summary, error) {
	xs, unit, err := t.Floats(key)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{Count: len(xs), Unit: unit}
	if len(xs) == 0 {
		return s, nil
	}
	s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		s.StdDev = 0
	}
	s.Min = floats.Min(xs)
	s.Max = floats.Max(xs)
	return s, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Cache appends every record passing through p to a new Table and passes
// it on. The table fills as the returned pipeline is iterated.
func Cache(p *pipeline.Pipeline[*record.Record]) (*pipeline.Pipeline[*record.Record], *Table) {
	t := NewTable()
	return pipeline.Tap(p, func(_ context.Context, r *record.Record) error {
		t.Append(r)
		return nil
	}), t
}
