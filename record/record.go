// Package record defines the unit of data that flows through pipecat: an
// ordered mapping of keys to arbitrary values.
//
// A key is either a plain name ("mode") or a hierarchical path
// (Path("battery", "voltage")). Records are created fresh for every
// observation and owned by their producer until they are yielded
// downstream.
package record

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/kbukum/pipecat/logger"
)

const separator = "\x1f"

// Key identifies a record field. The zero value is the empty plain key.
type Key string

// Path builds a hierarchical key from its parts. A single part yields a
// plain key.
func Path(parts ...string) Key {
	return Key(strings.Join(parts, separator))
}

// Parts returns the tuple of names making up the key.
func (k Key) Parts() []string {
	return strings.Split(string(k), separator)
}

// IsPath reports whether the key has more than one part.
func (k Key) IsPath() bool {
	return strings.Contains(string(k), separator)
}

// String renders the key with parts joined by "/".
func (k Key) String() string {
	return strings.ReplaceAll(string(k), separator, "/")
}

// Record is an ordered mapping of keys to values.
type Record struct {
	keys   []Key
	values map[Key]any
}

// New returns an empty record.
func New() *Record {
	return &Record{values: make(map[Key]any)}
}

// Of builds a record from alternating key/value pairs. Keys may be Key or
// string; pairs with any other key type are skipped.
//
//	r := record.Of("mode", "charge", record.Path("battery", "voltage"), 12.6)
func Of(kvs ...any) *Record {
	r := New()
	for i := 0; i < len(kvs)-1; i += 2 {
		switch k := kvs[i].(type) {
		case Key:
			r.Set(k, kvs[i+1])
		case string:
			r.Set(Key(k), kvs[i+1])
		}
	}
	return r
}

// Set stores value under key. When the key already exists its value is
// replaced in place and the previous value is returned with replaced=true.
func (r *Record) Set(key Key, value any) (previous any, replaced bool) {
	if r.values == nil {
		r.values = make(map[Key]any)
	}
	previous, replaced = r.values[key]
	if !replaced {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
	return previous, replaced
}

// Get returns the value stored under key.
func (r *Record) Get(key Key) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether key is present.
func (r *Record) Has(key Key) bool {
	_, ok := r.Get(key)
	return ok
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []Key {
	if r == nil {
		return nil
	}
	out := make([]Key, len(r.keys))
	copy(out, r.keys)
	return out
}

// SortedKeys returns the keys ordered by their "/"-joined form.
func (r *Record) SortedKeys() []Key {
	keys := r.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Range calls fn for every field in insertion order until fn returns false.
func (r *Record) Range(fn func(Key, any) bool) {
	if r == nil {
		return
	}
	for _, k := range r.keys {
		if !fn(k, r.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy of the record.
func (r *Record) Clone() *Record {
	out := &Record{
		keys:   make([]Key, len(r.keys)),
		values: make(map[Key]any, len(r.values)),
	}
	copy(out.keys, r.keys)
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

// Equal reports whether both records hold the same keys and values,
// regardless of insertion order.
func (r *Record) Equal(other *Record) bool {
	if r.Len() != other.Len() {
		return false
	}
	for _, k := range r.keys {
		v, ok := other.values[k]
		if !ok || !reflect.DeepEqual(r.values[k], v) {
			return false
		}
	}
	return true
}

// Map returns the fields keyed by their "/"-joined form.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, r.Len())
	r.Range(func(k Key, v any) bool {
		out[k.String()] = v
		return true
	})
	return out
}

// MarshalJSON encodes the record as an object keyed by "/"-joined keys.
func (r *Record) MarshalJSON() ([]byte, error) {
	return sonic.ConfigStd.Marshal(r.Map())
}

// String renders the record on one line with sorted keys.
func (r *Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range r.SortedKeys() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", k, r.values[k])
	}
	b.WriteByte('}')
	return b.String()
}

// AddField sets key on r and logs a warning when an existing value is
// overwritten.
func AddField(log *logger.Logger, r *Record, key Key, value any) {
	previous, replaced := r.Set(key, value)
	if replaced {
		logger.OrNop(log).Warn("overwriting record field", logger.Fields(
			logger.FieldKey, key.String(),
			"previous", fmt.Sprint(previous),
			"value", fmt.Sprint(value),
		))
	}
}

// Dump writes a human-readable rendering of r to w: one "key: value" line
// per field, keys sorted, followed by a blank line.
func Dump(w io.Writer, r *Record) error {
	for _, k := range r.SortedKeys() {
		if _, err := fmt.Fprintf(w, "%s: %v\n", k, r.values[k]); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}
