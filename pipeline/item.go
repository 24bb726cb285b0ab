package pipeline

import "fmt"

// Kind tags the variant held by an Item.
type Kind uint8

const (
	// KindValue carries one value from a producer.
	KindValue Kind = iota
	// KindEnd marks the natural end of one producer's stream.
	KindEnd
	// KindFailure carries the error that ended one producer's stream.
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindEnd:
		return "end"
	case KindFailure:
		return "failure"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Item is what travels through a Queue: a value, the end-of-stream
// sentinel, or a producer failure. The sentinel is its own variant, so no
// value can ever be mistaken for it.
//
// Each producer puts at most one terminal item (KindEnd or KindFailure) on
// a queue, and it is always the last item that producer puts there.
type Item[T any] struct {
	kind Kind
	val  T
	err  error
}

// ValueOf wraps v as a value item.
func ValueOf[T any](v T) Item[T] {
	return Item[T]{kind: KindValue, val: v}
}

// EndOfStream returns the end-of-stream sentinel.
func EndOfStream[T any]() Item[T] {
	return Item[T]{kind: KindEnd}
}

// Failure wraps err as a terminal failure item.
func Failure[T any](err error) Item[T] {
	return Item[T]{kind: KindFailure, err: err}
}

// Kind returns the variant tag.
func (i Item[T]) Kind() Kind { return i.kind }

// Value returns the carried value; the zero value for non-value items.
func (i Item[T]) Value() T { return i.val }

// Err returns the carried error for failure items.
func (i Item[T]) Err() error { return i.err }

// Terminal reports whether the item ends its producer's stream.
func (i Item[T]) Terminal() bool { return i.kind != KindValue }
