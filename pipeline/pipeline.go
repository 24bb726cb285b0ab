package pipeline

import (
	"context"
	stderrors "errors"
)

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted,
	// and keeps doing so on every later call.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator, including
	// background producers.
	Close() error
}

// Pipeline represents a lazy, pull-based stream of values.
// No work happens until values are pulled via Collect, Drain, ForEach or Iter.
type Pipeline[T any] struct {
	create func(ctx context.Context) Iterator[T]
}

// Runnable is a fully-configured pipeline ready to execute.
type Runnable struct {
	run func(ctx context.Context) error
}

// Run executes the pipeline until completion or context cancellation.
func (r *Runnable) Run(ctx context.Context) error {
	return r.run(ctx)
}

// --- Constructors ---

// From creates a pipeline from an existing Iterator. The iterator is not
// restartable: iterating the pipeline twice continues where the first
// iteration stopped.
func From[T any](iter Iterator[T]) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(_ context.Context) Iterator[T] {
			return iter
		},
	}
}

// FromSlice creates a pipeline from a slice of values.
func FromSlice[T any](items []T) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(_ context.Context) Iterator[T] {
			return &sliceIter[T]{items: items}
		},
	}
}

// FromFunc creates a pipeline from a factory that produces an Iterator.
func FromFunc[T any](fn func(ctx context.Context) Iterator[T]) *Pipeline[T] {
	return &Pipeline[T]{create: fn}
}

// Generate creates a pipeline from a pull function. fn returns
// (value, true, nil) for each value and (zero, false, nil) once exhausted.
func Generate[T any](fn func(ctx context.Context) (T, bool, error)) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(_ context.Context) Iterator[T] {
			return &funcIter[T]{next: fn}
		},
	}
}

// --- Terminals ---

// Drain creates a Runnable that pulls every value into sink. The
// iterator is closed when the run ends, and an error from closing it is
// joined to the run's result.
func Drain[T any](p *Pipeline[T], sink func(context.Context, T) error) *Runnable {
	return &Runnable{
		run: func(ctx context.Context) error {
			return consume(ctx, p, sink)
		},
	}
}

// Collect runs the pipeline and returns all values as a slice. On error
// the values pulled so far are returned with it.
func Collect[T any](ctx context.Context, p *Pipeline[T]) ([]T, error) {
	var result []T
	err := consume(ctx, p, func(_ context.Context, val T) error {
		result = append(result, val)
		return nil
	})
	return result, err
}

// ForEach pulls all values and calls fn for each. Convenience wrapper around Drain.
func ForEach[T any](ctx context.Context, p *Pipeline[T], fn func(context.Context, T) error) error {
	return Drain(p, fn).Run(ctx)
}

func consume[T any](ctx context.Context, p *Pipeline[T], sink func(context.Context, T) error) (err error) {
	iter := p.create(ctx)
	defer func() {
		if closeErr := iter.Close(); closeErr != nil {
			err = stderrors.Join(err, closeErr)
		}
	}()
	for {
		val, ok, nextErr := iter.Next(ctx)
		if nextErr != nil {
			return nextErr
		}
		if !ok {
			return nil
		}
		if err := sink(ctx, val); err != nil {
			return err
		}
	}
}

// Iter returns the raw Iterator for this pipeline. The caller must Close() it.
func (p *Pipeline[T]) Iter(ctx context.Context) Iterator[T] {
	return p.create(ctx)
}

// --- Internal iterators ---

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(_ context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

type funcIter[T any] struct {
	next func(ctx context.Context) (T, bool, error)
	done bool
}

func (it *funcIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, nil
	}
	val, ok, err := it.next(ctx)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		it.done = true
		return zero, false, nil
	}
	return val, true, nil
}

func (it *funcIter[T]) Close() error { return nil }
