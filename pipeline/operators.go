package pipeline

import (
	"context"
	stderrors "errors"
	"time"
)

// Map transforms each value using fn.
func Map[I, O any](p *Pipeline[I], fn func(context.Context, I) (O, error)) *Pipeline[O] {
	return &Pipeline[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &mapIter[I, O]{source: p.create(ctx), fn: fn}
		},
	}
}

// FlatMap replaces each value with the values fn returns for it, in order.
// An empty result skips the value.
func FlatMap[I, O any](p *Pipeline[I], fn func(context.Context, I) ([]O, error)) *Pipeline[O] {
	return &Pipeline[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &flatMapIter[I, O]{source: p.create(ctx), fn: fn}
		},
	}
}

// Filter keeps only values that satisfy the predicate.
func Filter[T any](p *Pipeline[T], fn func(T) bool) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &filterIter[T]{source: p.create(ctx), fn: fn}
		},
	}
}

// Tap calls fn as a side-effect for each value, then passes the value through unchanged.
// Stores, dumps and tracing are built on Tap.
func Tap[T any](p *Pipeline[T], fn func(context.Context, T) error) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &tapIter[T]{source: p.create(ctx), fn: fn}
		},
	}
}

// Concat joins pipelines sequentially: every value of the first, then every
// value of the second, and so on. Each source is only started once the
// previous one is exhausted, so only finite sources make sense here.
func Concat[T any](pipelines ...*Pipeline[T]) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &concatIter[T]{ctx: ctx, pipelines: pipelines}
		},
	}
}

// Throttle drops values that arrive less than interval after the last
// value it let through.
func Throttle[T any](p *Pipeline[T], interval time.Duration) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &throttleIter[T]{source: p.create(ctx), interval: interval}
		},
	}
}

// Buffer decouples p from its consumer: a background goroutine pulls p
// into a queue holding up to size values (unbounded when size <= 0).
// Closing the iterator stops the goroutine and waits for it.
func Buffer[T any](p *Pipeline[T], size int, opts ...Option) *Pipeline[T] {
	o := newOptions("buffer", opts)
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			q := NewQueue[T](size)
			workers := startProducers(ctx, q, []*Pipeline[T]{p}, o.log)
			return newReceiveIter(q, 1, workers.Close)
		},
	}
}

// --- Iterator implementations ---

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		var zero O
		return zero, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		var zero O
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

type flatMapIter[I, O any] struct {
	source  Iterator[I]
	fn      func(context.Context, I) ([]O, error)
	pending []O
}

func (it *flatMapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	for len(it.pending) == 0 {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return result, false, err
		}
		if it.pending, err = it.fn(ctx, val); err != nil {
			return result, false, err
		}
	}
	result = it.pending[0]
	it.pending = it.pending[1:]
	return result, true, nil
}

func (it *flatMapIter[I, O]) Close() error { return it.source.Close() }

type filterIter[T any] struct {
	source Iterator[T]
	fn     func(T) bool
}

func (it *filterIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return val, false, err
		}
		if it.fn(val) {
			return val, true, nil
		}
	}
}

func (it *filterIter[T]) Close() error { return it.source.Close() }

type tapIter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) error
}

func (it *tapIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, ok, err
	}
	if err := it.fn(ctx, val); err != nil {
		var zero T
		return zero, false, err
	}
	return val, true, nil
}

func (it *tapIter[T]) Close() error { return it.source.Close() }

type concatIter[T any] struct {
	ctx       context.Context
	pipelines []*Pipeline[T]
	index     int
	current   Iterator[T]
	closeErrs []error
}

func (it *concatIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for it.index < len(it.pipelines) {
		if it.current == nil {
			it.current = it.pipelines[it.index].create(it.ctx)
		}
		val, ok, err := it.current.Next(ctx)
		if err != nil {
			return val, false, err
		}
		if ok {
			return val, true, nil
		}
		it.closeErrs = append(it.closeErrs, it.current.Close())
		it.current = nil
		it.index++
	}
	var zero T
	return zero, false, nil
}

func (it *concatIter[T]) Close() error {
	if it.current != nil {
		it.closeErrs = append(it.closeErrs, it.current.Close())
		it.current = nil
	}
	return stderrors.Join(it.closeErrs...)
}

type throttleIter[T any] struct {
	source   Iterator[T]
	interval time.Duration
	lastEmit time.Time
}

func (it *throttleIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return val, ok, err
		}
		now := time.Now()
		if it.lastEmit.IsZero() || now.Sub(it.lastEmit) >= it.interval {
			it.lastEmit = now
			return val, true, nil
		}
	}
}

func (it *throttleIter[T]) Close() error { return it.source.Close() }
