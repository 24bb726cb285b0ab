package pipeline

import (
	"context"
	"time"

	"github.com/kbukum/pipecat/errors"
	"github.com/kbukum/pipecat/logger"
)

// Stop reasons reported in logs and metrics.
const (
	ReasonCount     = "count"
	ReasonDuration  = "duration"
	ReasonTimeout   = "timeout"
	ReasonPredicate = "predicate"
	ReasonExhausted = "exhausted"
)

// Count yields at most limit values from p, pulling them directly on the
// caller's goroutine. It never pulls the (limit+1)th value. A negative
// limit is rejected with an INVALID_INPUT error.
func Count[T any](p *Pipeline[T], limit int, opts ...Option) *Pipeline[T] {
	o := newOptions("count", opts)
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &countIter[T]{source: p.create(ctx), limit: limit, opts: o}
		},
	}
}

type countIter[T any] struct {
	source  Iterator[T]
	limit   int
	n       int
	stopped bool
	opts    *options
}

func (it *countIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.stopped {
		return zero, false, nil
	}
	if it.limit < 0 {
		return zero, false, errors.InvalidInput("limit", "count must not be negative")
	}
	if it.n >= it.limit {
		it.stopped = true
		it.opts.stopped(ctx, ReasonCount, logger.Fields(logger.FieldCount, it.n))
		return zero, false, nil
	}
	val, ok, err := it.source.Next(ctx)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		it.stopped = true
		it.opts.stopped(ctx, ReasonExhausted, logger.Fields(logger.FieldCount, it.n))
		return zero, false, nil
	}
	it.n++
	it.opts.yielded(ctx)
	return val, true, nil
}

func (it *countIter[T]) Close() error { return it.source.Close() }

// Until yields values from p, pulled on the caller's goroutine, and stops
// right after the first value for which predicate returns true. That value
// is yielded.
func Until[T any](p *Pipeline[T], predicate func(T) bool, opts ...Option) *Pipeline[T] {
	o := newOptions("until", opts)
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &untilIter[T]{source: p.create(ctx), predicate: predicate, opts: o}
		},
	}
}

type untilIter[T any] struct {
	source    Iterator[T]
	predicate func(T) bool
	stopped   bool
	opts      *options
}

func (it *untilIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.stopped {
		return zero, false, nil
	}
	val, ok, err := it.source.Next(ctx)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		it.stopped = true
		it.opts.stopped(ctx, ReasonExhausted)
		return zero, false, nil
	}
	if it.predicate(val) {
		it.stopped = true
		it.opts.stopped(ctx, ReasonPredicate)
	}
	it.opts.yielded(ctx)
	return val, true, nil
}

func (it *untilIter[T]) Close() error { return it.source.Close() }

// Duration yields values from p until d has elapsed since the iterator was
// created.
//
// p is consumed by a background goroutine through a Queue. Each Next waits
// at most poll for a value and re-checks the elapsed time on every wake-up,
// so the stream ends within about one poll interval of the deadline. A
// value that arrives after the deadline is dropped. A poll of zero or less
// uses DefaultPollInterval.
func Duration[T any](p *Pipeline[T], d, poll time.Duration, opts ...Option) *Pipeline[T] {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	o := newOptions("duration", opts)
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			q := NewQueue[T](o.capacity)
			return &durationIter[T]{
				q:       q,
				workers: startProducers(ctx, q, []*Pipeline[T]{p}, o.log),
				start:   time.Now(),
				limit:   d,
				poll:    poll,
				opts:    o,
			}
		},
	}
}

type durationIter[T any] struct {
	q       *Queue[T]
	workers *producers
	start   time.Time
	limit   time.Duration
	poll    time.Duration
	stopped bool
	opts    *options
}

func (it *durationIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	for !it.stopped {
		if it.expired() {
			it.halt(ctx, ReasonDuration)
			break
		}
		item, ok, err := it.q.PopTimeout(ctx, it.poll)
		if err != nil {
			return zero, false, err
		}
		if it.expired() {
			it.halt(ctx, ReasonDuration)
			break
		}
		if !ok {
			continue
		}
		switch item.Kind() {
		case KindEnd:
			it.halt(ctx, ReasonExhausted)
		case KindFailure:
			it.stopped = true
			it.opts.failed(ctx, item.Err())
			return zero, false, item.Err()
		default:
			it.opts.yielded(ctx)
			return item.Value(), true, nil
		}
	}
	return zero, false, nil
}

func (it *durationIter[T]) expired() bool {
	return time.Since(it.start) >= it.limit
}

func (it *durationIter[T]) halt(ctx context.Context, reason string) {
	it.stopped = true
	it.workers.Cancel()
	it.opts.stopped(ctx, reason, logger.DurationFields("duration", time.Since(it.start)))
}

func (it *durationIter[T]) Close() error { return it.workers.Close() }

// Timeout yields values from p until none arrives within idle of the
// previous one. The first value may take up to initial; an initial of zero
// or less uses DefaultInitialTimeout.
//
// p is consumed by a background goroutine through a Queue. When a wait
// times out the goroutine is asked to stop; a producer that ends on its own
// ends the stream without a timeout.
func Timeout[T any](p *Pipeline[T], idle, initial time.Duration, opts ...Option) *Pipeline[T] {
	if initial <= 0 {
		initial = DefaultInitialTimeout
	}
	o := newOptions("timeout", opts)
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			q := NewQueue[T](o.capacity)
			return &timeoutIter[T]{
				q:       q,
				workers: startProducers(ctx, q, []*Pipeline[T]{p}, o.log),
				wait:    initial,
				idle:    idle,
				opts:    o,
			}
		},
	}
}

type timeoutIter[T any] struct {
	q       *Queue[T]
	workers *producers
	wait    time.Duration
	idle    time.Duration
	stopped bool
	opts    *options
}

func (it *timeoutIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.stopped {
		return zero, false, nil
	}
	item, ok, err := it.q.PopTimeout(ctx, it.wait)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		it.halt(ctx, ReasonTimeout)
		return zero, false, nil
	}
	switch item.Kind() {
	case KindEnd:
		it.halt(ctx, ReasonExhausted)
		return zero, false, nil
	case KindFailure:
		it.stopped = true
		it.opts.failed(ctx, item.Err())
		return zero, false, item.Err()
	}
	it.wait = it.idle
	it.opts.yielded(ctx)
	return item.Value(), true, nil
}

func (it *timeoutIter[T]) halt(ctx context.Context, reason string) {
	it.stopped = true
	it.workers.Cancel()
	it.opts.stopped(ctx, reason, logger.DurationFields("timeout", it.wait))
}

func (it *timeoutIter[T]) Close() error { return it.workers.Close() }
