package pipeline

import (
	"context"
)

// Multiplex interleaves values from several pipelines as they arrive.
//
// Each source gets its own goroutine feeding one shared queue. Values from
// one source keep their relative order; values from different sources are
// delivered first come, first served. The stream ends once every source
// has ended, so it always terminates when all sources are finite.
//
// A source failure is returned from Next and ends only that source: the
// remaining sources keep being delivered on later calls. Close cancels all
// producers and waits for them to return.
func Multiplex[T any](sources []*Pipeline[T], opts ...Option) *Pipeline[T] {
	return multiplex(sources, len(sources), newOptions("multiplex", opts))
}

// MultiplexFirst is Multiplex with the legacy termination rule: the stream
// ends at the first sentinel on the shared queue, i.e. as soon as any one
// source is exhausted. Values still queued or produced by the other sources
// are discarded when the iterator is closed.
func MultiplexFirst[T any](sources []*Pipeline[T], opts ...Option) *Pipeline[T] {
	n := 1
	if len(sources) == 0 {
		n = 0
	}
	return multiplex(sources, n, newOptions("multiplex", opts))
}

func multiplex[T any](sources []*Pipeline[T], sentinels int, o *options) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			q := NewQueue[T](o.capacity)
			workers := startProducers(ctx, q, sources, o.log)
			return &multiplexIter[T]{
				recv:    newReceiveIter(q, sentinels, workers.Close),
				opts:    o,
				workers: workers,
			}
		},
	}
}

type multiplexIter[T any] struct {
	recv    *receiveIter[T]
	opts    *options
	workers *producers
	done    bool
}

func (it *multiplexIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, nil
	}
	val, ok, err := it.recv.Next(ctx)
	if err != nil {
		if ctx.Err() == nil {
			it.opts.failed(ctx, err)
		}
		return zero, false, err
	}
	if !ok {
		it.done = true
		it.workers.Cancel()
		it.opts.stopped(ctx, "exhausted")
		return zero, false, nil
	}
	it.opts.yielded(ctx)
	return val, true, nil
}

func (it *multiplexIter[T]) Close() error {
	return it.recv.Close()
}
