package pipeline

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/kbukum/pipecat/logger"
)

// Queue is a FIFO of Items connecting producer goroutines to a single
// consumer. Push is safe from any number of goroutines; Pop and PopTimeout
// must only be called from one.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []Item[T]
	capacity int
	ready    chan struct{}
	space    chan struct{}
}

// NewQueue creates a queue. A capacity of zero or less makes it unbounded;
// otherwise Push blocks while the queue is full.
func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Push appends item. It only blocks on a bounded queue that is full, and
// returns ctx.Err() if ctx ends first.
func (q *Queue[T]) Push(ctx context.Context, item Item[T]) error {
	for {
		q.mu.Lock()
		if q.capacity <= 0 || len(q.items) < q.capacity {
			q.items = append(q.items, item)
			room := q.capacity > 0 && len(q.items) < q.capacity
			q.mu.Unlock()
			signal(q.ready)
			if room {
				// Pass the wake-up on to any other blocked producer.
				signal(q.space)
			}
			return nil
		}
		q.mu.Unlock()

		select {
		case <-q.space:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pop removes the oldest item, blocking until one is available or ctx ends.
func (q *Queue[T]) Pop(ctx context.Context) (Item[T], error) {
	item, _, err := q.pop(ctx, nil)
	return item, err
}

// PopTimeout is Pop with a deadline: ok is false when nothing arrived
// within timeout. A timeout is not an error.
func (q *Queue[T]) PopTimeout(ctx context.Context, timeout time.Duration) (item Item[T], ok bool, err error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	return q.pop(ctx, timer.C)
}

func (q *Queue[T]) pop(ctx context.Context, deadline <-chan time.Time) (Item[T], bool, error) {
	for {
		if item, ok := q.tryPop(); ok {
			return item, true, nil
		}
		select {
		case <-q.ready:
		case <-deadline:
			item, ok := q.tryPop()
			return item, ok, nil
		case <-ctx.Done():
			return Item[T]{}, false, ctx.Err()
		}
	}
}

func (q *Queue[T]) tryPop() (Item[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item[T]{}, false
	}
	item := q.items[0]
	q.items[0] = Item[T]{}
	q.items = q.items[1:]
	if q.capacity > 0 {
		signal(q.space)
	}
	return item, true
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Send pulls values from source one at a time and pushes each onto q in
// arrival order.
//
// ctx is the shutdown signal: it is checked after every push, and once it
// is cancelled Send returns ctx.Err() without pushing the sentinel. When
// source is exhausted Send pushes exactly one EndOfStream and returns nil.
// When source fails Send pushes one Failure carrying the error and
// returns it. Send does not close source.
func Send[T any](ctx context.Context, source Iterator[T], q *Queue[T]) error {
	for {
		val, ok, err := source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if pushErr := q.Push(ctx, Failure[T](err)); pushErr != nil {
				return pushErr
			}
			return err
		}
		if !ok {
			return q.Push(ctx, EndOfStream[T]())
		}
		if err := q.Push(ctx, ValueOf(val)); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Receive returns an iterator over the values on q that ends at the first
// sentinel. A Failure item is returned as the error of that Next call and
// also ends the stream. Closing the iterator does not affect producers.
func Receive[T any](q *Queue[T]) Iterator[T] {
	return newReceiveIter(q, 1, nil)
}

type receiveIter[T any] struct {
	q         *Queue[T]
	remaining int
	closer    func() error
}

func newReceiveIter[T any](q *Queue[T], producers int, closer func() error) *receiveIter[T] {
	return &receiveIter[T]{q: q, remaining: producers, closer: closer}
}

func (it *receiveIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	for it.remaining > 0 {
		item, err := it.q.Pop(ctx)
		if err != nil {
			return zero, false, err
		}
		switch item.Kind() {
		case KindValue:
			return item.Value(), true, nil
		case KindEnd:
			it.remaining--
		case KindFailure:
			it.remaining--
			return zero, false, item.Err()
		}
	}
	return zero, false, nil
}

func (it *receiveIter[T]) Close() error {
	if it.closer != nil {
		return it.closer()
	}
	return nil
}

// --- Background producers ---

// producers runs one Send goroutine per source against a shared queue.
type producers struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	errs   []error
	err    error
}

// startProducers creates one iterator per pipeline under a cancellable
// child of ctx and starts a goroutine sending it into q. Each goroutine
// closes its own iterator when Send returns.
func startProducers[T any](ctx context.Context, q *Queue[T], sources []*Pipeline[T], log *logger.Logger) *producers {
	workCtx, cancel := context.WithCancel(ctx)
	p := &producers{cancel: cancel, errs: make([]error, len(sources))}

	for i, src := range sources {
		iter := src.create(workCtx)
		p.wg.Add(1)
		go func(i int, iter Iterator[T]) {
			defer p.wg.Done()
			err := Send(workCtx, iter, q)
			if err != nil && workCtx.Err() == nil {
				log.Debug("producer ended with error", logger.Fields(
					"producer", i,
					logger.FieldError, err.Error(),
				))
			}
			p.errs[i] = iter.Close()
		}(i, iter)
	}
	return p
}

// Cancel raises the shutdown signal without waiting.
func (p *producers) Cancel() {
	p.cancel()
}

// Close raises the shutdown signal, waits for every producer to return and
// reports the errors from closing their sources.
func (p *producers) Close() error {
	p.once.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.err = stderrors.Join(p.errs...)
	})
	return p.err
}
