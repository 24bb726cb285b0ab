package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := NewQueue[int](0)
	for i := 1; i <= 3; i++ {
		if err := q.Push(ctx, ValueOf(i)); err != nil {
			t.Fatal(err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}
	for want := 1; want <= 3; want++ {
		item, err := q.Pop(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if item.Value() != want {
			t.Errorf("Pop() = %d, want %d", item.Value(), want)
		}
	}
}

func TestQueue_PopTimeout(t *testing.T) {
	q := NewQueue[int](0)
	start := time.Now()
	_, ok, err := q.PopTimeout(context.Background(), 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("PopTimeout on empty queue reported an item")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("PopTimeout returned after %v, before its timeout", elapsed)
	}
}

func TestQueue_PopWakesOnPush(t *testing.T) {
	q := NewQueue[int](0)
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.Push(context.Background(), ValueOf(42))
	}()
	item, ok, err := q.PopTimeout(context.Background(), time.Second)
	if err != nil || !ok || item.Value() != 42 {
		t.Fatalf("PopTimeout: item=%v ok=%v err=%v", item.Value(), ok, err)
	}
}

func TestQueue_PopCancelled(t *testing.T) {
	q := NewQueue[int](0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Pop() err = %v, want DeadlineExceeded", err)
	}
}

func TestQueue_BoundedPushBlocks(t *testing.T) {
	ctx := context.Background()
	q := NewQueue[int](1)
	if err := q.Push(ctx, ValueOf(1)); err != nil {
		t.Fatal(err)
	}

	pushed := make(chan error, 1)
	go func() { pushed <- q.Push(ctx, ValueOf(2)) }()

	select {
	case <-pushed:
		t.Fatal("Push on a full queue did not block")
	case <-time.After(30 * time.Millisecond):
	}

	if item, _ := q.Pop(ctx); item.Value() != 1 {
		t.Fatalf("Pop() = %d, want 1", item.Value())
	}
	select {
	case err := <-pushed:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Push was not released by Pop")
	}
	if item, _ := q.Pop(ctx); item.Value() != 2 {
		t.Errorf("Pop() = %d, want 2", item.Value())
	}
}

func TestQueue_BoundedPushCancelled(t *testing.T) {
	q := NewQueue[int](1)
	_ = q.Push(context.Background(), ValueOf(1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Push(ctx, ValueOf(2)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Push() err = %v, want DeadlineExceeded", err)
	}
}

func TestQueue_ManyProducers(t *testing.T) {
	ctx := context.Background()
	q := NewQueue[int](2)
	const producers, each = 4, 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				_ = q.Push(ctx, ValueOf(p*1000+i))
			}
		}(p)
	}

	last := map[int]int{}
	for n := 0; n < producers*each; n++ {
		item, ok, err := q.PopTimeout(ctx, time.Second)
		if err != nil || !ok {
			t.Fatalf("pop %d: ok=%v err=%v", n, ok, err)
		}
		p, i := item.Value()/1000, item.Value()%1000
		if prev, seen := last[p]; seen && i <= prev {
			t.Fatalf("producer %d out of order: %d after %d", p, i, prev)
		}
		last[p] = i
	}
	wg.Wait()
}

func TestSend_PushesOneSentinel(t *testing.T) {
	ctx := context.Background()
	q := NewQueue[int](0)
	if err := Send(ctx, FromSlice([]int{1, 2, 3}).Iter(ctx), q); err != nil {
		t.Fatal(err)
	}

	var kinds []Kind
	for q.Len() > 0 {
		item, _ := q.Pop(ctx)
		kinds = append(kinds, item.Kind())
	}
	want := []Kind{KindValue, KindValue, KindValue, KindEnd}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestSend_ShutdownSkipsSentinel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := NewQueue[int](0)

	err := Send(ctx, FromSlice([]int{1, 2, 3}).Iter(context.Background()), q)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Send() = %v, want context.Canceled", err)
	}
	// The record already pulled is delivered; no sentinel follows it.
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
	if item, _ := q.Pop(context.Background()); item.Kind() != KindValue {
		t.Errorf("queued item kind = %s, want value", item.Kind())
	}
}

func TestSend_ForwardsFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("device unplugged")
	q := NewQueue[int](0)

	if err := Send(ctx, failingSource(boom, 1).Iter(ctx), q); !errors.Is(err, boom) {
		t.Fatalf("Send() = %v, want %v", err, boom)
	}
	first, _ := q.Pop(ctx)
	second, _ := q.Pop(ctx)
	if first.Kind() != KindValue || second.Kind() != KindFailure || !errors.Is(second.Err(), boom) {
		t.Errorf("queued items = %s, %s(%v)", first.Kind(), second.Kind(), second.Err())
	}
	if q.Len() != 0 {
		t.Errorf("unexpected items after failure: %d", q.Len())
	}
}

func TestReceive(t *testing.T) {
	ctx := context.Background()
	q := NewQueue[int](0)
	go func() { _ = Send(ctx, FromSlice([]int{1, 2, 3}).Iter(ctx), q) }()

	got, err := Collect(ctx, From(Receive(q)))
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{1, 2, 3}) {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestReceive_NoHangAfterSentinel(t *testing.T) {
	ctx := context.Background()
	q := NewQueue[int](0)
	_ = q.Push(ctx, EndOfStream[int]())

	iter := Receive(q)
	defer iter.Close()
	for i := 0; i < 3; i++ {
		done := make(chan bool, 1)
		go func() {
			_, ok, _ := iter.Next(ctx)
			done <- ok
		}()
		select {
		case ok := <-done:
			if ok {
				t.Fatal("Next after sentinel yielded a value")
			}
		case <-time.After(time.Second):
			t.Fatalf("Next #%d after sentinel blocked", i+1)
		}
	}
}

func TestReceive_Failure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	q := NewQueue[int](0)
	_ = q.Push(ctx, ValueOf(1))
	_ = q.Push(ctx, Failure[int](boom))

	got, err := Collect(ctx, From(Receive(q)))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if !intSliceEqual(got, []int{1}) {
		t.Errorf("got %v, want [1]", got)
	}
}
