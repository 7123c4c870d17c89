package queue

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_PushPopOrder(t *testing.T) {
	q := New[int](10)

	for i := 0; i < 5; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}

	if got := q.Stats().Len; got != 5 {
		t.Errorf("Len = %d, want 5", got)
	}

	for i := 0; i < 5; i++ {
		val, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("popped %d, want %d", val, i)
		}
	}

	if got := q.Stats(); got.Pushed != 5 || got.Popped != 5 || got.Len != 0 {
		t.Errorf("Stats() = %+v, want 5 pushed, 5 popped, empty", got)
	}
}

func TestQueue_GrowsBeforeFull(t *testing.T) {
	q := New[int](4)

	for i := 0; i < 1000; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}

	stats := q.Stats()
	if stats.Len != 1000 {
		t.Errorf("Len = %d, want 1000", stats.Len)
	}
	if stats.Capacity <= 1000 {
		t.Errorf("Capacity = %d, want > 1000", stats.Capacity)
	}
	if stats.Resizes < 3 {
		t.Errorf("Resizes = %d, expected several", stats.Resizes)
	}

	for i := 0; i < 1000; i++ {
		val, _ := q.Pop()
		if val != i {
			t.Fatalf("popped %d, want %d", val, i)
		}
	}
}

func TestQueue_GrowAfterWrap(t *testing.T) {
	q := New[int](10)

	// Move head forward so the ring wraps before it grows.
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	for i := 0; i < 5; i++ {
		q.Pop()
	}
	for i := 0; i < 20; i++ {
		q.Push(100 + i)
	}

	for i := 0; i < 20; i++ {
		val, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() returned false for item %d", i)
		}
		if val != 100+i {
			t.Errorf("popped %d, want %d", val, 100+i)
		}
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := New[string](2)
	got := make(chan string, 1)

	go func() {
		val, ok := q.Pop()
		if ok {
			got <- val
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push("hello")

	select {
	case val := <-got:
		if val != "hello" {
			t.Errorf("popped %q, want %q", val, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestQueue_CloseWakesPop(t *testing.T) {
	q := New[int](2)
	done := make(chan bool, 1)

	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop on closed empty queue should return ok=false")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake Pop")
	}

	if q.Push(1) {
		t.Error("Push after Close should return false")
	}
}

func TestQueue_CloseKeepsPending(t *testing.T) {
	q := New[int](4)
	q.Push(1)
	q.Push(2)
	q.Close()

	for _, want := range []int{1, 2} {
		val, ok := q.Pop()
		if !ok || val != want {
			t.Errorf("Pop() = %d, %v; want %d, true", val, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop after draining closed queue should return false")
	}
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := New[int](8)
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}

	received := 0
	done := make(chan struct{})
	go func() {
		for {
			if _, ok := q.Pop(); !ok {
				close(done)
				return
			}
			received++
		}
	}()

	wg.Wait()
	q.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not finish")
	}

	if received != producers*perProducer {
		t.Errorf("received %d, want %d", received, producers*perProducer)
	}

	stats := q.Stats()
	if stats.Pushed != stats.Popped {
		t.Errorf("Pushed = %d, Popped = %d; want equal", stats.Pushed, stats.Popped)
	}
}
