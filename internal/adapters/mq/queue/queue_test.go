package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/rota/internal/domain/model"
)

func event(id string) model.MentorshipEvent {
	return model.MentorshipEvent{EventID: id, ExpertID: "expert", BeginnerID: "beginner", TaskID: "task-" + id}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if err := q.Enqueue(ctx, event("e1")); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("unexpected dequeue error: %v", err)
	}
	if got.EventID != "e1" || got.TaskID != "task-e1" {
		t.Errorf("unexpected event %+v", got)
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, id := range []string{"e1", "e2"} {
		if err := q.Enqueue(ctx, event(id)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	if err := q.Enqueue(ctx, event("e3")); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_FIFO(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for i := range 5 {
		if err := q.Enqueue(ctx, event(fmt.Sprint(i))); err != nil {
			t.Fatal(err)
		}
	}
	for i := range 5 {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got.EventID != fmt.Sprint(i) {
			t.Errorf("position %d: got %s", i, got.EventID)
		}
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	const producers, perProducer = 10, 100
	q := NewInMemoryQueue(WithCapacity(producers * perProducer))
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range perProducer {
				if err := q.Enqueue(ctx, event(fmt.Sprintf("%d-%d", p, j))); err != nil {
					t.Errorf("enqueue: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if l := q.Len(); l != producers*perProducer {
		t.Fatalf("expected %d events, got %d", producers*perProducer, l)
	}

	seen := make(map[string]bool)
	for range producers * perProducer {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if seen[got.EventID] {
			t.Errorf("event %s delivered twice", got.EventID)
		}
		seen[got.EventID] = true
	}
}

func TestInMemoryQueue_DequeueHonoursContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	if err := q.Enqueue(ctx, event("e1")); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if err := q.Enqueue(ctx, event("e2")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Buffered events drain before ErrClosed.
	got, err := q.Dequeue(ctx)
	if err != nil || got.EventID != "e1" {
		t.Errorf("expected buffered e1, got %+v %v", got, err)
	}
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after drain, got %v", err)
	}
}

func TestInMemoryQueue_EnqueueCancelled(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, event("e1")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if q.Len() != 0 {
		t.Error("cancelled enqueue must not buffer")
	}
}
