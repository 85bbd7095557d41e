package queue

import (
	"context"
	"sync"

	"github.com/okian/rota/internal/domain/model"
	"github.com/okian/rota/pkg/metrics"
)

const defaultCapacity = 10000

// Event is the unit of work carried by the queue.
type Event = model.MentorshipEvent

// Queue is a bounded FIFO of mentorship events.
type Queue interface {
	// Enqueue adds e without blocking. It returns ErrFull when the buffer
	// has no room and ErrClosed after Close.
	Enqueue(ctx context.Context, e Event) error

	// Dequeue blocks until an event is available, ctx is done, or the
	// queue is closed and drained.
	Dequeue(ctx context.Context) (Event, error)

	Len() int
	Capacity() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue is a channel-backed Queue.
type InMemoryQueue struct {
	events   chan Event
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue with the given options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("cancelled")
		return err
	}

	// The read lock keeps Close from closing the channel under a send.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}

	select {
	case q.events <- e:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.events))
		return nil
	default:
		metrics.RecordQueueEnqueueError("full")
		return ErrFull
	}
}

// Dequeue implements Queue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) (Event, error) {
	select {
	case e, ok := <-q.events:
		if !ok {
			return Event{}, ErrClosed
		}
		metrics.RecordQueueDequeue()
		metrics.UpdateQueueSize(len(q.events))
		return e, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Len implements Queue.
func (q *InMemoryQueue) Len() int {
	return len(q.events)
}

// Capacity implements Queue.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops accepting events. Buffered events remain available to Dequeue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.events)
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
