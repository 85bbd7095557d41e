package queue

import "errors"

// Sentinel errors returned by Enqueue and Dequeue.
var (
	ErrFull   = errors.New("queue is full")
	ErrClosed = errors.New("queue is closed")
)
