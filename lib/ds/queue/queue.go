package queue

import "errors"

var ErrQueueEmpty = errors.New("queue is empty")

// Queue is a first-in first-out collection.
type Queue[T any] interface {
	// Enqueue appends v. It reports false when the queue has no room left.
	Enqueue(v T) bool
	Dequeue() (T, error)
	Peek() (T, error)
	Len() uint
}
