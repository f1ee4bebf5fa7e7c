package queue

import "browser-core/lib/ds/internal"

// Ring is a queue of fixed capacity backed by a circular buffer.
type Ring[T any] struct {
	buf        []T
	head, tail uint

	count uint
}

var _ Queue[int] = (*Ring[int])(nil)

func NewRing[T any](capacity uint) *Ring[T] {
	return &Ring[T]{buf: make([]T, capacity)}
}

func (r *Ring[T]) Enqueue(v T) bool {
	if r.count == r.Cap() {
		return false
	}

	r.buf[r.tail] = v
	r.tail = r.advance(r.tail)
	r.count++

	return true
}

func (r *Ring[T]) Dequeue() (T, error) {
	if r.count == 0 {
		return internal.Zero[T](), ErrQueueEmpty
	}

	v := r.buf[r.head]
	// Drop the reference so the element can be collected.
	r.buf[r.head] = internal.Zero[T]()
	r.head = r.advance(r.head)
	r.count--

	return v, nil
}

func (r *Ring[T]) Peek() (T, error) {
	if r.count == 0 {
		return internal.Zero[T](), ErrQueueEmpty
	}
	return r.buf[r.head], nil
}

func (r *Ring[T]) Len() uint { return r.count }

func (r *Ring[T]) Cap() uint { return uint(len(r.buf)) }

// Drain dequeues every element, oldest first, handing each to fn.
func (r *Ring[T]) Drain(fn func(v T)) {
	for r.count > 0 {
		v, _ := r.Dequeue()
		fn(v)
	}
}

func (r *Ring[T]) advance(n uint) uint {
	return (n + 1) % uint(len(r.buf))
}
