// Package stack is a LIFO over a slice.
package stack

import (
	"browser-core/lib/ds/internal"

	"github.com/pkg/errors"
)

var ErrStackEmpty = errors.New("stack is empty")

type Stack[T any] struct{ items []T }

func New[T any](capacity uint) *Stack[T] {
	return &Stack[T]{items: make([]T, 0, capacity)}
}

func (s *Stack[T]) Len() uint { return uint(len(s.items)) }

func (s *Stack[T]) Push(v T) { s.items = append(s.items, v) }

func (s *Stack[T]) Pop() (T, error) {
	v, err := s.Peek()
	if err != nil {
		return v, err
	}
	s.items[len(s.items)-1] = internal.Zero[T]()
	s.items = s.items[:len(s.items)-1]
	return v, nil
}

func (s *Stack[T]) Peek() (T, error) {
	if len(s.items) == 0 {
		return internal.Zero[T](), ErrStackEmpty
	}
	return s.items[len(s.items)-1], nil
}

// Bottom returns a copy of the items, the bottom of the stack first.
func (s *Stack[T]) Bottom() []T {
	return append([]T(nil), s.items...)
}
