package recast

// Stack is a growable LIFO used by the flood fills and contour walkers.
type Stack[T any] interface {
	Pop() T
	Push(value T)
	Len() int
	Empty() bool
	Clear()
	Index(index int) T
	SetByIndex(index int, value T)
	Resize(size int)
	Data() []T
}

func NewStack[T any](construct func() T) Stack[T] {
	return NewStackArray(construct, 0)
}

func NewStackArray[T any](construct func() T, count int) Stack[T] {
	s := &stack[T]{construct: construct}
	s.Resize(count)
	return s
}

type stack[T any] struct {
	data      []T
	construct func() T // zero value factory used by Resize
}

// Data exposes the backing slice; writes through it are visible to the stack.
func (s *stack[T]) Data() []T {
	return s.data
}

func (s *stack[T]) Clear() {
	s.data = s.data[:0]
}

func (s *stack[T]) Pop() T {
	e := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return e
}

func (s *stack[T]) Push(value T) {
	s.data = append(s.data, value)
}

func (s *stack[T]) Len() int {
	return len(s.data)
}

func (s *stack[T]) Empty() bool {
	return len(s.data) == 0
}

func (s *stack[T]) Index(index int) T {
	return s.data[index]
}

func (s *stack[T]) SetByIndex(index int, value T) {
	s.data[index] = value
}

func (s *stack[T]) Resize(size int) {
	if size <= len(s.data) {
		s.data = s.data[:size]
		return
	}
	for len(s.data) < size {
		s.data = append(s.data, s.construct())
	}
}
