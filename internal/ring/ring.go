// Package ring provides Stack, a fixed-capacity rolling buffer that always
// holds at least one element and exposes the most recent one under a lock.
//
// Producers Append without ever blocking on consumers; consumers read Latest
// without ever waiting for producers. When full, Append overwrites the
// oldest element. There is no backpressure and no notification.
package ring

import "sync"

// Stack is a thread-safe rolling buffer. The zero value is not usable; call New.
type Stack[T any] struct {
	mu    sync.Mutex
	items []T
	head  int // next write position
	count int
}

// New returns a Stack of the given capacity seeded with initial, so Latest
// is defined from the start. Capacities below 1 are treated as 1.
func New[T any](capacity int, initial T) *Stack[T] {
	if capacity < 1 {
		capacity = 1
	}
	s := &Stack[T]{items: make([]T, capacity)}
	s.Append(initial)
	return s
}

// Append adds v, discarding the oldest element when the stack is full.
func (s *Stack[T]) Append(v T) {
	s.mu.Lock()
	s.items[s.head] = v
	s.head = (s.head + 1) % len(s.items)
	if s.count < len(s.items) {
		s.count++
	}
	s.mu.Unlock()
}

// Latest returns the most recently appended element.
func (s *Stack[T]) Latest() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[(s.head-1+len(s.items))%len(s.items)]
}

// Replace drops all elements and leaves v as the only one.
func (s *Stack[T]) Replace(v T) {
	s.mu.Lock()
	var zero T
	for i := range s.items {
		s.items[i] = zero
	}
	s.items[0] = v
	s.head = 1 % len(s.items)
	s.count = 1
	s.mu.Unlock()
}

// Snapshot returns a copy of the elements, oldest first.
func (s *Stack[T]) Snapshot() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, s.count)
	start := (s.head - s.count + len(s.items)) % len(s.items)
	for i := 0; i < s.count; i++ {
		out[i] = s.items[(start+i)%len(s.items)]
	}
	return out
}

// Len returns the number of held elements; never less than 1.
func (s *Stack[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Cap returns the fixed capacity.
func (s *Stack[T]) Cap() int { return len(s.items) }
