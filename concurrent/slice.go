package concurrent

import (
	"context"
	"sync"
)

// Slice is an append-only log safe for concurrent writers. Readers get copies
// and can block until enough entries were written.
type Slice[T any] struct {
	mu      sync.Mutex
	items   []T
	changed chan struct{}
}

func NewSlice[T any]() *Slice[T] {
	return &Slice[T]{changed: make(chan struct{})}
}

// Append adds v in one step and wakes up the waiters.
func (s *Slice[T]) Append(v ...T) {
	if len(v) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, v...)
	close(s.changed)
	s.changed = make(chan struct{})
}

// Get returns a copy of the entries, never nil.
func (s *Slice[T]) Get() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(make([]T, 0, len(s.items)), s.items...)
}

func (s *Slice[T]) Length() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Drain empties the slice and returns what it held.
func (s *Slice[T]) Drain() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.items
	s.items = nil
	if out == nil {
		out = []T{}
	}
	return out
}

func (s *Slice[T]) Clear() {
	s.Drain()
}

// WaitLength blocks until at least n entries were appended since the last drain, or ctx is done.
func (s *Slice[T]) WaitLength(ctx context.Context, n int) error {
	for {
		s.mu.Lock()
		if len(s.items) >= n {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
