// Package optimistic applies local mutations immediately and reconciles
// them against the authoritative outcome, so UIs stay responsive while a
// round trip is in flight.
package optimistic

import (
	"context"
	"sync"
)

// Mutation changes a local value and confirms it remotely. Apply must be
// pure: it receives the current value and returns the next one.
type Mutation[T any] struct {
	Apply  func(current T) T
	Commit func(ctx context.Context) error
}

// Store guards a single value that mutations run against. Every write
// bumps an internal version so a failed commit only rolls back when no
// later write landed in between.
type Store[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
}

func NewStore[T any](initial T) *Store[T] {
	return &Store[T]{value: initial}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Reconcile replaces the local value with the authoritative one.
func (s *Store[T]) Reconcile(authoritative T) {
	s.mu.Lock()
	s.value = authoritative
	s.version++
	s.mu.Unlock()
}

// Update applies a plain local change with no commit step.
func (s *Store[T]) Update(fn func(current T) T) {
	s.mu.Lock()
	s.value = fn(s.value)
	s.version++
	s.mu.Unlock()
}

// Do applies the mutation locally, then commits. On commit failure the
// value present before the mutation is restored exactly, unless a later
// write already replaced the optimistic value.
func (s *Store[T]) Do(ctx context.Context, m Mutation[T]) error {
	s.mu.Lock()
	prior := s.value
	s.value = m.Apply(s.value)
	s.version++
	applied := s.version
	s.mu.Unlock()

	if m.Commit == nil {
		return nil
	}

	err := m.Commit(ctx)
	if err == nil {
		return nil
	}

	s.mu.Lock()
	if s.version == applied {
		s.value = prior
		s.version++
	}
	s.mu.Unlock()

	return err
}
