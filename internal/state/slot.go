// Package state holds the single-writer slots that replace shared mutable
// globals. Each slot has exactly one writing component; every other component
// reads immutable snapshots and waits on change broadcasts.
package state

import (
	"sync"
	"sync/atomic"
)

// Slot is an atomically replaced value with a change broadcast. Store replaces
// the whole value; readers never observe a partially written T.
type Slot[T any] struct {
	value   atomic.Pointer[T]
	version atomic.Uint64

	mu      sync.Mutex
	changed chan struct{}
}

// NewSlot creates a slot holding initial, which may be nil.
func NewSlot[T any](initial *T) *Slot[T] {
	s := &Slot[T]{changed: make(chan struct{})}
	s.value.Store(initial)
	return s
}

// Load returns the current snapshot. The caller must not mutate it.
func (s *Slot[T]) Load() *T {
	return s.value.Load()
}

// Version increases by one on every Store.
func (s *Slot[T]) Version() uint64 {
	return s.version.Load()
}

// Store replaces the snapshot and wakes everyone waiting on Changed.
func (s *Slot[T]) Store(v *T) {
	s.mu.Lock()
	s.value.Store(v)
	s.version.Add(1)
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// Changed returns a channel that is closed on the next Store.
func (s *Slot[T]) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}
