package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type snapshot struct {
	items []int
}

func TestSlot_LoadStore(t *testing.T) {
	s := NewSlot[snapshot](nil)
	assert.Nil(t, s.Load())
	assert.Zero(t, s.Version())

	first := &snapshot{items: []int{1, 2}}
	s.Store(first)
	assert.Same(t, first, s.Load())
	assert.Equal(t, uint64(1), s.Version())

	second := &snapshot{items: []int{3}}
	s.Store(second)
	assert.Same(t, second, s.Load())
	assert.Equal(t, uint64(2), s.Version())
}

func TestSlot_ChangedBroadcast(t *testing.T) {
	s := NewSlot(&snapshot{})
	a := s.Changed()
	b := s.Changed()

	select {
	case <-a:
		t.Fatal("changed closed before any store")
	default:
	}

	s.Store(&snapshot{items: []int{1}})

	for _, ch := range []<-chan struct{}{a, b} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("waiter was not woken")
		}
	}

	// A fresh channel is armed for the next store.
	select {
	case <-s.Changed():
		t.Fatal("new changed channel should be open")
	default:
	}
}
