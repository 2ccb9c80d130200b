package search

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Debouncer delays a call until input has been quiet for the delay. Each
// Call cancels the pending one; a callback can ask whether it is still the
// latest with Current.
type Debouncer struct {
	clock clockwork.Clock
	delay time.Duration

	mu    sync.Mutex
	gen   uint64
	timer clockwork.Timer
}

// NewDebouncer creates a Debouncer.
func NewDebouncer(delay time.Duration, clock clockwork.Clock) *Debouncer {
	return &Debouncer{clock: clock, delay: delay}
}

// Call schedules fn after the delay, replacing any pending call, and returns
// the generation passed to fn.
func (d *Debouncer) Call(fn func(gen uint64)) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { fn(gen) })
	return gen
}

// Current reports whether gen belongs to the most recent Call.
func (d *Debouncer) Current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.gen
}

// Stop cancels the pending call, if any, and invalidates running ones.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}
