// Package debounce provides a cancellable trailing-edge single-shot task.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs the most recently triggered function once the delay has
// elapsed without another Trigger. Each Trigger replaces the pending function.
type Debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	dispatch func(func())
	timer    *time.Timer
	fn       func()
	gen      uint64
}

// New creates a Debouncer that runs tasks on the timer goroutine
func New(delay time.Duration) *Debouncer {
	return NewWithDispatcher(delay, nil)
}

// NewWithDispatcher creates a Debouncer whose timer-fired tasks are handed to
// dispatch, e.g. to run them on a UI thread. Flush always runs inline.
func NewWithDispatcher(delay time.Duration, dispatch func(func())) *Debouncer {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &Debouncer{delay: delay, dispatch: dispatch}
}

// Delay returns the configured delay
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger (re)starts the timer with fn as the pending task
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.fn = fn
	d.timer = time.AfterFunc(d.delay, func() {
		d.dispatch(func() { d.fire(gen) })
	})
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.fn == nil {
		d.mu.Unlock()
		return
	}
	fn := d.take()
	d.mu.Unlock()

	fn()
}

// take clears the pending task and returns it. Callers hold mu.
func (d *Debouncer) take() func() {
	fn := d.fn
	d.fn = nil
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return fn
}

// Flush runs the pending task immediately on the calling goroutine.
// It reports whether a task was pending.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.fn == nil {
		d.mu.Unlock()
		return false
	}
	fn := d.take()
	d.mu.Unlock()

	fn()
	return true
}

// Cancel drops the pending task. It reports whether a task was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fn == nil {
		return false
	}
	d.take()
	return true
}

// Pending reports whether a task is waiting to run
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fn != nil
}
