// Package debounce coalesces rapid repeated triggers into the latest one.
package debounce

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Task is a scheduled unit of work that can be cancelled.
//
// Cancelling a task that has not fired keeps it from running. Cancelling a
// task that already fired does not stop its work, but Deliver will no longer
// invoke completions.
type Task struct {
	mu        sync.Mutex
	timer     clock.Timer
	fired     bool
	cancelled bool
}

// Cancel cancels t and reports whether it was stopped before firing.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	t.cancelled = true
	timer, fired := t.timer, t.fired
	t.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	return !fired
}

// Cancelled reports whether t was cancelled.
func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Deliver runs fn unless t was cancelled and reports whether it ran.
func (t *Task) Deliver(fn func()) bool {
	if t.Cancelled() {
		return false
	}
	fn()
	return true
}

func (t *Task) claim() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.fired = true
	return true
}

// Debouncer runs only the most recent of a burst of triggers once the delay
// has elapsed without a newer trigger.
type Debouncer struct {
	clock clock.WithDelayedExecution
	delay time.Duration

	mu      sync.Mutex
	pending *Task
}

// New returns a Debouncer firing after delay.
func New(c clock.WithDelayedExecution, delay time.Duration) *Debouncer {
	return &Debouncer{clock: c, delay: delay}
}

// Trigger schedules fn and cancels the previously scheduled task. fn runs on
// its own goroutine.
func (d *Debouncer) Trigger(fn func(*Task)) *Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Cancel()
	}
	t := &Task{}
	timer := d.clock.AfterFunc(d.delay, func() {
		if t.claim() {
			go fn(t)
		}
	})
	t.mu.Lock()
	t.timer = timer
	t.mu.Unlock()
	d.pending = t
	return t
}

// Stop cancels the pending task, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Cancel()
		d.pending = nil
	}
}
