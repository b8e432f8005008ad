package utils

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of work into one delayed execution. Each
// Trigger supersedes the previous pending function, so the last write wins
// unless it was cancelled first.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	seq   uint64
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn to run after the debounce delay, replacing any
// previously scheduled function that has not fired yet.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		superseded := seq != d.seq
		d.mu.Unlock()
		if superseded {
			return
		}
		fn()
	})
}

// Cancel discards any pending execution.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
