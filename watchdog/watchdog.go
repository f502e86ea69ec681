// Package watchdog provides a single-shot, auto-renewing inactivity timer
// that detects silence from a transport.
package watchdog

import (
	"sync"
	"time"
)

// Watchdog fires a callback when no activity has been recorded for the
// configured timeout. Reset re-arms the timer from now; any inbound message
// or pong should call Reset. A timer superseded by Reset or Stop never fires
// the callback.
//
// time.Now carries a monotonic reading, so wall clock adjustments cannot
// shorten or stretch the timeout.
type Watchdog struct {
	mu         sync.Mutex
	timeout    time.Duration
	lastActive time.Time
	timer      *time.Timer
	gen        uint64

	onTimeout func(lastActive time.Time)
}

// New creates a watchdog with the given timeout. The callback receives the
// time of the last recorded activity.
func New(timeout time.Duration, onTimeout func(lastActive time.Time)) *Watchdog {
	return &Watchdog{
		timeout:   timeout,
		onTimeout: onTimeout,
	}
}

// Start arms the timer for timeout from now, recording the current time as
// the last activity.
func (w *Watchdog) Start() {
	w.Reset()
}

// Reset re-arms the timer for timeout from now, recording the current time
// as the last activity. Safe to call whether or not a timer is pending.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActive = time.Now()
	w.gen++
	gen := w.gen
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.timeout, func() { w.fire(gen) })
}

// Stop cancels the pending timer, if any. Idempotent.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// LastActive returns the time of the most recent Start or Reset.
func (w *Watchdog) LastActive() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

// Timeout returns the configured inactivity bound.
func (w *Watchdog) Timeout() time.Duration {
	return w.timeout
}

func (w *Watchdog) fire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	last := w.lastActive
	onTimeout := w.onTimeout
	w.mu.Unlock()

	if onTimeout != nil {
		onTimeout(last)
	}
}
