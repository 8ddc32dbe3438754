// Package autosave coalesces graph mutations into debounced batch saves.
package autosave

import (
	"sync"
	"time"
)

// Scheduler defers a callback by a delay. The returned stop function
// reports whether it prevented the callback from running.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) func() bool
}

// TimerScheduler runs callbacks on wall-clock timers.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(delay time.Duration, fn func()) func() bool {
	timer := time.AfterFunc(delay, fn)

	return timer.Stop
}

// ManualScheduler holds the most recent callback until Fire is called.
// Tests use it to step through debounce windows without sleeping.
type ManualScheduler struct {
	mu    sync.Mutex
	gen   int
	fn    func()
	delay time.Duration
}

func (m *ManualScheduler) Schedule(delay time.Duration, fn func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	generation := m.gen
	m.fn = fn
	m.delay = delay

	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.gen != generation || m.fn == nil {
			return false
		}

		m.fn = nil

		return true
	}
}

// Fire runs the pending callback, if any, and reports whether one ran.
func (m *ManualScheduler) Fire() bool {
	m.mu.Lock()
	fn := m.fn
	m.fn = nil
	m.mu.Unlock()

	if fn == nil {
		return false
	}

	fn()

	return true
}

// Pending reports whether a callback is waiting to fire.
func (m *ManualScheduler) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.fn != nil
}

// LastDelay returns the delay requested by the most recent Schedule call.
func (m *ManualScheduler) LastDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.delay
}
