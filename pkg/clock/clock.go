// Package clock lets components take time from an injected source so
// heartbeats, directory ticks and command timeouts can be driven by a
// fake clock in tests.
package clock

import "time"

type Clock interface {
	Now() time.Time
	// After receives once d has elapsed. If d <= 0 it receives immediately.
	After(d time.Duration) <-chan time.Time
	// AfterFunc calls f once d has elapsed. The returned Timer has a nil C.
	AfterFunc(d time.Duration, f func()) *Timer
	// NewTicker panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers ticks on C, a channel of capacity 1. Late ticks are dropped.
type Ticker struct {
	C <-chan time.Time

	stop  func()
	reset func(time.Duration)
}

func (t *Ticker) Stop() { t.stop() }

func (t *Ticker) Reset(d time.Duration) { t.reset(d) }

type Timer struct {
	C <-chan time.Time

	stop func() bool
}

// Stop reports whether the call prevented the timer from firing.
func (t *Timer) Stop() bool { return t.stop() }

// UnixMilli is the store timestamp unit.
func UnixMilli(c Clock) int64 {
	return c.Now().UnixMilli()
}
