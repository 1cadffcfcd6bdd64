package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock abstracts time operations for testability.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Real is a Clock backed by the system clock.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time { return time.Now() }

// NewTimer returns a timer backed by the runtime.
func (Real) NewTimer(d time.Duration) clockwork.Timer {
	return clockwork.NewRealClock().NewTimer(d)
}

// Mock is a Clock that only moves when advanced.
type Mock struct {
	*clockwork.FakeClock
}

// NewMock returns a Mock frozen at t.
func NewMock(t time.Time) Mock {
	return Mock{FakeClock: clockwork.NewFakeClockAt(t)}
}
