package clock

import "time"

// Clock provides the time source for turn deadlines and timestamps so that
// timeouts can be driven deterministically in tests
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current UTC time
func (c *RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Deadline returns the instant a turn that started at start expires.
// A zero timeout means turns never expire and yields the zero time.
func Deadline(start time.Time, timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return start.Add(timeout)
}
