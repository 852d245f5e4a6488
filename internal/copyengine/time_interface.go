package copyengine

import "time"

// TimeProvider provides the clock used for speed estimation.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider implements TimeProvider using the wall clock.
type RealTimeProvider struct{}

// Now returns the current time.
func (RealTimeProvider) Now() time.Time {
	return time.Now()
}
