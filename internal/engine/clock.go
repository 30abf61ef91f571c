package engine

import "time"

// Clock abstracts time.Now() to allow deterministic testing.
// The resolver and dispatcher use it to anchor "today" for upcoming-window
// queries, and the reminder worker for local-time checks.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}
