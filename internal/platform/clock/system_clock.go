package clock

import "time"

// SystemClock returns the current wall-clock time in the local zone, so that
// "today" is the user's calendar day rather than UTC's.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now() }
