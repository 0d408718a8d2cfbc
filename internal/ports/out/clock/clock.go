package clock

import "time"

// Clock provides the current time. "Today" for searches and date fallback is derived from it,
// so tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}
