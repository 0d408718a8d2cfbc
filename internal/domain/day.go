package domain

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the ISO 8601 calendar-date layout used on the wire.
const DayLayout = "2006-01-02"

// DisplayLayout renders a day the way the rentals and search screens show it.
const DisplayLayout = "Mon, Jan 2, 2006"

// Day is a calendar day with no time-of-day or zone component.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the calendar day of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// MustDay builds a Day from its parts and panics if they do not name a real date.
// It is meant for tests and constants.
func MustDay(y int, m time.Month, d int) Day {
	day := Day{Year: y, Month: m, Day: d}
	if !day.Valid() {
		panic(fmt.Sprintf("invalid day %04d-%02d-%02d", y, m, d))
	}
	return day
}

var dayInputLayouts = []string{
	DayLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
}

// ParseDay parses user or wire input into a Day.
// Accepted forms: 2006-01-02, RFC 3339 timestamps (their date part), and 01/02/2006.
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Day{}, fmt.Errorf("empty calendar day")
	}
	for _, layout := range dayInputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DayOf(t), nil
		}
	}
	return Day{}, fmt.Errorf("invalid calendar day %q", s)
}

// NormalizeDay is the boundary guard for date input: anything that does not parse
// becomes the calendar day of now.
func NormalizeDay(input string, now time.Time) Day {
	d, err := ParseDay(input)
	if err != nil {
		return DayOf(now)
	}
	return d
}

// OrToday returns d when it names a real date, otherwise the calendar day of now.
func (d Day) OrToday(now time.Time) Day {
	if !d.Valid() {
		return DayOf(now)
	}
	return d
}

// Valid reports whether d names a real calendar date.
func (d Day) Valid() bool {
	if d.Year < 1 || d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return DayOf(d.Time()) == d
}

func (d Day) IsZero() bool { return d == Day{} }

// Time returns midnight UTC at the start of d.
func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Day) AddDays(n int) Day { return DayOf(d.Time().AddDate(0, 0, n)) }

func (d Day) Before(o Day) bool { return d.Time().Before(o.Time()) }

func (d Day) After(o Day) bool { return d.Time().After(o.Time()) }

// String returns the ISO 8601 form (2006-01-02).
func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Display returns the human form shown in lists (e.g. "Wed, Dec 24, 2025").
func (d Day) Display() string { return d.Time().Format(DisplayLayout) }

func (d Day) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Day) UnmarshalText(b []byte) error {
	t, err := time.Parse(DayLayout, string(b))
	if err != nil {
		return fmt.Errorf("invalid calendar day %q: %w", string(b), err)
	}
	*d = DayOf(t)
	return nil
}
