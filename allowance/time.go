package allowance

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Calendar date (UTC midnight), usable as map key
// =============================================================================

// Day is a calendar date with no time-of-day component. Always construct
// through NewDay, ParseDay or the arithmetic methods so that two Days for
// the same date compare equal and hash identically as map keys.
type Day struct {
	Time time.Time
}

// NewDay creates a Day for the given calendar date.
func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a date in "2006-01-02" format.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return NewDay(t.Year(), t.Month(), t.Day()), nil
}

// Comparison
func (d Day) Before(other Day) bool        { return d.Time.Before(other.Time) }
func (d Day) After(other Day) bool         { return d.Time.After(other.Time) }
func (d Day) Equal(other Day) bool         { return d.Time.Equal(other.Time) }
func (d Day) BeforeOrEqual(other Day) bool { return d.Before(other) || d.Equal(other) }
func (d Day) AfterOrEqual(other Day) bool  { return d.After(other) || d.Equal(other) }

// Arithmetic
func (d Day) AddDays(n int) Day { return Day{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Day) Year() int         { return d.Time.Year() }
func (d Day) Month() time.Month { return d.Time.Month() }
func (d Day) DayOfMonth() int   { return d.Time.Day() }
func (d Day) IsZero() bool      { return d.Time.IsZero() }

func (d Day) String() string { return d.Time.Format("2006-01-02") }

// MarshalJSON renders the day as "2006-01-02".
func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON parses "2006-01-02".
func (d *Day) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid day JSON: %s", s)
	}
	parsed, err := ParseDay(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns the number of whole days from one date to another.
func DaysBetween(from, to Day) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// =============================================================================
// CLOCK - Local wall-clock time of day ("HH:MM")
// =============================================================================

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// DefaultClock is the assumed boundary time when a trip has no recorded
// departure or return time, or when the recorded string cannot be parsed.
var DefaultClock = Clock{Hour: 8, Minute: 0}

// ParseClock parses an "HH:MM" string (24-hour).
func ParseClock(s string) (Clock, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return Clock{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid time %q: out of range", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// Hours returns the clock position as fractional hours since midnight.
func (c Clock) Hours() float64 { return float64(c.Hour) + float64(c.Minute)/60 }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }
