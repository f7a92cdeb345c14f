/*
duration.go - Hours of stay attributable to one calendar date

PURPOSE:
  Answers "how many hours of this date count as travel?" for each date of
  the trip span. First and last day are bounded by the trip's departure
  and return times; every middle day counts in full.

RULES:
  Pure first day:     24 - departure clock position
  Pure last day:      return clock position
  Single-day trip:    return - departure (negative clamps to zero)
  Middle day:         24

  All results clamp to [0, 24]. Threshold comparisons downstream (>= 8,
  >= 24) use the unrounded value; rounding to one decimal happens only
  for display.
*/
package allowance

import "math"

// StayHours returns the hours of stay attributable to the given date of
// the trip, plus warnings for any boundary time that failed to parse.
// The caller must only pass dates within [trip.StartDate, trip.EndDate];
// the engine guarantees this by iterating the span.
func StayHours(d Day, trip Trip) (float64, []Warning) {
	var warnings []Warning

	isFirst := d.Equal(trip.StartDate)
	isLast := d.Equal(trip.EndDate)

	if !isFirst && !isLast {
		return 24, nil
	}

	start := DefaultClock
	end := DefaultClock
	if isFirst {
		start = clockOrDefault(trip.StartTime, d, &warnings)
	}
	if isLast {
		end = clockOrDefault(trip.EndTime, d, &warnings)
	}

	var hours float64
	switch {
	case isFirst && isLast:
		// Single-day trip. A return before departure is malformed input
		// the caller should have rejected; clamp to zero rather than fail.
		hours = end.Hours() - start.Hours()
	case isFirst:
		hours = 24 - start.Hours()
	default:
		hours = end.Hours()
	}

	return clampHours(hours), warnings
}

// clockOrDefault parses an "HH:MM" boundary time. Empty strings silently
// fall back to the default; unparseable strings fall back with a warning.
func clockOrDefault(s string, d Day, warnings *[]Warning) Clock {
	if s == "" {
		return DefaultClock
	}
	c, err := ParseClock(s)
	if err != nil {
		*warnings = append(*warnings, Warning{
			Code:   WarnMalformedTime,
			Date:   d,
			Detail: err.Error() + ", assuming " + DefaultClock.String(),
		})
		return DefaultClock
	}
	return c
}

func clampHours(h float64) float64 {
	return math.Min(24, math.Max(0, h))
}

// RoundHours rounds a stay duration to one decimal place for display.
func RoundHours(h float64) float64 {
	return math.Round(h*10) / 10
}
