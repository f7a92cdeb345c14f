/*
errors.go - Fatal errors and recoverable warnings for the engine

PURPOSE:
  All error and warning types in one place. The engine distinguishes two
  failure modes:

  FATAL (returned as error, aborts the call):
    Missing or inverted trip bounds - iterating an undefined span is
    impossible, so the engine refuses to guess.

  RECOVERABLE (accumulated as Warnings on the TripSummary):
    A date whose legs determine no country, an unknown country code, or
    a time string that fails to parse. Each degrades that single date and
    never aborts the rest of the trip, so a caller can surface "allowance
    may be incomplete for N days" without losing the computation.

USAGE:
  if errors.Is(err, allowance.ErrMissingTripBounds) { ... }

  for _, w := range summary.Warnings {
      if w.Code == allowance.WarnUnknownCountryRate { ... }
  }
*/
package allowance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingTripBounds is returned when a trip has no start date, no
	// end date, or an end date before its start date.
	ErrMissingTripBounds = errors.New("missing or invalid trip bounds")
)

// TripBoundsError carries the offending bounds.
type TripBoundsError struct {
	StartDate Day
	EndDate   Day
	Reason    string
}

func (e *TripBoundsError) Error() string {
	return fmt.Sprintf("invalid trip bounds [%s, %s]: %s", e.StartDate, e.EndDate, e.Reason)
}

func (e *TripBoundsError) Unwrap() error { return ErrMissingTripBounds }

// =============================================================================
// WARNINGS - Recoverable conditions, accumulated not thrown
// =============================================================================

type WarningCode string

const (
	// WarnUnresolvedCountry: a date's legs do not determine a country;
	// that date's allowance is zero.
	WarnUnresolvedCountry WarningCode = "unresolved_country"

	// WarnUnknownCountryRate: a country code has no rate entry; the
	// German default rate was used instead.
	WarnUnknownCountryRate WarningCode = "unknown_country_rate"

	// WarnMalformedTime: a trip boundary time failed to parse as "HH:MM";
	// the default 08:00 was assumed.
	WarnMalformedTime WarningCode = "malformed_time"
)

// Warning is one recoverable condition attached to a calendar date.
type Warning struct {
	Code   WarningCode
	Date   Day
	Detail string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s on %s: %s", w.Code, w.Date, w.Detail)
}
