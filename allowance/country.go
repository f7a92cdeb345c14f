/*
country.go - Base-country resolution for a calendar date

PURPOSE:
  A date may carry several legs (an early flight plus a later local trip),
  but exactly one country's rate governs that date's allowance. The rule:
  the country where the traveler spends the greater part of the day wins,
  with the first leg acting as the tie-break default for short or
  ambiguous days.

ALGORITHM:
  1. Ignore legs whose trip type is unset; if none remain, the date is
     unresolvable (zero allowance, warning).
  2. Split the remaining legs into first and rest. Sum the rest legs'
     stay-hour contributions.
  3. Rest dominates (>= 8h): the LAST leg's arrival country governs.
  4. Otherwise the first leg governs: its arrival country if the leg is
     international and the whole day reaches 8 hours of stay, else its
     departure country.
  5. Domestic legs always resolve to "DE".
*/
package allowance

// ResolveBaseCountry determines which single country's rate governs the
// date described by legs. dayStayHours is the date's total stay duration
// from StayHours. The second return value is false when no leg determines
// a country; the engine treats that date as zero allowance.
func ResolveBaseCountry(legs []Leg, dayStayHours float64) (string, bool) {
	typed := make([]Leg, 0, len(legs))
	for _, l := range legs {
		if l.Type != TripUnset {
			typed = append(typed, l)
		}
	}
	if len(typed) == 0 {
		return "", false
	}

	first := typed[0]
	var restStayHours float64
	for _, l := range typed[1:] {
		restStayHours += l.StayHours
	}

	// The remainder of the day after the first leg amounts to a
	// reimbursable stay of its own: the day ends where the last leg ends.
	if restStayHours >= 8 {
		return legCountry(typed[len(typed)-1], true)
	}

	// First leg dominates the day.
	if first.Type == TripInternational && dayStayHours >= 8 {
		return legCountry(first, true)
	}
	return legCountry(first, false)
}

// legCountry returns the country a single leg resolves to. Domestic legs
// are always "DE". International legs prefer the requested side but fall
// back to the other when its code is blank.
func legCountry(l Leg, arrival bool) (string, bool) {
	if l.Type == TripDomestic {
		return DomesticCountryCode, true
	}
	primary, secondary := l.ArrivalCountryCode, l.DepartureCountryCode
	if !arrival {
		primary, secondary = l.DepartureCountryCode, l.ArrivalCountryCode
	}
	if primary != "" {
		return primary, true
	}
	if secondary != "" {
		return secondary, true
	}
	return "", false
}

// HasInternationalLeg reports whether any leg on the date is
// international. Used for the partial-day 80% reduction.
func HasInternationalLeg(legs []Leg) bool {
	for _, l := range legs {
		if l.Type == TripInternational {
			return true
		}
	}
	return false
}
