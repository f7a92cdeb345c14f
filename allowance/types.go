/*
Package allowance implements the daily meal-allowance calculation engine
for business travel (Verpflegungsmehraufwand under German per-diem rules).

PURPOSE:
  Given a trip's date/time span, a per-day schedule of travel legs, a
  country-rate lookup, and records of employer-provided meals, the engine
  deterministically computes a euro allowance for every calendar day of
  the trip and a trip total.

KEY CONCEPTS IN THIS FILE (types.go):
  - Trip: Date span plus departure/return wall-clock times
  - Leg: One recorded travel segment on a calendar date
  - TripType: Closed enum - Domestic or International
  - CountryRate: Full-day and partial-day euro amounts for one country
  - ProvidedMeals: Which meals the employer already paid for on a date
  - DailyResult / TripSummary: Per-day and aggregate output

DESIGN PRINCIPLES:
  1. Purity: ComputeTripAllowance is a pure function of its inputs;
     identical inputs yield identical output
  2. Precision: Uses decimal.Decimal for all euro amounts
  3. Degradation: A malformed day yields a zero allowance and a warning,
     never an aborted trip computation

ALLOWANCE RULES (summary):
  - Below 8 hours of stay on a date: no allowance
  - 8 to 24 hours: partial-day rate of the governing country
  - 24 hours (full middle day): full-day rate
  - International partial days outside Germany: rate reduced to 80%
  - Provided meals deduct 20%/40%/40% (breakfast/lunch/dinner) of the
    undiscounted bracket rate, floored at zero

SEE ALSO:
  - duration.go: Hours of stay attributable to a date
  - country.go: Which country's rate governs a date
  - deduction.go: Provided-meal deductions
  - engine.go: Orchestration across the trip span
  - errors.go: Fatal errors and recoverable warnings
*/
package allowance

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// TRIP - Overall travel span
// =============================================================================

// Trip is the date and time span of one business trip. StartDate and
// EndDate are inclusive calendar dates; a single-day trip has both equal.
// StartTime/EndTime are local "HH:MM" strings and may be empty, in which
// case DefaultClock (08:00) applies.
type Trip struct {
	StartDate Day
	EndDate   Day
	StartTime string
	EndTime   string
}

// Span returns every calendar date of the trip in ascending order.
func (t Trip) Span() []Day {
	var days []Day
	for d := t.StartDate; d.BeforeOrEqual(t.EndDate); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// =============================================================================
// LEG - One travel segment recorded against a calendar date
// =============================================================================

// TripType classifies a leg. The zero value means the user has not yet
// chosen a type; such legs never determine a base country.
type TripType int

const (
	TripUnset TripType = iota
	TripDomestic
	TripInternational
)

func (t TripType) String() string {
	switch t {
	case TripDomestic:
		return "domestic"
	case TripInternational:
		return "international"
	default:
		return ""
	}
}

// ParseTripType maps the stored string form back to the enum. Unknown or
// empty strings map to TripUnset.
func ParseTripType(s string) TripType {
	switch s {
	case "domestic":
		return TripDomestic
	case "international":
		return TripInternational
	default:
		return TripUnset
	}
}

// Leg is one recorded travel segment. A date may carry several legs
// (e.g., an early flight plus a later local trip); their order within the
// date matters for base-country resolution. StayHours is the share of the
// calendar day attributable to this leg, as recorded with the schedule.
type Leg struct {
	Date                 Day
	Type                 TripType
	DepartureCountryCode string
	DepartureCity        string
	ArrivalCountryCode   string
	ArrivalCity          string
	StayHours            float64
	IsFirstDayOfTrip     bool
	IsLastDayOfTrip      bool
}

// =============================================================================
// COUNTRY RATE - Statutory per-diem amounts for one country
// =============================================================================

// DomesticCountryCode is the pseudo-code every domestic leg resolves to.
const DomesticCountryCode = "DE"

// CountryRate holds the statutory per-diem amounts for one country.
// FullDay applies to dates with at least 24 hours of stay, PartialDay to
// dates with 8 to 24 hours.
type CountryRate struct {
	CountryCode string
	FullDay     decimal.Decimal
	PartialDay  decimal.Decimal
}

// DefaultGermanRate is the hard-coded domestic fallback (28.00 / 14.00).
// It must always be resolvable even when no rate source is reachable.
func DefaultGermanRate() CountryRate {
	return CountryRate{
		CountryCode: DomesticCountryCode,
		FullDay:     decimal.NewFromInt(28),
		PartialDay:  decimal.NewFromInt(14),
	}
}

// =============================================================================
// PROVIDED MEALS - Employer-paid meals on a date
// =============================================================================

// ProvidedMeals records which meals the employer already paid for on a
// calendar date. Each provided meal reduces the allowance.
type ProvidedMeals struct {
	Breakfast bool
	Lunch     bool
	Dinner    bool
}

// Any reports whether at least one meal was provided.
func (m ProvidedMeals) Any() bool { return m.Breakfast || m.Lunch || m.Dinner }

// MealRecord is one raw hospitality/entertainment record as entered by
// the user. Several records may exist for the same date.
type MealRecord struct {
	Date  Day
	Meals ProvidedMeals
}

// ReduceMeals collapses raw records into one ProvidedMeals per date.
// Multiple records on the same date are OR'd per meal type: if any record
// marks breakfast, breakfast counts as provided.
func ReduceMeals(records []MealRecord) map[Day]ProvidedMeals {
	reduced := make(map[Day]ProvidedMeals, len(records))
	for _, r := range records {
		m := reduced[r.Date]
		m.Breakfast = m.Breakfast || r.Meals.Breakfast
		m.Lunch = m.Lunch || r.Meals.Lunch
		m.Dinner = m.Dinner || r.Meals.Dinner
		reduced[r.Date] = m
	}
	return reduced
}

// =============================================================================
// OUTPUT - Per-day results and trip aggregate
// =============================================================================

// DailyResult is the allowance breakdown for one calendar date.
type DailyResult struct {
	Date            Day
	StayHours       float64 // rounded to one decimal for display
	BaseCountryCode string  // empty when no country could be resolved
	BaseAmount      decimal.Decimal
	DeductionAmount decimal.Decimal
	FinalAllowance  decimal.Decimal
	MealsProvided   ProvidedMeals
}

// TripSummary is the engine's output: one DailyResult per calendar date
// of the trip in ascending order, the grand total, and any recoverable
// warnings accumulated along the way.
type TripSummary struct {
	Days     []DailyResult
	Total    decimal.Decimal
	Warnings []Warning
}
