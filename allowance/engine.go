/*
engine.go - Trip-wide orchestration

PURPOSE:
  ComputeTripAllowance walks every calendar date of the trip in ascending
  order and, per date: determines the stay duration, resolves the base
  country, looks up that country's rate, selects the full-day or
  partial-day bracket, applies the international partial-day reduction,
  and deducts provided meals. The per-day results and their sum form the
  TripSummary.

PER-DATE PIPELINE:
  1. stayHours = StayHours(date, trip)
  2. stayHours < 8        -> zero allowance, next date
  3. country = ResolveBaseCountry(legs, stayHours); unresolved -> zero
  4. rate = rates.Lookup(country)   (falls back to "DE" when unknown)
  5. bracket = stayHours >= 24 ? fullDay : partialDay
  6. partial + international + non-DE -> base = bracket * 0.8
  7. deduction against the undiscounted bracket, net floored at zero

FAILURE SEMANTICS:
  The engine never fails for malformed per-day input - a missing leg, an
  unknown country, a return before departure - it records a warning and a
  zero allowance for that date and keeps going, so one bad day cannot
  abort the whole trip. Only structurally invalid trip bounds are fatal.

PURITY:
  The engine holds no state of its own. Every invocation recomputes from
  current inputs; identical inputs yield identical results. The host
  application owns the "recompute on input change" policy - after any
  edit to dates, legs, or meal records it simply calls again and replaces
  the previous summary.
*/
package allowance

import (
	"context"

	"github.com/shopspring/decimal"
)

// RateTable looks up the per-diem rate for a country code. Lookup returns
// the matched rate and true on an exact match; when the code is unknown
// it returns the German default rate and false, which the engine reports
// as a warning. Implementations must be safe for concurrent use.
type RateTable interface {
	Lookup(ctx context.Context, countryCode string) (CountryRate, bool, error)
}

// internationalReduction is the factor applied to partial-day rates for
// international days outside Germany.
var internationalReduction = decimal.NewFromFloat(0.8)

// Engine computes trip allowances against a rate table.
type Engine struct {
	Rates RateTable
}

// ComputeTripAllowance computes one DailyResult per calendar date in
// [trip.StartDate, trip.EndDate] plus the grand total. legsByDate and
// mealsByDate are keyed by normalized Day; dates without entries simply
// have no legs or no provided meals. Returns ErrMissingTripBounds (via
// TripBoundsError) when the trip span itself is undefined.
func (e *Engine) ComputeTripAllowance(
	ctx context.Context,
	trip Trip,
	legsByDate map[Day][]Leg,
	mealsByDate map[Day]ProvidedMeals,
) (*TripSummary, error) {

	if trip.StartDate.IsZero() || trip.EndDate.IsZero() {
		return nil, &TripBoundsError{StartDate: trip.StartDate, EndDate: trip.EndDate, Reason: "start and end date required"}
	}
	if trip.EndDate.Before(trip.StartDate) {
		return nil, &TripBoundsError{StartDate: trip.StartDate, EndDate: trip.EndDate, Reason: "end date before start date"}
	}

	summary := &TripSummary{Total: decimal.Zero}

	for _, d := range trip.Span() {
		meals := mealsByDate[d]
		legs := legsByDate[d]

		stayHours, warnings := StayHours(d, trip)
		summary.Warnings = append(summary.Warnings, warnings...)

		result := DailyResult{
			Date:            d,
			StayHours:       RoundHours(stayHours),
			BaseAmount:      decimal.Zero,
			DeductionAmount: decimal.Zero,
			FinalAllowance:  decimal.Zero,
			MealsProvided:   meals,
		}

		// Below eight hours no allowance applies; no country resolution
		// or rate lookup needed.
		if stayHours < 8 {
			summary.Days = append(summary.Days, result)
			continue
		}

		countryCode, ok := ResolveBaseCountry(legs, stayHours)
		if !ok {
			summary.Warnings = append(summary.Warnings, Warning{
				Code:   WarnUnresolvedCountry,
				Date:   d,
				Detail: "no leg determines a country for this date",
			})
			summary.Days = append(summary.Days, result)
			continue
		}
		result.BaseCountryCode = countryCode

		rate, exact, err := e.Rates.Lookup(ctx, countryCode)
		if err != nil || !exact {
			summary.Warnings = append(summary.Warnings, Warning{
				Code:   WarnUnknownCountryRate,
				Date:   d,
				Detail: "no rate for country " + countryCode + ", using German default",
			})
		}
		if err != nil {
			rate = DefaultGermanRate()
		}

		isFullDay := stayHours >= 24
		bracketRate := rate.PartialDay
		if isFullDay {
			bracketRate = rate.FullDay
		}

		baseAmount := bracketRate
		if !isFullDay && countryCode != DomesticCountryCode && HasInternationalLeg(legs) {
			baseAmount = bracketRate.Mul(internationalReduction)
		}

		deduction, net := ApplyMealDeductions(baseAmount, bracketRate, meals)

		result.BaseAmount = baseAmount.Round(2)
		result.DeductionAmount = deduction.Round(2)
		result.FinalAllowance = net.Round(2)

		summary.Days = append(summary.Days, result)
		summary.Total = summary.Total.Add(result.FinalAllowance)
	}

	return summary, nil
}
