/*
deduction.go - Provided-meal deductions

PURPOSE:
  When the employer already paid for a meal, the allowance shrinks by a
  fixed percentage of the STATUTORY rate for the bracket in force:

    breakfast  20%
    lunch      40%
    dinner     40%

  The deduction base is the undiscounted bracket rate, not the possibly
  already-reduced base amount carried forward for the final figure. The
  tax rule deducts meal percentages from the statutory rate regardless of
  any trip-specific proration, so the two must be tracked separately.
  With all three meals provided, the deduction equals the full bracket
  rate and the net allowance floors at zero.
*/
package allowance

import "github.com/shopspring/decimal"

var (
	breakfastShare = decimal.NewFromFloat(0.2)
	lunchShare     = decimal.NewFromFloat(0.4)
	dinnerShare    = decimal.NewFromFloat(0.4)
)

// ApplyMealDeductions computes the deduction for the provided meals and
// the resulting net allowance. baseAmount is the (possibly reduced)
// amount the date is entitled to; bracketRate is the undiscounted
// full-day or partial-day rate the deduction percentages apply against.
func ApplyMealDeductions(baseAmount, bracketRate decimal.Decimal, meals ProvidedMeals) (deduction, net decimal.Decimal) {
	share := decimal.Zero
	if meals.Breakfast {
		share = share.Add(breakfastShare)
	}
	if meals.Lunch {
		share = share.Add(lunchShare)
	}
	if meals.Dinner {
		share = share.Add(dinnerShare)
	}

	deduction = bracketRate.Mul(share)
	net = baseAmount.Sub(deduction)
	if net.IsNegative() {
		net = decimal.Zero
	}
	return deduction, net
}
