package performance

import (
	"math"
)

// cashFlow is one dated, signed flow of a money-weighted return series:
// negative at entries (money leaving to acquire shares), positive at exits
// and interim credits such as dividends. Amounts are in the base currency,
// converted at the flow's date.
type cashFlow struct {
	on     Date
	amount float64
}

// Root-finder constants. The iteration cap is the engine's only bounded-time
// guarantee; callers needing overall cancellation wrap the query themselves.
const (
	irrSeed      = 1.05
	irrTolerance = 1e-5
	irrMaxIter   = 500
	irrStep      = 1e-6 // half-width of the symmetric finite difference
)

// internalRateOfReturn solves for the discount rate that zeroes the net
// present value of the series:
//
//	f(rate) = sum( flow_i / rate^(days_i/365) )
//
// using Newton's method with a numeric derivative, and reports rate - 1
// (0.10 for a 10% annual return). A series that cannot be discounted (all
// flows on one side) is a data-integrity error; exhausting the iteration cap
// yields ErrNoConvergence, an indeterminate result distinct from a valid
// zero return.
func internalRateOfReturn(flows []cashFlow) (float64, error) {
	if len(flows) < 2 {
		return 0, ErrNoConvergence
	}
	var hasNegative, hasPositive bool
	for _, f := range flows {
		if f.amount < 0 {
			hasNegative = true
		}
		if f.amount > 0 {
			hasPositive = true
		}
	}
	if !hasNegative || !hasPositive {
		return 0, integrityErr("cash-flow series cannot be discounted: flows are all one-sided")
	}

	start := flows[0].on
	npv := func(rate float64) float64 {
		var sum float64
		for _, f := range flows {
			days := float64(f.on.DaysSince(start))
			sum += f.amount / math.Pow(rate, days/365.0)
		}
		return sum
	}

	rate := irrSeed
	for i := 0; i < irrMaxIter; i++ {
		value := npv(rate)
		derivative := (npv(rate+irrStep) - npv(rate-irrStep)) / (2 * irrStep)
		if derivative == 0 || math.IsNaN(derivative) || math.IsInf(derivative, 0) {
			return 0, ErrNoConvergence
		}
		next := rate - value/derivative
		if next <= 0 {
			// keep the base of the discount power positive
			next = rate / 2
		}
		if math.Abs(next-rate) < irrTolerance {
			return next - 1, nil
		}
		rate = next
	}
	return 0, ErrNoConvergence
}
