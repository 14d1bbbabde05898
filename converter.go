package performance

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the trail of a conversion: the value of one unit of From in
// To, as of On. Deterministic for a fixed date within one computation run.
type ExchangeRate struct {
	From, To string
	Rate     decimal.Decimal
	On       Date
}

// CurrencyConverter converts amounts into the reporting base currency as of a
// date. It is a consumed collaborator: the engine never acquires rate data
// itself.
type CurrencyConverter interface {
	// Base returns the reporting currency every conversion targets.
	Base() string
	// Convert returns the amount expressed in the base currency as of a date.
	// It returns a *RateError when no rate is available.
	Convert(amount Money, on Date) (Money, error)
	// RateAt returns the rate used to convert the given currency on a date.
	RateAt(currency string, on Date) (ExchangeRate, error)
}

// RateTable is a CurrencyConverter backed by a sparse, in-memory rate
// history per foreign currency. Lookups use the latest rate on or before the
// requested date, the same convention security prices use.
type RateTable struct {
	base  string
	rates map[string][]ratePoint // value of 1 foreign unit in base, ascending by date
}

type ratePoint struct {
	on   Date
	rate decimal.Decimal
}

// NewRateTable creates an empty rate table targeting the given base currency.
func NewRateTable(base string) *RateTable {
	return &RateTable{base: base, rates: make(map[string][]ratePoint)}
}

// AddRate records the value of 1 unit of currency in the base currency on a date.
func (t *RateTable) AddRate(currency string, on Date, rate decimal.Decimal) {
	pts := append(t.rates[currency], ratePoint{on: on, rate: rate})
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].on.Before(pts[j].on) })
	t.rates[currency] = pts
}

// Base returns the reporting currency.
func (t *RateTable) Base() string { return t.base }

// RateAt returns the latest known rate for the currency on or before the date.
func (t *RateTable) RateAt(currency string, on Date) (ExchangeRate, error) {
	if currency == t.base || currency == "" {
		return ExchangeRate{From: currency, To: t.base, Rate: decimal.NewFromInt(1), On: on}, nil
	}
	var last ratePoint
	found := false
	for _, p := range t.rates[currency] {
		if p.on.After(on) {
			break
		}
		last, found = p, true
	}
	if !found {
		return ExchangeRate{}, &RateError{From: currency, To: t.base, On: on}
	}
	return ExchangeRate{From: currency, To: t.base, Rate: last.rate, On: on}, nil
}

// Convert returns the amount expressed in the base currency as of the date.
func (t *RateTable) Convert(amount Money, on Date) (Money, error) {
	if amount.Currency() == t.base || amount.Currency() == "" {
		return M(amount.Decimal(), t.base), nil
	}
	rate, err := t.RateAt(amount.Currency(), on)
	if err != nil {
		return Money{}, err
	}
	return M(amount.Decimal().Mul(rate.Rate), t.base), nil
}
