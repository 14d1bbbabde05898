package performance

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoConvergence reports an indeterminate internal rate of return: the root
// finder exhausted its iteration cap without meeting the tolerance. Callers
// must not treat an indeterminate return as 0%.
var ErrNoConvergence = errors.New("internal rate of return did not converge")

// DataIntegrityError signals a ledger that cannot be computed on without
// corrupting downstream totals: selling more shares than are held, a
// cross-entry whose counterpart cannot be resolved, or a cash-flow series
// that cannot be discounted. The failure is fatal for the query and is never
// silently clamped.
type DataIntegrityError struct {
	Reason       string
	Transactions []*Transaction // the offending entries
}

func (e *DataIntegrityError) Error() string {
	if len(e.Transactions) == 0 {
		return "data integrity: " + e.Reason
	}
	parts := make([]string, len(e.Transactions))
	for i, tx := range e.Transactions {
		parts[i] = tx.String()
	}
	return fmt.Sprintf("data integrity: %s (%s)", e.Reason, strings.Join(parts, "; "))
}

func integrityErr(reason string, txs ...*Transaction) error {
	return &DataIntegrityError{Reason: reason, Transactions: txs}
}

// RateError signals that the currency converter has no exchange rate for a
// currency pair on a date.
type RateError struct {
	From, To string
	On       Date
}

func (e *RateError) Error() string {
	return fmt.Sprintf("no exchange rate from %s to %s as of %s", e.From, e.To, e.On)
}

// MissingRatePolicy decides what the attribution pass does when the converter
// cannot price a unit: fail the whole computation, or skip the unit and
// collect a warning alongside the result. There is no silent default.
type MissingRatePolicy int

const (
	// FailOnMissingRate aborts the computation on the first RateError.
	FailOnMissingRate MissingRatePolicy = iota
	// SkipMissingRate drops the affected unit and records a Warning.
	SkipMissingRate
)

// Warning is a non-fatal condition collected alongside a result.
type Warning struct {
	On          Date
	Transaction *Transaction // nil for valuation warnings
	Err         error
}

func (w Warning) String() string {
	if w.Transaction != nil {
		return fmt.Sprintf("%s: %v (%s)", w.On, w.Err, w.Transaction)
	}
	return fmt.Sprintf("%s: %v", w.On, w.Err)
}
