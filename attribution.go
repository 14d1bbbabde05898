package performance

import (
	"errors"
	"fmt"
)

// CategoryType is one of the mutually exclusive buckets the change in total
// wealth is decomposed into. The categories reconcile exactly:
//
//	INITIAL_VALUE + CAPITAL_GAINS + REALIZED_CAPITAL_GAINS + EARNINGS
//	  - FEES - TAXES + TRANSFERS + CURRENCY_GAINS = FINAL_VALUE
type CategoryType int

const (
	CategoryInitialValue CategoryType = iota
	CategoryCapitalGains
	CategoryRealizedCapitalGains
	CategoryEarnings
	CategoryFees
	CategoryTaxes
	CategoryTransfers
	CategoryCurrencyGains
	CategoryFinalValue
)

func (c CategoryType) String() string {
	switch c {
	case CategoryInitialValue:
		return "initial-value"
	case CategoryCapitalGains:
		return "capital-gains"
	case CategoryRealizedCapitalGains:
		return "realized-capital-gains"
	case CategoryEarnings:
		return "earnings"
	case CategoryFees:
		return "fees"
	case CategoryTaxes:
		return "taxes"
	case CategoryTransfers:
		return "transfers"
	case CategoryCurrencyGains:
		return "currency-gains"
	case CategoryFinalValue:
		return "final-value"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Categories lists all category types in reconciliation order.
func Categories() []CategoryType {
	return []CategoryType{
		CategoryInitialValue, CategoryCapitalGains, CategoryRealizedCapitalGains,
		CategoryEarnings, CategoryFees, CategoryTaxes, CategoryTransfers,
		CategoryCurrencyGains, CategoryFinalValue,
	}
}

// Position is one contribution to a category, with the trail back to the
// transactions that produced it.
type Position struct {
	Transactions []*Transaction
	Value        Money // in the base currency
	ForexGain    Money // non-zero only for currency-gain positions
	Trail        Trail
}

// CategoryResult is the total of one category plus its positions.
type CategoryResult struct {
	Kind      CategoryType
	Value     Money
	Positions []Position
}

// ClientSnapshot is the client-wide performance decomposition over one
// reporting interval. It is immutable once returned.
type ClientSnapshot struct {
	Interval Range
	Currency string
	Warnings []Warning

	categories map[CategoryType]*CategoryResult
}

// Category returns the result for one category type.
func (s *ClientSnapshot) Category(kind CategoryType) *CategoryResult {
	return s.categories[kind]
}

// Value returns the total of one category in the base currency.
func (s *ClientSnapshot) Value(kind CategoryType) Money {
	return s.categories[kind].Value
}

// Explain returns the trail behind a category total.
func (s *ClientSnapshot) Explain(kind CategoryType) (Trail, bool) {
	cat, ok := s.categories[kind]
	if !ok {
		return Trail{}, false
	}
	inputs := make([]Trail, 0, len(cat.Positions))
	for _, pos := range cat.Positions {
		inputs = append(inputs, pos.Trail)
	}
	return NewTrail(kind.String(), cat.Value, inputs...), true
}

// Reconciles reports whether the category totals satisfy the reconciliation
// identity to the smallest currency unit.
func (s *ClientSnapshot) Reconciles() bool {
	left := s.Value(CategoryInitialValue).
		Add(s.Value(CategoryCapitalGains)).
		Add(s.Value(CategoryRealizedCapitalGains)).
		Add(s.Value(CategoryEarnings)).
		Sub(s.Value(CategoryFees)).
		Sub(s.Value(CategoryTaxes)).
		Add(s.Value(CategoryTransfers)).
		Add(s.Value(CategoryCurrencyGains))
	return left.EqualRounded(s.Value(CategoryFinalValue))
}

// AttributionOption tunes the client snapshot computation.
type AttributionOption func(*attributionOptions)

type attributionOptions struct {
	ratePolicy MissingRatePolicy
}

// WithMissingRatePolicy decides whether a missing exchange rate fails the
// computation or skips the affected unit with a warning.
func WithMissingRatePolicy(policy MissingRatePolicy) AttributionOption {
	return func(o *attributionOptions) { o.ratePolicy = policy }
}

// secAttribution accumulates the per-security figures the capital-gains
// residual is derived from. All amounts are in the base currency, converted
// at each transaction's date.
type secAttribution struct {
	buys, sells       Money
	delivIn, delivOut Money
	units             Money // fee and tax units embedded in security trades
	realized          Money
	transactions      []*Transaction
}

// attribution carries the shared state of one snapshot computation.
type attribution struct {
	client    *Client
	converter CurrencyConverter
	interval  Range
	policy    MissingRatePolicy
	tracker   *CostBasisTracker

	snapshot *ClientSnapshot
	perSec   map[string]*secAttribution
}

// ComputeClientSnapshot decomposes the change of the client's total wealth
// over the interval into exactly reconciling categories. CURRENCY_GAINS is
// the residual plug: the part of the change attributable to exchange-rate
// movement that no other category captures.
func ComputeClientSnapshot(client *Client, converter CurrencyConverter, interval Range, opts ...AttributionOption) (*ClientSnapshot, error) {
	options := attributionOptions{ratePolicy: FailOnMissingRate}
	for _, opt := range opts {
		opt(&options)
	}

	a := &attribution{
		client:    client,
		converter: converter,
		interval:  interval,
		policy:    options.ratePolicy,
		perSec:    make(map[string]*secAttribution),
		snapshot: &ClientSnapshot{
			Interval:   interval,
			Currency:   converter.Base(),
			categories: make(map[CategoryType]*CategoryResult),
		},
	}
	for _, kind := range Categories() {
		a.snapshot.categories[kind] = &CategoryResult{Kind: kind, Value: M(0, converter.Base())}
	}

	a.tracker = NewCostBasisTracker(client)
	if err := a.tracker.Replay(interval.To); err != nil {
		return nil, err
	}

	if err := a.valuation(CategoryInitialValue, interval.From.Add(-1)); err != nil {
		return nil, err
	}
	if err := a.valuation(CategoryFinalValue, interval.To); err != nil {
		return nil, err
	}
	if err := a.walkPortfolios(); err != nil {
		return nil, err
	}
	if err := a.walkAccounts(); err != nil {
		return nil, err
	}
	if err := a.capitalGains(); err != nil {
		return nil, err
	}
	a.currencyGains()

	return a.snapshot, nil
}

// convert applies the missing-rate policy: on a missing rate it either fails
// the computation or records a warning and reports the amount as skipped.
func (a *attribution) convert(amount Money, on Date, tx *Transaction) (Money, bool, error) {
	converted, err := a.converter.Convert(amount, on)
	if err == nil {
		return converted, true, nil
	}
	var rateErr *RateError
	if errors.As(err, &rateErr) && a.policy == SkipMissingRate {
		a.snapshot.Warnings = append(a.snapshot.Warnings, Warning{On: on, Transaction: tx, Err: err})
		return M(0, a.converter.Base()), false, nil
	}
	return Money{}, false, err
}

// add books a position into a category.
func (a *attribution) add(kind CategoryType, pos Position) {
	cat := a.snapshot.categories[kind]
	cat.Value = cat.Value.Add(pos.Value)
	cat.Positions = append(cat.Positions, pos)
}

// valuation books the full client market value (positions plus account
// balances, converted at the valuation date) into a boundary category.
func (a *attribution) valuation(kind CategoryType, on Date) error {
	for _, ticker := range a.client.Securities() {
		value, err := a.client.MarketValue(ticker, on)
		if err != nil {
			return err
		}
		if value.IsZero() {
			continue
		}
		converted, ok, err := a.convert(value, on, nil)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		a.add(kind, Position{
			Value: converted,
			Trail: NewTrail(fmt.Sprintf("%s position valued on %s", ticker, on), converted),
		})
	}
	for _, account := range a.client.Accounts {
		balance := account.Balance(on)
		if balance.IsZero() {
			continue
		}
		converted, ok, err := a.convert(balance, on, nil)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		a.add(kind, Position{
			Value: converted,
			Trail: NewTrail(fmt.Sprintf("account %s balance on %s", account.Name, on), converted),
		})
	}
	return nil
}

func (a *attribution) sec(ticker string) *secAttribution {
	agg, ok := a.perSec[ticker]
	if !ok {
		agg = &secAttribution{}
		a.perSec[ticker] = agg
	}
	return agg
}

// walkPortfolios buckets every security transaction dated within the
// interval: realized gains, external deliveries, and the embedded fee/tax
// units; buys and sells feed the per-security capital-gains residual.
func (a *attribution) walkPortfolios() error {
	for _, p := range a.client.Portfolios {
		for _, tx := range p.Transactions {
			if !a.interval.Contains(tx.Date) {
				continue
			}
			if err := a.bucketSecurityTx(tx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *attribution) bucketSecurityTx(tx *Transaction) error {
	agg := a.sec(tx.Security)
	agg.transactions = append(agg.transactions, tx)

	converted, ok, err := a.convert(tx.Amount, tx.Date, tx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := a.bucketUnits(tx, agg); err != nil {
		return err
	}

	switch tx.Type {
	case Buy:
		agg.buys = agg.buys.Add(converted)
	case Sell:
		agg.sells = agg.sells.Add(converted)
		return a.bookRealizedGain(tx, agg)
	case DeliveryInbound:
		agg.delivIn = agg.delivIn.Add(converted)
		a.add(CategoryTransfers, Position{
			Transactions: []*Transaction{tx},
			Value:        converted,
			Trail:        NewTrail("inbound delivery of "+tx.Security, converted).WithTransactions(tx),
		})
	case DeliveryOutbound:
		agg.delivOut = agg.delivOut.Add(converted)
		a.add(CategoryTransfers, Position{
			Transactions: []*Transaction{tx},
			Value:        converted.Neg(),
			Trail:        NewTrail("outbound delivery of "+tx.Security, converted.Neg()).WithTransactions(tx),
		})
		return a.bookRealizedGain(tx, agg)
	case TransferIn, TransferOut:
		if _, resolvable := a.client.Resolve(tx.CrossEntry); resolvable {
			// both legs in scope: cost basis moves, wealth does not
			return nil
		}
		// a dangling leg behaves like a delivery at carried cost
		if tx.Type == TransferIn {
			agg.delivIn = agg.delivIn.Add(converted)
			a.add(CategoryTransfers, Position{
				Transactions: []*Transaction{tx},
				Value:        converted,
				Trail:        NewTrail("unpaired transfer into "+tx.Security, converted).WithTransactions(tx),
			})
		} else {
			agg.delivOut = agg.delivOut.Add(converted)
			a.add(CategoryTransfers, Position{
				Transactions: []*Transaction{tx},
				Value:        converted.Neg(),
				Trail:        NewTrail("unpaired transfer out of "+tx.Security, converted.Neg()).WithTransactions(tx),
			})
		}
	case Dividends, Interest, InterestCharge, Deposit, Removal, Taxes, TaxRefund, Fees, FeesRefund:
		// cash kinds are account-owned and bucketed by walkAccounts
	}
	return nil
}

// bookRealizedGain books the tracker's realized-gain result for a disposal,
// converted at the transaction date.
func (a *attribution) bookRealizedGain(tx *Transaction, agg *secAttribution) error {
	gain, ok := a.tracker.RealizedGain(tx)
	if !ok {
		return integrityErr("disposal was not seen by the cost basis tracker", tx)
	}
	converted, ok, err := a.convert(gain, tx.Date, tx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	agg.realized = agg.realized.Add(converted)
	a.add(CategoryRealizedCapitalGains, Position{
		Transactions: []*Transaction{tx},
		Value:        converted,
		Trail:        NewTrail("realized gain on "+tx.Security, converted).WithTransactions(tx),
	})
	return nil
}

// bucketUnits books the fee and tax units embedded in a security trade.
// They are also added back into the capital-gains residual so the security
// identity is not distorted by amounts already counted elsewhere.
func (a *attribution) bucketUnits(tx *Transaction, agg *secAttribution) error {
	for _, kind := range []UnitType{Fee, Tax} {
		sum := tx.UnitSum(kind)
		if sum.IsZero() {
			continue
		}
		converted, ok, err := a.convert(sum, tx.Date, tx)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		agg.units = agg.units.Add(converted)
		category := CategoryFees
		label := "fee embedded in " + tx.Type.String()
		if kind == Tax {
			category = CategoryTaxes
			label = "tax embedded in " + tx.Type.String()
		}
		a.add(category, Position{
			Transactions: []*Transaction{tx},
			Value:        converted,
			Trail:        NewTrail(label, converted, unitTrails(tx, kind)...).WithTransactions(tx),
		})
	}
	return nil
}

// unitTrails explains each unit of a kind as booked, keeping any recorded
// foreign amount and exchange rate visible in the trail.
func unitTrails(tx *Transaction, kind UnitType) []Trail {
	var inputs []Trail
	for _, u := range tx.Units {
		if u.Kind == kind {
			inputs = append(inputs, NewTrail(u.String(), u.Amount))
		}
	}
	return inputs
}

// walkAccounts buckets every cash transaction dated within the interval.
func (a *attribution) walkAccounts() error {
	for _, account := range a.client.Accounts {
		for _, tx := range account.Transactions {
			if !a.interval.Contains(tx.Date) {
				continue
			}
			if err := a.bucketCashTx(tx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *attribution) bucketCashTx(tx *Transaction) error {
	switch tx.Type {
	case Dividends, Interest, InterestCharge:
		return a.bookEarning(tx)

	case Taxes, TaxRefund:
		converted, ok, err := a.convert(tx.Amount, tx.Date, tx)
		if err != nil || !ok {
			return err
		}
		if tx.Type == TaxRefund {
			converted = converted.Neg()
		}
		a.add(CategoryTaxes, Position{
			Transactions: []*Transaction{tx},
			Value:        converted,
			Trail:        NewTrail(tx.Type.String(), converted).WithTransactions(tx),
		})

	case Fees, FeesRefund:
		converted, ok, err := a.convert(tx.Amount, tx.Date, tx)
		if err != nil || !ok {
			return err
		}
		if tx.Type == FeesRefund {
			converted = converted.Neg()
		}
		a.add(CategoryFees, Position{
			Transactions: []*Transaction{tx},
			Value:        converted,
			Trail:        NewTrail(tx.Type.String(), converted).WithTransactions(tx),
		})

	case Deposit, Removal:
		converted, ok, err := a.convert(tx.Amount, tx.Date, tx)
		if err != nil || !ok {
			return err
		}
		if tx.Type == Removal {
			converted = converted.Neg()
		}
		a.add(CategoryTransfers, Position{
			Transactions: []*Transaction{tx},
			Value:        converted,
			Trail:        NewTrail(tx.Type.String(), converted).WithTransactions(tx),
		})

	case Buy, Sell, TransferIn, TransferOut:
		if _, resolvable := a.client.Resolve(tx.CrossEntry); resolvable {
			// internal leg: the counterpart side carries the economics
			return nil
		}
		// a dangling cash leg is an external flow
		converted, ok, err := a.convert(tx.Amount, tx.Date, tx)
		if err != nil || !ok {
			return err
		}
		if tx.Type == Buy || tx.Type == TransferOut {
			converted = converted.Neg()
		}
		a.add(CategoryTransfers, Position{
			Transactions: []*Transaction{tx},
			Value:        converted,
			Trail:        NewTrail("unpaired "+tx.Type.String()+" cash leg", converted).WithTransactions(tx),
		})

	case DeliveryInbound, DeliveryOutbound:
		return integrityErr("deliveries move shares and cannot be account-owned", tx)
	}
	return nil
}

// bookEarning books the gross value of a dividend or interest event into
// EARNINGS and its embedded tax/fee units into TAXES/FEES.
func (a *attribution) bookEarning(tx *Transaction) error {
	gross, ok, err := a.convert(tx.GrossAmount(), tx.Date, tx)
	if err != nil || !ok {
		return err
	}
	if tx.Type == InterestCharge {
		gross = gross.Neg()
	}
	a.add(CategoryEarnings, Position{
		Transactions: []*Transaction{tx},
		Value:        gross,
		Trail:        NewTrail(tx.Type.String()+" gross value", gross).WithTransactions(tx),
	})

	for _, kind := range []UnitType{Fee, Tax} {
		sum := tx.UnitSum(kind)
		if sum.IsZero() {
			continue
		}
		converted, ok, err := a.convert(sum, tx.Date, tx)
		if err != nil || !ok {
			return err
		}
		category := CategoryFees
		if kind == Tax {
			category = CategoryTaxes
		}
		a.add(category, Position{
			Transactions: []*Transaction{tx},
			Value:        converted,
			Trail: NewTrail(kind.String()+" embedded in "+tx.Type.String(), converted,
				unitTrails(tx, kind)...).WithTransactions(tx),
		})
	}
	return nil
}

// capitalGains derives the per-security residual so the security-level
// identity holds: the change in converted market value not explained by
// trading flows, external deliveries, or realized gains — with embedded
// fee/tax units added back since they are already counted in their own
// categories.
func (a *attribution) capitalGains() error {
	start := a.interval.From.Add(-1)
	for _, ticker := range a.client.Securities() {
		agg := a.perSec[ticker]
		if agg == nil {
			agg = &secAttribution{}
		}

		startValue, err := a.client.MarketValue(ticker, start)
		if err != nil {
			return err
		}
		endValue, err := a.client.MarketValue(ticker, a.interval.To)
		if err != nil {
			return err
		}
		startConverted, ok, err := a.convert(startValue, start, nil)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		endConverted, ok, err := a.convert(endValue, a.interval.To, nil)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		gain := endConverted.Sub(startConverted).
			Sub(agg.buys.Sub(agg.sells)).
			Sub(agg.delivIn.Sub(agg.delivOut)).
			Sub(agg.realized).
			Add(agg.units)
		if gain.IsZero() && len(agg.transactions) == 0 {
			continue
		}
		a.add(CategoryCapitalGains, Position{
			Transactions: agg.transactions,
			Value:        gain,
			Trail: NewTrail("unrealized change on "+ticker, gain,
				NewTrail("value at interval start", startConverted),
				NewTrail("value at interval end", endConverted),
				NewTrail("net purchases", agg.buys.Sub(agg.sells)),
				NewTrail("net deliveries", agg.delivIn.Sub(agg.delivOut)),
				NewTrail("realized component", agg.realized),
				NewTrail("embedded fees and taxes", agg.units),
			).WithTransactions(agg.transactions...),
		})
	}
	return nil
}

// currencyGains books the final plug: the residual needed to make the
// whole-client identity hold exactly, attributable to exchange-rate movement
// on non-base holdings and balances that no other category captures.
func (a *attribution) currencyGains() {
	s := a.snapshot
	residual := s.Value(CategoryFinalValue).
		Sub(s.Value(CategoryInitialValue)).
		Sub(s.Value(CategoryCapitalGains)).
		Sub(s.Value(CategoryRealizedCapitalGains)).
		Sub(s.Value(CategoryEarnings)).
		Add(s.Value(CategoryFees)).
		Add(s.Value(CategoryTaxes)).
		Sub(s.Value(CategoryTransfers))
	if residual.IsZero() {
		return
	}
	a.add(CategoryCurrencyGains, Position{
		Value:     residual,
		ForexGain: residual,
		Trail:     NewTrail("exchange-rate movement residual", residual),
	})
}
