package performance

import (
	"fmt"
)

// Trade is one discrete episode of a security's holding history: it opens at
// the event that moves the total position from zero to non-zero and closes at
// the first subsequent event that returns the position to exactly zero. A
// trade is a derived, read-only view constructed fresh per query.
type Trade struct {
	Security     string
	Start        Date
	End          Date // zero while the trade is still open
	Transactions []*Transaction
	EntryValue   Money // net acquisition cash flow, in the base currency
	ExitValue    Money // net disposal cash flow, zero while open

	flows   []cashFlow
	irr     float64
	irrErr  error
	irrDone bool
}

// Closed reports whether the trade has been fully exited.
func (t *Trade) Closed() bool { return !t.End.IsZero() }

// IRR returns the trade's money-weighted annual return as a ratio
// (0.10 for 10%). The root is solved lazily on first call and memoized.
// A non-convergent series returns ErrNoConvergence and must not be read
// as a zero return.
func (t *Trade) IRR() (float64, error) {
	if !t.irrDone {
		t.irr, t.irrErr = internalRateOfReturn(t.flows)
		t.irrDone = true
	}
	return t.irr, t.irrErr
}

// Performance returns the trade's simple return on its entry value
// (20.0 for +20%). It is zero while the trade is open or when nothing
// was invested; IRR is the time-aware measure.
func (t *Trade) Performance() Percent {
	if !t.Closed() || t.EntryValue.IsZero() {
		return 0
	}
	ratio := t.ExitValue.Decimal().Div(t.EntryValue.Decimal()).InexactFloat64()
	return Percent(100 * (ratio - 1))
}

// CollectTrades walks the security's full transaction history across every
// portfolio and account, merged into one timeline, and segments it into
// trades. Transfers between two observed portfolios neither close nor open a
// trade (net shares are unaffected) but are still recorded as contributing
// transactions. The last trade is open when the timeline never returns to
// zero; its IRR series is then terminated with the position's market value at
// the latest known price.
func CollectTrades(client *Client, converter CurrencyConverter, ticker string) ([]*Trade, error) {
	sec := client.Security(ticker)
	if sec == nil {
		return nil, fmt.Errorf("security %q not declared", ticker)
	}

	timeline := append(client.SecurityTransactions(ticker), client.SecurityCashEvents(ticker)...)
	sortTransactions(timeline)
	if len(timeline) == 0 {
		return nil, nil
	}

	var trades []*Trade
	var current *Trade
	var shares Quantity

	for _, tx := range timeline {
		if client.AccountOf(tx) != nil && (tx.Type == Buy || tx.Type == Sell) {
			// cash leg of a trade: the portfolio leg carries the shares and
			// the economics
			continue
		}
		inbound, outbound := tx.Type.IsInbound(), tx.Type.IsOutbound()
		if tx.Type == TransferIn || tx.Type == TransferOut {
			if _, ok := client.Resolve(tx.CrossEntry); !ok {
				// same contract as the cost basis replay: a dangling leg is
				// corrupt input, not a silent share movement
				return nil, integrityErr("transfer leg has no resolvable counterpart", tx)
			}
			// both legs observed: the net position is unaffected, the
			// transfer neither opens nor closes a trade
			inbound, outbound = false, false
		}

		switch {
		case inbound:
			if shares.IsZero() && current == nil {
				current = &Trade{Security: ticker, Start: tx.Date}
			}
			shares = shares.Add(tx.Shares)
		case outbound:
			if shares.LessThan(tx.Shares) {
				return nil, integrityErr(
					fmt.Sprintf("disposal of %s shares of %s exceeds the %s held", tx.Shares, ticker, shares), tx)
			}
			shares = shares.Sub(tx.Shares)
		}

		if current == nil {
			// cash events outside any holding window (e.g. a late fee) are
			// not part of a trade
			continue
		}
		current.Transactions = append(current.Transactions, tx)
		if err := current.observe(converter, tx); err != nil {
			return nil, err
		}

		if shares.IsZero() && outbound {
			current.End = tx.Date
			trades = append(trades, current)
			current = nil
		}
	}

	if current != nil {
		// Open trade: terminate the IRR series with the current market value.
		if err := current.appendValuation(converter, sec, shares); err != nil {
			return nil, err
		}
		trades = append(trades, current)
	}
	return trades, nil
}

// observe folds one contributing transaction into the trade's entry/exit
// values and cash-flow series.
func (t *Trade) observe(converter CurrencyConverter, tx *Transaction) error {
	converted, err := converter.Convert(tx.Amount, tx.Date)
	if err != nil {
		return err
	}
	switch tx.Type {
	case Buy, DeliveryInbound:
		t.EntryValue = t.EntryValue.Add(converted)
		t.flows = append(t.flows, cashFlow{on: tx.Date, amount: -converted.AsFloat()})
	case Sell, DeliveryOutbound:
		t.ExitValue = t.ExitValue.Add(converted)
		t.flows = append(t.flows, cashFlow{on: tx.Date, amount: converted.AsFloat()})
	case TransferIn, TransferOut:
		// both legs observed: net shares and net cash are unaffected
	case Dividends, Interest, TaxRefund, FeesRefund:
		t.flows = append(t.flows, cashFlow{on: tx.Date, amount: converted.AsFloat()})
	case InterestCharge, Taxes, Fees:
		t.flows = append(t.flows, cashFlow{on: tx.Date, amount: -converted.AsFloat()})
	case Deposit, Removal:
		// pure cash movements never reference a security
	}
	return nil
}

// appendValuation closes the cash-flow series of an open trade with the held
// position valued at the latest known price.
func (t *Trade) appendValuation(converter CurrencyConverter, sec *Security, shares Quantity) error {
	if len(sec.prices) == 0 {
		// no price ever recorded: leave the series as-is, IRR will be
		// indeterminate rather than guessed
		return nil
	}
	last := sec.prices[len(sec.prices)-1]
	on := last.on
	if n := len(t.flows); n > 0 && on.Before(t.flows[n-1].on) {
		on = t.flows[n-1].on
	}
	value, err := converter.Convert(last.price.Mul(shares), on)
	if err != nil {
		return err
	}
	t.flows = append(t.flows, cashFlow{on: on, amount: value.AsFloat()})
	return nil
}
