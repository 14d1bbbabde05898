package performance

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// scopeKey identifies one (security, portfolio) holding scope.
type scopeKey struct {
	security  string
	portfolio uuid.UUID
}

// costBasisState is the per-scope mutable accumulator: an ordered FIFO queue
// of lots plus an independent moving-average pair. Both views are maintained
// in one replay so either metric can be reported afterwards.
type costBasisState struct {
	lots      lots
	avgShares Quantity
	avgCost   Money
}

// inTransitLots are the lots consumed by a transfer-out leg, parked until the
// paired transfer-in claims them. This is how cost basis survives a transfer:
// the destination re-creates the source's lots instead of opening a fresh one
// at market value.
type inTransitLots struct {
	lots    lots
	avgCost Money // the moving-average share of cost leaving the source scope
}

// CostBasisTracker replays all security transactions of a client strictly in
// (date, sequence) order and answers cost-basis and realized-gain queries for
// the replayed horizon.
//
// A tracker is single-use and must not be shared across concurrent replays:
// one query, one tracker.
type CostBasisTracker struct {
	client    *Client
	states    map[scopeKey]*costBasisState
	inTransit map[uuid.UUID]inTransitLots // keyed by the transfer-out leg's ID
	realized  map[uuid.UUID]Money         // realized gain per disposal, FIFO convention
	processed map[uuid.UUID]bool
	replayed  bool
	through   Date
}

// NewCostBasisTracker creates a tracker over the client's ledger.
// The client must be indexed.
func NewCostBasisTracker(client *Client) *CostBasisTracker {
	return &CostBasisTracker{
		client:    client,
		states:    make(map[scopeKey]*costBasisState),
		inTransit: make(map[uuid.UUID]inTransitLots),
		realized:  make(map[uuid.UUID]Money),
		processed: make(map[uuid.UUID]bool),
	}
}

// Replay processes every share-moving transaction dated on or before
// 'through'. It can be called once per tracker.
func (t *CostBasisTracker) Replay(through Date) error {
	if t.replayed {
		return errors.New("cost basis tracker already replayed; use a fresh tracker per query")
	}
	t.replayed = true
	t.through = through

	var timeline []*Transaction
	for _, p := range t.client.Portfolios {
		for _, tx := range p.Transactions {
			if tx.Date.After(through) {
				continue
			}
			if tx.Type.IsInbound() || tx.Type.IsOutbound() {
				timeline = append(timeline, tx)
			}
		}
	}
	sortTransactions(timeline)

	for i := 0; i < len(timeline); {
		j := i
		for j < len(timeline) && !timeline[j].Date.After(timeline[i].Date) {
			j++
		}
		if err := t.processDay(timeline[i:j]); err != nil {
			return err
		}
		i = j
	}
	return nil
}

// shortSellError reports a disposal exceeding the shares currently in scope.
// Within a single day it is retryable; across days it is final.
type shortSellError struct{ *DataIntegrityError }

func (e *shortSellError) Unwrap() error { return e.DataIntegrityError }

// processDay applies one day's transactions in insertion order. Sequence
// numbers come from portfolio declaration order, not from intra-day time, so
// a disposal can sort ahead of the same-day purchase or transfer leg that
// covers it. Such a disposal is retried after the rest of the day's entries;
// the day fails only when a full pass makes no progress.
func (t *CostBasisTracker) processDay(day []*Transaction) error {
	pending := day
	for len(pending) > 0 {
		var deferred []*Transaction
		var short *shortSellError
		for _, tx := range pending {
			err := t.process(tx)
			if err == nil {
				continue
			}
			if errors.As(err, &short) {
				deferred = append(deferred, tx)
				continue
			}
			return err
		}
		if len(deferred) == len(pending) {
			return short.DataIntegrityError
		}
		pending = deferred
	}
	return nil
}

func (t *CostBasisTracker) state(key scopeKey) *costBasisState {
	st, ok := t.states[key]
	if !ok {
		st = &costBasisState{}
		t.states[key] = st
	}
	return st
}

// process applies one share-moving transaction to its scope. A transfer-in
// whose paired transfer-out has not been applied yet (a same-day pair whose
// legs arrived in-leg first) pulls the out leg forward; the out leg is then
// skipped when the timeline reaches it. A transaction is marked processed
// only on success, so processDay can retry a deferred one.
func (t *CostBasisTracker) process(tx *Transaction) error {
	if t.processed[tx.ID] {
		return nil
	}

	owner := t.client.PortfolioOf(tx)
	if owner == nil {
		return integrityErr(fmt.Sprintf("%s transaction is not owned by any portfolio", tx.Type), tx)
	}
	st := t.state(scopeKey{security: tx.Security, portfolio: owner.ID})

	switch tx.Type {
	case Buy, DeliveryInbound:
		st.lots = append(st.lots, lot{Date: tx.Date, Quantity: tx.Shares, Cost: tx.Amount})
		st.avgShares = st.avgShares.Add(tx.Shares)
		st.avgCost = st.avgCost.Add(tx.Amount)

	case TransferIn:
		out, ok := t.client.Resolve(tx.CrossEntry)
		if !ok {
			return integrityErr("transfer-in has no resolvable counterpart", tx)
		}
		if err := t.process(out); err != nil {
			return err
		}
		carried, ok := t.inTransit[out.ID]
		if !ok {
			return integrityErr("transfer-in counterpart carried no lots", tx, out)
		}
		delete(t.inTransit, out.ID)
		// The carried lots keep their original acquisition dates and costs.
		st.lots = append(st.lots, carried.lots...)
		st.avgShares = st.avgShares.Add(carried.lots.quantity())
		st.avgCost = st.avgCost.Add(carried.avgCost)

	case Sell, DeliveryOutbound:
		consumed, _, err := t.dispose(st, tx)
		if err != nil {
			return err
		}
		t.realized[tx.ID] = tx.Amount.Sub(consumed.totalCost())

	case TransferOut:
		consumed, avgPortion, err := t.dispose(st, tx)
		if err != nil {
			return err
		}
		t.inTransit[tx.ID] = inTransitLots{lots: consumed, avgCost: avgPortion}

	case Dividends, Interest, InterestCharge, Deposit, Removal, Taxes, TaxRefund, Fees, FeesRefund:
		// cash-only kinds never move shares; nothing to track
	}
	t.processed[tx.ID] = true
	return nil
}

// dispose consumes shares from a scope oldest-first and reduces the moving
// average pair. Selling more shares than the scope holds is a data-integrity
// violation, never clamped.
func (t *CostBasisTracker) dispose(st *costBasisState, tx *Transaction) (consumed lots, avgPortion Money, err error) {
	held := st.lots.quantity()
	if held.LessThan(tx.Shares) {
		return nil, Money{}, &shortSellError{&DataIntegrityError{
			Reason:       fmt.Sprintf("cannot dispose of %s shares of %s, scope holds only %s", tx.Shares, tx.Security, held),
			Transactions: []*Transaction{tx},
		}}
	}

	var remaining lots
	remaining, consumed = st.lots.consume(tx.Shares)
	st.lots = remaining

	// Moving average reduces by shares x current average, not by FIFO cost.
	avgPortion = st.avgCost.Mul(tx.Shares).Div(st.avgShares)
	st.avgCost = st.avgCost.Sub(avgPortion)
	st.avgShares = st.avgShares.Sub(tx.Shares)
	return consumed, avgPortion, nil
}

// Shares returns the shares of a security held across all scopes at the
// replayed horizon.
func (t *CostBasisTracker) Shares(ticker string) Quantity {
	var total Quantity
	for key, st := range t.states {
		if key.security == ticker {
			total = total.Add(st.lots.quantity())
		}
	}
	return total
}

// CostBasis returns the cost of the currently held shares of a security
// across all scopes, under the given accounting method, expressed in the
// converter's base currency as of 'on'. Each scope keeps its cost in its own
// portfolio's currency, so scopes are converted one by one before summing.
func (t *CostBasisTracker) CostBasis(ticker string, method CostBasisMethod, converter CurrencyConverter, on Date) (Money, error) {
	total := M(0, converter.Base())
	for key, st := range t.states {
		if key.security != ticker {
			continue
		}
		var cost Money
		switch method {
		case FIFO:
			cost = st.lots.totalCost()
		case AverageCost:
			cost = st.avgCost
		}
		if cost.IsZero() {
			continue
		}
		converted, err := converter.Convert(cost, on)
		if err != nil {
			return Money{}, err
		}
		total = total.Add(converted)
	}
	return total, nil
}

// PortfolioCostBasis returns the cost of the shares held in a single
// portfolio scope.
func (t *CostBasisTracker) PortfolioCostBasis(p *Portfolio, ticker string, method CostBasisMethod) Money {
	st, ok := t.states[scopeKey{security: ticker, portfolio: p.ID}]
	if !ok {
		return Money{}
	}
	switch method {
	case FIFO:
		return st.lots.totalCost()
	case AverageCost:
		return st.avgCost
	}
	return Money{}
}

// RealizedGain returns the realized gain or loss of a SELL or
// DELIVERY_OUTBOUND transaction seen during the replay: proceeds minus the
// FIFO cost of the consumed lots.
func (t *CostBasisTracker) RealizedGain(tx *Transaction) (Money, bool) {
	gain, ok := t.realized[tx.ID]
	return gain, ok
}

// RealizedGains sums the realized gains of all disposals of a security whose
// date falls within the period, each converted into the converter's base
// currency at its disposal date.
func (t *CostBasisTracker) RealizedGains(ticker string, period Range, converter CurrencyConverter) (Money, error) {
	total := M(0, converter.Base())
	for id, gain := range t.realized {
		tx, ok := t.client.Resolve(id)
		if !ok || tx.Security != ticker || !period.Contains(tx.Date) {
			continue
		}
		converted, err := converter.Convert(gain, tx.Date)
		if err != nil {
			return Money{}, err
		}
		total = total.Add(converted)
	}
	return total, nil
}
