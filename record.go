package performance

import (
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// PerformanceRecord aggregates one security's performance over a reporting
// interval. It is built fresh per query and immutable once returned.
type PerformanceRecord struct {
	Security               string
	SharesHeld             Quantity
	MarketValue            Money // at interval end, in the base currency
	FifoCost               Money // at interval end, in the base currency
	MovingAverageCost      Money // at interval end, in the base currency
	CapitalGainsOnHoldings Money // MarketValue - FifoCost
	DividendCount          int
	DividendSum            Money // dividends received within the interval
	RateOfReturnPerYear    float64
	ReturnIndeterminate    bool // the IRR root finder did not converge
	LineItems              []*Transaction
}

// SnapshotOption tunes a security snapshot computation.
type SnapshotOption func(*snapshotOptions)

type snapshotOptions struct {
	portfolios []string
	workers    int
}

// WithPortfolios restricts the snapshot to the named portfolios, rewriting
// the ledger through the portfolio filter first.
func WithPortfolios(names ...string) SnapshotOption {
	return func(o *snapshotOptions) { o.portfolios = names }
}

// WithWorkers fans the per-security computations out over n workers. Each
// worker gets its own cost basis tracker; trackers are never shared.
func WithWorkers(n int) SnapshotOption {
	return func(o *snapshotOptions) { o.workers = n }
}

// ComputeSecuritySnapshot computes a PerformanceRecord for every security
// with any holding or activity in the interval. This is the eager pass: every
// field is computed up front. Records come back in declaration order
// regardless of worker count.
func ComputeSecuritySnapshot(client *Client, converter CurrencyConverter, interval Range, opts ...SnapshotOption) ([]PerformanceRecord, error) {
	options := snapshotOptions{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&options)
	}
	if len(options.portfolios) > 0 {
		client = FilterPortfolios(options.portfolios...)(client)
	}

	tickers := client.Securities()
	records := make([]*PerformanceRecord, len(tickers))

	var g errgroup.Group
	g.SetLimit(max(options.workers, 1))
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			rec, err := computeRecord(client, converter, interval, ticker)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]PerformanceRecord, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// computeRecord builds the record for one security, or nil when the security
// has neither a holding at the interval end nor any activity within it.
func computeRecord(client *Client, converter CurrencyConverter, interval Range, ticker string) (*PerformanceRecord, error) {
	tracker := NewCostBasisTracker(client)
	if err := tracker.Replay(interval.To); err != nil {
		return nil, err
	}

	rec := &PerformanceRecord{Security: ticker}
	rec.SharesHeld = tracker.Shares(ticker)
	rec.LineItems = securityLineItems(client, interval, ticker)
	if rec.SharesHeld.IsZero() && len(rec.LineItems) == 0 {
		return nil, nil
	}

	var err error
	if rec.MarketValue, err = convertedMarketValue(client, converter, ticker, interval.To); err != nil {
		return nil, err
	}
	if rec.FifoCost, err = tracker.CostBasis(ticker, FIFO, converter, interval.To); err != nil {
		return nil, err
	}
	if rec.MovingAverageCost, err = tracker.CostBasis(ticker, AverageCost, converter, interval.To); err != nil {
		return nil, err
	}
	rec.CapitalGainsOnHoldings = rec.MarketValue.Sub(rec.FifoCost)

	if rec.DividendCount, rec.DividendSum, err = dividendStats(client, converter, interval, ticker); err != nil {
		return nil, err
	}

	rate, err := annualRateOfReturn(client, converter, interval.To, ticker)
	switch {
	case errors.Is(err, ErrNoConvergence):
		rec.ReturnIndeterminate = true
	case err != nil:
		return nil, err
	default:
		rec.RateOfReturnPerYear = rate
	}
	return rec, nil
}

// securityLineItems returns the security's contributing transactions within
// the interval, portfolio and account legs merged chronologically.
func securityLineItems(client *Client, interval Range, ticker string) []*Transaction {
	var items []*Transaction
	timeline := append(client.SecurityTransactions(ticker), client.SecurityCashEvents(ticker)...)
	sortTransactions(timeline)
	for _, tx := range timeline {
		if interval.Contains(tx.Date) {
			items = append(items, tx)
		}
	}
	return items
}

// convertedMarketValue values the client's position in the base currency.
func convertedMarketValue(client *Client, converter CurrencyConverter, ticker string, on Date) (Money, error) {
	value, err := client.MarketValue(ticker, on)
	if err != nil {
		return Money{}, err
	}
	return converter.Convert(value, on)
}

// dividendStats counts and sums the dividends received within the interval,
// converted at each payment date.
func dividendStats(client *Client, converter CurrencyConverter, interval Range, ticker string) (int, Money, error) {
	count := 0
	var sum Money
	for _, tx := range client.SecurityCashEvents(ticker) {
		if tx.Type != Dividends || !interval.Contains(tx.Date) {
			continue
		}
		converted, err := converter.Convert(tx.Amount, tx.Date)
		if err != nil {
			return 0, Money{}, err
		}
		count++
		sum = sum.Add(converted)
	}
	return count, sum, nil
}

// annualRateOfReturn computes the IRR of the security's full cash-flow
// history through 'through', terminating the series with the market value of
// any still-held position on that date.
func annualRateOfReturn(client *Client, converter CurrencyConverter, through Date, ticker string) (float64, error) {
	timeline := append(client.SecurityTransactions(ticker), client.SecurityCashEvents(ticker)...)
	sortTransactions(timeline)

	var flows []cashFlow
	for _, tx := range timeline {
		if tx.Date.After(through) {
			break
		}
		if client.AccountOf(tx) != nil && (tx.Type == Buy || tx.Type == Sell) {
			continue // cash leg; the portfolio leg carries the flow
		}
		converted, err := converter.Convert(tx.Amount, tx.Date)
		if err != nil {
			return 0, err
		}
		switch tx.Type {
		case Buy, DeliveryInbound:
			flows = append(flows, cashFlow{on: tx.Date, amount: -converted.AsFloat()})
		case Sell, DeliveryOutbound:
			flows = append(flows, cashFlow{on: tx.Date, amount: converted.AsFloat()})
		case Dividends, Interest, TaxRefund, FeesRefund:
			flows = append(flows, cashFlow{on: tx.Date, amount: converted.AsFloat()})
		case InterestCharge, Taxes, Fees:
			flows = append(flows, cashFlow{on: tx.Date, amount: -converted.AsFloat()})
		case TransferIn, TransferOut:
			// cost basis moves, cash does not
		case Deposit, Removal:
			// pure cash movements never reference a security
		}
	}

	if held := client.Position(ticker, through); !held.IsZero() {
		value, err := convertedMarketValue(client, converter, ticker, through)
		if err != nil {
			return 0, err
		}
		flows = append(flows, cashFlow{on: through, amount: value.AsFloat()})
	}
	return internalRateOfReturn(flows)
}

// LazyRecord computes each PerformanceRecord field on first access instead of
// up front. It exists as an independent second strategy: eager and lazy must
// agree on every field for every record, which the tests assert.
type LazyRecord struct {
	client    *Client
	converter CurrencyConverter
	interval  Range
	ticker    string

	tracker *CostBasisTracker // built on first cost-related accessor
}

// NewLazyRecord creates a lazily computed record for one security.
func NewLazyRecord(client *Client, converter CurrencyConverter, interval Range, ticker string) *LazyRecord {
	return &LazyRecord{client: client, converter: converter, interval: interval, ticker: ticker}
}

func (r *LazyRecord) replayed() (*CostBasisTracker, error) {
	if r.tracker == nil {
		tracker := NewCostBasisTracker(r.client)
		if err := tracker.Replay(r.interval.To); err != nil {
			return nil, err
		}
		r.tracker = tracker
	}
	return r.tracker, nil
}

// Security returns the ticker the record describes.
func (r *LazyRecord) Security() string { return r.ticker }

// SharesHeld returns the shares held at the interval end.
func (r *LazyRecord) SharesHeld() (Quantity, error) {
	tracker, err := r.replayed()
	if err != nil {
		return Quantity{}, err
	}
	return tracker.Shares(r.ticker), nil
}

// MarketValue returns the position's market value at the interval end.
func (r *LazyRecord) MarketValue() (Money, error) {
	return convertedMarketValue(r.client, r.converter, r.ticker, r.interval.To)
}

// FifoCost returns the FIFO cost of the held shares at the interval end.
func (r *LazyRecord) FifoCost() (Money, error) {
	tracker, err := r.replayed()
	if err != nil {
		return Money{}, err
	}
	return tracker.CostBasis(r.ticker, FIFO, r.converter, r.interval.To)
}

// MovingAverageCost returns the moving-average cost of the held shares at the
// interval end.
func (r *LazyRecord) MovingAverageCost() (Money, error) {
	tracker, err := r.replayed()
	if err != nil {
		return Money{}, err
	}
	return tracker.CostBasis(r.ticker, AverageCost, r.converter, r.interval.To)
}

// CapitalGainsOnHoldings returns market value minus FIFO cost.
func (r *LazyRecord) CapitalGainsOnHoldings() (Money, error) {
	value, err := r.MarketValue()
	if err != nil {
		return Money{}, err
	}
	cost, err := r.FifoCost()
	if err != nil {
		return Money{}, err
	}
	return value.Sub(cost), nil
}

// DividendCount returns the number of dividend events within the interval.
func (r *LazyRecord) DividendCount() (int, error) {
	count, _, err := dividendStats(r.client, r.converter, r.interval, r.ticker)
	return count, err
}

// DividendSum returns the dividends received within the interval.
func (r *LazyRecord) DividendSum() (Money, error) {
	_, sum, err := dividendStats(r.client, r.converter, r.interval, r.ticker)
	return sum, err
}

// RateOfReturnPerYear returns the security's money-weighted annual return
// over its full history through the interval end. ErrNoConvergence marks an
// indeterminate return.
func (r *LazyRecord) RateOfReturnPerYear() (float64, error) {
	return annualRateOfReturn(r.client, r.converter, r.interval.To, r.ticker)
}

// LineItems returns the contributing transactions within the interval.
func (r *LazyRecord) LineItems() []*Transaction {
	return securityLineItems(r.client, r.interval, r.ticker)
}
