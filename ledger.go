package performance

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Security identifies a tradable instrument and carries its sparse price
// history. Prices are quoted in the security's currency; lookups return the
// latest price on or before a date.
type Security struct {
	Ticker   string
	Name     string
	Currency string

	prices []pricePoint // sorted by date ascending
}

type pricePoint struct {
	on    Date
	price Money
}

// NewSecurity declares a security quoted in the given currency.
func NewSecurity(ticker, name, currency string) *Security {
	return &Security{Ticker: ticker, Name: name, Currency: currency}
}

// AddPrice records the closing price of the security on a date.
func (s *Security) AddPrice(on Date, price Money) {
	s.prices = append(s.prices, pricePoint{on: on, price: price})
	sort.SliceStable(s.prices, func(i, j int) bool { return s.prices[i].on.Before(s.prices[j].on) })
}

// PriceAsOf returns the latest known price on or before the given date.
func (s *Security) PriceAsOf(on Date) (Money, bool) {
	var last Money
	found := false
	for _, p := range s.prices {
		if p.on.After(on) {
			break
		}
		last, found = p.price, true
	}
	return last, found
}

// Portfolio owns security transactions (buys, sells, deliveries, transfers).
type Portfolio struct {
	ID           uuid.UUID
	Name         string
	Currency     string
	Transactions []*Transaction
}

// Add appends transactions to the portfolio.
func (p *Portfolio) Add(txs ...*Transaction) {
	p.Transactions = append(p.Transactions, txs...)
}

// Account owns cash transactions (deposits, removals, earnings, fees, taxes,
// and the cash legs of security trades).
type Account struct {
	ID           uuid.UUID
	Name         string
	Currency     string
	Transactions []*Transaction
}

// Add appends transactions to the account.
func (a *Account) Add(txs ...*Transaction) {
	a.Transactions = append(a.Transactions, txs...)
}

// Balance returns the account's cash balance on a date.
func (a *Account) Balance(on Date) Money {
	balance := M(0, a.Currency)
	for _, tx := range a.Transactions {
		if tx.Date.After(on) {
			continue
		}
		switch tx.Type {
		case Deposit, Sell, Dividends, Interest, TaxRefund, FeesRefund, TransferIn:
			balance = balance.Add(tx.Amount)
		case Removal, Buy, InterestCharge, Taxes, Fees, TransferOut:
			balance = balance.Sub(tx.Amount)
		case DeliveryInbound, DeliveryOutbound:
			// deliveries move shares, never cash; they cannot be account-owned
		}
	}
	return balance
}

// Client is the fully loaded, immutable snapshot of a ledger: all portfolios,
// accounts, securities and their transactions, with cross-entry links
// resolvable through the transaction table.
type Client struct {
	BaseCurrency string
	Portfolios   []*Portfolio
	Accounts     []*Account

	securities map[string]*Security
	tickers    []string // declaration order

	byID           map[uuid.UUID]*Transaction
	portfolioOwner map[uuid.UUID]*Portfolio
	accountOwner   map[uuid.UUID]*Account
	indexed        bool
}

// NewClient creates an empty client reporting in the given base currency.
func NewClient(baseCurrency string) *Client {
	return &Client{
		BaseCurrency: baseCurrency,
		securities:   make(map[string]*Security),
	}
}

// AddSecurity declares a security on the client.
func (c *Client) AddSecurity(sec *Security) *Security {
	if _, exists := c.securities[sec.Ticker]; !exists {
		c.tickers = append(c.tickers, sec.Ticker)
	}
	c.securities[sec.Ticker] = sec
	return sec
}

// Security returns the declared security for a ticker, or nil.
func (c *Client) Security(ticker string) *Security {
	return c.securities[ticker]
}

// Securities returns all declared tickers in declaration order.
func (c *Client) Securities() []string {
	out := make([]string, len(c.tickers))
	copy(out, c.tickers)
	return out
}

// NewPortfolio creates and registers a portfolio on the client.
func (c *Client) NewPortfolio(name, currency string) *Portfolio {
	p := &Portfolio{ID: uuid.New(), Name: name, Currency: currency}
	c.Portfolios = append(c.Portfolios, p)
	return p
}

// NewAccount creates and registers an account on the client.
func (c *Client) NewAccount(name, currency string) *Account {
	a := &Account{ID: uuid.New(), Name: name, Currency: currency}
	c.Accounts = append(c.Accounts, a)
	return a
}

// Index finalizes the client for querying: it assigns the deterministic
// same-day tie-break sequence, sorts every owner's transactions
// chronologically, and builds the cross-entry lookup table.
//
// Index must be called after the graph is fully loaded and before any
// computation. It is idempotent.
func (c *Client) Index() {
	c.byID = make(map[uuid.UUID]*Transaction)
	c.portfolioOwner = make(map[uuid.UUID]*Portfolio)
	c.accountOwner = make(map[uuid.UUID]*Account)
	seq := 0
	for _, p := range c.Portfolios {
		for _, tx := range p.Transactions {
			if tx.seq == 0 {
				seq++
				tx.seq = seq
			}
			c.byID[tx.ID] = tx
			c.portfolioOwner[tx.ID] = p
		}
	}
	for _, a := range c.Accounts {
		for _, tx := range a.Transactions {
			if tx.seq == 0 {
				seq++
				tx.seq = seq
			}
			c.byID[tx.ID] = tx
			c.accountOwner[tx.ID] = a
		}
	}
	for _, p := range c.Portfolios {
		sortTransactions(p.Transactions)
	}
	for _, a := range c.Accounts {
		sortTransactions(a.Transactions)
	}
	c.indexed = true
}

// sortTransactions orders by date, same-day ties by insertion sequence.
func sortTransactions(txs []*Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Before(txs[j].Date) && !txs[i].Date.After(txs[j].Date) {
			return txs[i].seq < txs[j].seq
		}
		return txs[i].Date.Before(txs[j].Date)
	})
}

// Resolve looks up the transaction behind a cross-entry reference.
func (c *Client) Resolve(id uuid.UUID) (*Transaction, bool) {
	if id == uuid.Nil {
		return nil, false
	}
	tx, ok := c.byID[id]
	return tx, ok
}

// SecurityTransactions merges the security's transactions across all
// portfolios into one chronological timeline.
func (c *Client) SecurityTransactions(ticker string) []*Transaction {
	var merged []*Transaction
	for _, p := range c.Portfolios {
		for _, tx := range p.Transactions {
			if tx.Security == ticker {
				merged = append(merged, tx)
			}
		}
	}
	sortTransactions(merged)
	return merged
}

// SecurityCashEvents merges the account-owned cash events referencing the
// security (dividends, fees, taxes) across all accounts.
func (c *Client) SecurityCashEvents(ticker string) []*Transaction {
	var merged []*Transaction
	for _, a := range c.Accounts {
		for _, tx := range a.Transactions {
			if tx.Security == ticker {
				merged = append(merged, tx)
			}
		}
	}
	sortTransactions(merged)
	return merged
}

// Position returns the number of shares of a security held across all
// portfolios on a date.
func (c *Client) Position(ticker string, on Date) Quantity {
	var position Quantity
	for _, tx := range c.SecurityTransactions(ticker) {
		if tx.Date.After(on) {
			break
		}
		switch {
		case tx.Type.IsInbound():
			position = position.Add(tx.Shares)
		case tx.Type.IsOutbound():
			position = position.Sub(tx.Shares)
		}
	}
	return position
}

// MarketValue returns the market value of the client's position in a security
// on a date, in the security's currency.
func (c *Client) MarketValue(ticker string, on Date) (Money, error) {
	sec := c.Security(ticker)
	if sec == nil {
		return Money{}, fmt.Errorf("security %q not declared", ticker)
	}
	pos := c.Position(ticker, on)
	if pos.IsZero() {
		return M(0, sec.Currency), nil
	}
	price, ok := sec.PriceAsOf(on)
	if !ok {
		return Money{}, fmt.Errorf("no price for security %q as of %s", ticker, on)
	}
	return price.Mul(pos), nil
}

// PortfolioOf returns the portfolio owning the transaction, or nil when it is
// account-owned.
func (c *Client) PortfolioOf(tx *Transaction) *Portfolio {
	return c.portfolioOwner[tx.ID]
}

// AccountOf returns the account owning the transaction, or nil when it is
// portfolio-owned.
func (c *Client) AccountOf(tx *Transaction) *Account {
	return c.accountOwner[tx.ID]
}
