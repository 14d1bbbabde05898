package performance

import "time"

// USD is a helper for tests to create usd money from a constant.
func USD(v float64) Money { return M(v, "USD") }

// EUR is a helper for tests to create eur money from a constant.
func EUR(v float64) Money { return M(v, "EUR") }

// on is shorthand for a date in 2025, the year all fixtures live in.
func on(month time.Month, day int) Date { return NewDate(2025, month, day) }

// usdConverter returns an identity converter reporting in USD.
func usdConverter() *RateTable { return NewRateTable("USD") }

// buyShares appends the two linked legs of a purchase: the share leg on the
// portfolio and the cash debit on the account.
func buyShares(p *Portfolio, a *Account, day Date, ticker string, shares float64, amount Money, units ...Unit) (*Transaction, *Transaction) {
	leg := NewTransaction(Buy, day, ticker, Q(shares), amount, units...)
	cash := NewTransaction(Buy, day, ticker, Q(shares), amount)
	Link(leg, cash)
	p.Add(leg)
	a.Add(cash)
	return leg, cash
}

// sellShares appends the two linked legs of a sale. Amount is the net
// proceeds; an embedded fee or tax travels as units on the share leg.
func sellShares(p *Portfolio, a *Account, day Date, ticker string, shares float64, amount Money, units ...Unit) (*Transaction, *Transaction) {
	leg := NewTransaction(Sell, day, ticker, Q(shares), amount, units...)
	cash := NewTransaction(Sell, day, ticker, Q(shares), amount)
	Link(leg, cash)
	p.Add(leg)
	a.Add(cash)
	return leg, cash
}

// transferShares appends the two linked legs of an in-kind move between
// portfolios. Amount records the cost carried by the moved shares.
func transferShares(from, to *Portfolio, day Date, ticker string, shares float64, cost Money) (*Transaction, *Transaction) {
	out := NewTransaction(TransferOut, day, ticker, Q(shares), cost)
	in := NewTransaction(TransferIn, day, ticker, Q(shares), cost)
	Link(out, in)
	from.Add(out)
	to.Add(in)
	return out, in
}

// payDividend appends a dividend credit. Amount is the net received; the
// gross value and any withheld tax travel as units.
func payDividend(a *Account, day Date, ticker string, net Money, units ...Unit) *Transaction {
	tx := NewTransaction(Dividends, day, ticker, Q(0), net, units...)
	a.Add(tx)
	return tx
}

// singleCurrencyClient builds an all-USD client with one security and a year
// of activity: a deposit, a purchase, a dividend with withheld tax, and a
// partial sale carrying an embedded fee.
//
// By the interval end the client holds 6 shares worth 420 and 840 in cash.
func singleCurrencyClient() (*Client, Range) {
	c := NewClient("USD")
	acme := c.AddSecurity(NewSecurity("ACME", "Acme Corp", "USD"))
	acme.AddPrice(on(time.January, 15), USD(50))
	acme.AddPrice(on(time.December, 1), USD(70))

	growth := c.NewPortfolio("growth", "USD")
	cash := c.NewAccount("cash", "USD")
	cash.Add(NewTransaction(Deposit, on(time.January, 10), "", Q(0), USD(1000)))
	buyShares(growth, cash, on(time.January, 15), "ACME", 10, USD(500))
	payDividend(cash, on(time.June, 10), "ACME", USD(85),
		NewUnit(GrossValue, USD(100)), NewUnit(Tax, USD(15)))
	sellShares(growth, cash, on(time.July, 15), "ACME", 4, USD(255),
		NewUnit(Fee, USD(5)))
	c.Index()
	return c, NewRange(on(time.January, 5), on(time.December, 31))
}

// twoPortfolioClient builds a USD client with two independent portfolios,
// each funded by its own account and holding its own security.
func twoPortfolioClient() *Client {
	c := NewClient("USD")
	acme := c.AddSecurity(NewSecurity("ACME", "Acme Corp", "USD"))
	acme.AddPrice(on(time.January, 15), USD(50))
	acme.AddPrice(on(time.December, 1), USD(60))
	beta := c.AddSecurity(NewSecurity("BETA", "Beta Industries", "USD"))
	beta.AddPrice(on(time.January, 15), USD(10))
	beta.AddPrice(on(time.December, 1), USD(20))

	p1 := c.NewPortfolio("p1", "USD")
	p2 := c.NewPortfolio("p2", "USD")
	cash1 := c.NewAccount("p1-cash", "USD")
	cash2 := c.NewAccount("p2-cash", "USD")
	cash1.Add(NewTransaction(Deposit, on(time.January, 10), "", Q(0), USD(1000)))
	cash2.Add(NewTransaction(Deposit, on(time.January, 10), "", Q(0), USD(500)))
	buyShares(p1, cash1, on(time.January, 15), "ACME", 10, USD(500))
	buyShares(p2, cash2, on(time.January, 15), "BETA", 10, USD(100))
	c.Index()
	return c
}
