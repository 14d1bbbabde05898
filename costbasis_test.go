package performance

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// replayed builds and replays a tracker through year end, failing the test on
// any ledger error.
func replayed(t *testing.T, c *Client) *CostBasisTracker {
	t.Helper()
	tracker := NewCostBasisTracker(c)
	if err := tracker.Replay(on(time.December, 31)); err != nil {
		t.Fatalf("Replay() = %v", err)
	}
	return tracker
}

// costBasisOf queries the tracker in USD at year end, failing the test on any
// conversion error.
func costBasisOf(t *testing.T, tracker *CostBasisTracker, ticker string, method CostBasisMethod) Money {
	t.Helper()
	cost, err := tracker.CostBasis(ticker, method, usdConverter(), on(time.December, 31))
	if err != nil {
		t.Fatalf("CostBasis(%s, %s) = %v", ticker, method, err)
	}
	return cost
}

func TestTransferCarriesFifoCost(t *testing.T) {
	// Buying 10 shares at 15 and 50 shares at 20 costs 1150. Moving them all
	// to another portfolio and selling there must realize against that same
	// 1150, exactly as if the shares had never moved.
	build := func(viaTransfer bool) (*Client, *Transaction) {
		c := NewClient("USD")
		c.AddSecurity(NewSecurity("ACME", "Acme Corp", "USD"))
		a := c.NewPortfolio("a", "USD")
		b := c.NewPortfolio("b", "USD")
		cash := c.NewAccount("cash", "USD")
		buyShares(a, cash, on(time.January, 10), "ACME", 10, USD(150))
		buyShares(a, cash, on(time.January, 20), "ACME", 50, USD(1000))
		seller := a
		if viaTransfer {
			transferShares(a, b, on(time.February, 1), "ACME", 60, USD(1150))
			seller = b
		}
		sell, _ := sellShares(seller, cash, on(time.February, 10), "ACME", 60, USD(1500))
		c.Index()
		return c, sell
	}

	for _, viaTransfer := range []bool{false, true} {
		c, sell := build(viaTransfer)
		tracker := replayed(t, c)
		gain, ok := tracker.RealizedGain(sell)
		if !ok {
			t.Fatalf("viaTransfer=%v: sale was not tracked", viaTransfer)
		}
		if want := USD(350); !gain.Equal(want) {
			t.Errorf("viaTransfer=%v: realized gain = %s, want %s", viaTransfer, gain, want)
		}
		if shares := tracker.Shares("ACME"); !shares.IsZero() {
			t.Errorf("viaTransfer=%v: shares after full sale = %s, want 0", viaTransfer, shares)
		}
	}
}

func TestPartialTransferSplitsLots(t *testing.T) {
	c := NewClient("USD")
	c.AddSecurity(NewSecurity("ACME", "Acme Corp", "USD"))
	a := c.NewPortfolio("a", "USD")
	b := c.NewPortfolio("b", "USD")
	cash := c.NewAccount("cash", "USD")
	buyShares(a, cash, on(time.January, 10), "ACME", 10, USD(150))
	buyShares(a, cash, on(time.January, 20), "ACME", 50, USD(1000))
	// 30 shares leave: the whole first lot (150) and 20/50 of the second (400).
	transferShares(a, b, on(time.February, 1), "ACME", 30, USD(550))
	c.Index()

	tracker := replayed(t, c)
	tests := []struct {
		portfolio *Portfolio
		method    CostBasisMethod
		want      Money
	}{
		{a, FIFO, USD(600)},
		{b, FIFO, USD(550)},
		{a, AverageCost, USD(575)},
		{b, AverageCost, USD(575)},
	}
	for _, tc := range tests {
		got := tracker.PortfolioCostBasis(tc.portfolio, "ACME", tc.method)
		if !got.EqualRounded(tc.want) {
			t.Errorf("%s cost in %s = %s, want %s", tc.method, tc.portfolio.Name, got, tc.want)
		}
	}
	if total := costBasisOf(t, tracker, "ACME", FIFO); !total.Equal(USD(1150)) {
		t.Errorf("total FIFO cost = %s, want %s", total, USD(1150))
	}
}

func TestMovingAverageDisposal(t *testing.T) {
	c := NewClient("USD")
	c.AddSecurity(NewSecurity("ACME", "Acme Corp", "USD"))
	p := c.NewPortfolio("main", "USD")
	cash := c.NewAccount("cash", "USD")
	buyShares(p, cash, on(time.January, 10), "ACME", 10, USD(100))
	buyShares(p, cash, on(time.January, 20), "ACME", 10, USD(200))
	sell, _ := sellShares(p, cash, on(time.February, 1), "ACME", 10, USD(180))
	c.Index()

	tracker := replayed(t, c)
	// FIFO consumes the oldest lot (cost 100); the moving average consumes
	// 10 x 15.
	if got := costBasisOf(t, tracker, "ACME", FIFO); !got.Equal(USD(200)) {
		t.Errorf("FIFO cost = %s, want %s", got, USD(200))
	}
	if got := costBasisOf(t, tracker, "ACME", AverageCost); !got.Equal(USD(150)) {
		t.Errorf("average cost = %s, want %s", got, USD(150))
	}
	gain, _ := tracker.RealizedGain(sell)
	if !gain.Equal(USD(80)) {
		t.Errorf("realized gain = %s, want %s", gain, USD(80))
	}
	year := NewRange(on(time.January, 1), on(time.December, 31))
	got, err := tracker.RealizedGains("ACME", year, usdConverter())
	if err != nil {
		t.Fatalf("RealizedGains() = %v", err)
	}
	if !got.Equal(USD(80)) {
		t.Errorf("realized gains over the year = %s, want %s", got, USD(80))
	}
}

func TestOversellFails(t *testing.T) {
	c := NewClient("USD")
	c.AddSecurity(NewSecurity("ACME", "Acme Corp", "USD"))
	p := c.NewPortfolio("main", "USD")
	cash := c.NewAccount("cash", "USD")
	buyShares(p, cash, on(time.January, 10), "ACME", 5, USD(50))
	sellShares(p, cash, on(time.February, 1), "ACME", 10, USD(120))
	c.Index()

	err := NewCostBasisTracker(c).Replay(on(time.December, 31))
	var integrity *DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("Replay() = %v, want a DataIntegrityError", err)
	}
	if len(integrity.Transactions) == 0 {
		t.Error("integrity error carries no offending transaction")
	}
}

func TestUnpairedTransferInFails(t *testing.T) {
	c := NewClient("USD")
	c.AddSecurity(NewSecurity("ACME", "Acme Corp", "USD"))
	p := c.NewPortfolio("main", "USD")
	p.Add(NewTransaction(TransferIn, on(time.January, 10), "ACME", Q(10), USD(150)))
	c.Index()

	err := NewCostBasisTracker(c).Replay(on(time.December, 31))
	var integrity *DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("Replay() = %v, want a DataIntegrityError", err)
	}
}

func TestTrackerIsSingleUse(t *testing.T) {
	c, _ := singleCurrencyClient()
	tracker := NewCostBasisTracker(c)
	if err := tracker.Replay(on(time.December, 31)); err != nil {
		t.Fatalf("first Replay() = %v", err)
	}
	if err := tracker.Replay(on(time.December, 31)); err == nil {
		t.Error("second Replay() succeeded, want an error")
	}
}

func TestSameDayPairOrder(t *testing.T) {
	// The two legs of a same-day transfer must resolve regardless of which
	// leg the timeline reaches first: the in leg pulls its counterpart
	// forward. Adding the destination portfolio first makes its leg sort
	// ahead of the out leg.
	c := NewClient("USD")
	c.AddSecurity(NewSecurity("ACME", "Acme Corp", "USD"))
	b := c.NewPortfolio("b", "USD")
	a := c.NewPortfolio("a", "USD")
	cash := c.NewAccount("cash", "USD")
	buyShares(a, cash, on(time.January, 10), "ACME", 10, USD(150))
	out := NewTransaction(TransferOut, on(time.February, 1), "ACME", Q(10), USD(150))
	in := NewTransaction(TransferIn, on(time.February, 1), "ACME", Q(10), USD(150))
	Link(out, in)
	b.Add(in)
	a.Add(out)
	c.Index()

	tracker := replayed(t, c)
	if got := tracker.PortfolioCostBasis(b, "ACME", FIFO); !got.Equal(USD(150)) {
		t.Errorf("destination FIFO cost = %s, want %s", got, USD(150))
	}
	if got := tracker.PortfolioCostBasis(a, "ACME", FIFO); !got.IsZero() {
		t.Errorf("source FIFO cost = %s, want 0", got)
	}
}

func TestSameDayBuyBeforeTransferOut(t *testing.T) {
	// The shares leaving in a same-day transfer were bought earlier that same
	// day. The destination portfolio is declared first, so its in leg sorts
	// ahead of both the buy and the out leg; the replay must still let the buy
	// cover the disposal instead of reporting an oversell.
	c := NewClient("USD")
	c.AddSecurity(NewSecurity("ACME", "Acme Corp", "USD"))
	b := c.NewPortfolio("b", "USD")
	a := c.NewPortfolio("a", "USD")
	cash := c.NewAccount("cash", "USD")
	out := NewTransaction(TransferOut, on(time.February, 1), "ACME", Q(10), USD(150))
	in := NewTransaction(TransferIn, on(time.February, 1), "ACME", Q(10), USD(150))
	Link(out, in)
	b.Add(in)
	buyShares(a, cash, on(time.February, 1), "ACME", 10, USD(150))
	a.Add(out)
	c.Index()

	tracker := replayed(t, c)
	if got := tracker.PortfolioCostBasis(b, "ACME", FIFO); !got.Equal(USD(150)) {
		t.Errorf("destination FIFO cost = %s, want %s", got, USD(150))
	}
	if got := tracker.PortfolioCostBasis(a, "ACME", FIFO); !got.IsZero() {
		t.Errorf("source FIFO cost = %s, want 0", got)
	}
	if got := tracker.Shares("ACME"); !got.Equal(Q(10)) {
		t.Errorf("shares = %s, want 10", got)
	}
}

func TestMixedCurrencyCostBasis(t *testing.T) {
	// The same security held in a dollar and a euro portfolio: each scope
	// keeps its cost in its own currency and the aggregate converts scope by
	// scope into the base.
	c := NewClient("USD")
	c.AddSecurity(NewSecurity("ACME", "Acme Corp", "USD"))
	us := c.NewPortfolio("us", "USD")
	eu := c.NewPortfolio("eu", "EUR")
	usdCash := c.NewAccount("usd-cash", "USD")
	eurCash := c.NewAccount("eur-cash", "EUR")
	buyShares(us, usdCash, on(time.January, 10), "ACME", 10, USD(150))
	buyShares(eu, eurCash, on(time.January, 20), "ACME", 10, EUR(100))
	c.Index()

	rates := NewRateTable("USD")
	rates.AddRate("EUR", on(time.January, 1), decimal.NewFromFloat(1.10))

	tracker := replayed(t, c)
	for _, method := range []CostBasisMethod{FIFO, AverageCost} {
		got, err := tracker.CostBasis("ACME", method, rates, on(time.December, 31))
		if err != nil {
			t.Fatalf("CostBasis(%s) = %v", method, err)
		}
		// 150 USD + 100 EUR x 1.10
		if want := USD(260); !got.EqualRounded(want) {
			t.Errorf("%s cost = %s, want %s", method, got, want)
		}
	}
	if got := tracker.Shares("ACME"); !got.Equal(Q(20)) {
		t.Errorf("shares = %s, want 20", got)
	}
}
