package performance

import (
	"github.com/google/uuid"
)

// Filter is a pure transform producing a derived, consistently scoped client
// from a full one. Filters never mutate their input: every retained
// transaction is copied, and a retained cross-entry leg whose counterpart
// falls outside the scope is rewritten into an equivalent standalone entry so
// balances and cost bases stay correct.
//
// The attribution engine produces identical category totals whether queried
// on the unfiltered client restricted after the fact or on the pre-filtered
// client, for any filter that is a pure subset projection.
type Filter func(*Client) *Client

// ChainFilters composes filters into one, applied left to right.
func ChainFilters(filters ...Filter) Filter {
	return func(c *Client) *Client {
		for _, f := range filters {
			c = f(c)
		}
		return c
	}
}

// FilterPortfolios keeps only the named portfolios (all accounts are
// retained). A transfer whose counterpart portfolio is excluded becomes an
// equivalent delivery at carried cost; a cash leg paired to an excluded
// portfolio becomes a deposit or removal.
func FilterPortfolios(names ...string) Filter {
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		keep[name] = true
	}

	return func(c *Client) *Client {
		excluded := func(id uuid.UUID) bool {
			counterpart, ok := c.Resolve(id)
			if !ok {
				return false // dangling legs stay dangling
			}
			owner := c.PortfolioOf(counterpart)
			return owner != nil && !keep[owner.Name]
		}

		derived := NewClient(c.BaseCurrency)
		for _, ticker := range c.Securities() {
			derived.AddSecurity(c.Security(ticker))
		}

		for _, p := range c.Portfolios {
			if !keep[p.Name] {
				continue
			}
			np := &Portfolio{ID: p.ID, Name: p.Name, Currency: p.Currency}
			for _, tx := range p.Transactions {
				cp := *tx
				switch cp.Type {
				case TransferIn:
					if excluded(cp.CrossEntry) {
						cp.Type = DeliveryInbound
						cp.CrossEntry = uuid.Nil
					}
				case TransferOut:
					if excluded(cp.CrossEntry) {
						cp.Type = DeliveryOutbound
						cp.CrossEntry = uuid.Nil
					}
				}
				np.Add(&cp)
			}
			derived.Portfolios = append(derived.Portfolios, np)
		}

		for _, account := range c.Accounts {
			na := &Account{ID: account.ID, Name: account.Name, Currency: account.Currency}
			for _, tx := range account.Transactions {
				cp := *tx
				switch cp.Type {
				case Buy:
					if excluded(cp.CrossEntry) {
						cp.Type = Removal
						cp.Security = ""
						cp.CrossEntry = uuid.Nil
					}
				case Sell:
					if excluded(cp.CrossEntry) {
						cp.Type = Deposit
						cp.Security = ""
						cp.CrossEntry = uuid.Nil
					}
				}
				na.Add(&cp)
			}
			derived.Accounts = append(derived.Accounts, na)
		}

		derived.Index()
		return derived
	}
}

// FilterSecurities keeps only the named securities. Cash events of excluded
// securities are rewritten into plain deposits/removals so account balances
// stay correct.
func FilterSecurities(tickers ...string) Filter {
	keep := make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		keep[ticker] = true
	}

	return func(c *Client) *Client {
		derived := NewClient(c.BaseCurrency)
		for _, ticker := range c.Securities() {
			if keep[ticker] {
				derived.AddSecurity(c.Security(ticker))
			}
		}

		// the security a cash leg belongs to, following the cross-entry when
		// the leg itself does not name one
		securityOf := func(tx *Transaction) string {
			if tx.Security != "" {
				return tx.Security
			}
			if counterpart, ok := c.Resolve(tx.CrossEntry); ok {
				return counterpart.Security
			}
			return ""
		}

		for _, p := range c.Portfolios {
			np := &Portfolio{ID: p.ID, Name: p.Name, Currency: p.Currency}
			for _, tx := range p.Transactions {
				if !keep[tx.Security] {
					continue
				}
				cp := *tx
				np.Add(&cp)
			}
			derived.Portfolios = append(derived.Portfolios, np)
		}

		for _, account := range c.Accounts {
			na := &Account{ID: account.ID, Name: account.Name, Currency: account.Currency}
			for _, tx := range account.Transactions {
				cp := *tx
				if sec := securityOf(tx); sec != "" && !keep[sec] {
					switch cp.Type {
					case Sell, Dividends, Interest, TaxRefund, FeesRefund:
						cp.Type = Deposit
					case Buy, Taxes, Fees, InterestCharge:
						cp.Type = Removal
					}
					cp.Security = ""
					cp.Units = nil
					cp.CrossEntry = uuid.Nil
				}
				na.Add(&cp)
			}
			derived.Accounts = append(derived.Accounts, na)
		}

		derived.Index()
		return derived
	}
}
