package performance

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType identifies the kind of a ledger entry.
//
// The set is closed on purpose: every consumer (cost basis tracker,
// attribution pass, trade collector) switches exhaustively over it, so adding
// a kind forces a review of each switch.
type TransactionType int

const (
	Buy TransactionType = iota
	Sell
	DeliveryInbound
	DeliveryOutbound
	TransferIn
	TransferOut
	Dividends
	Interest
	InterestCharge
	Deposit
	Removal
	Taxes
	TaxRefund
	Fees
	FeesRefund
)

func (t TransactionType) String() string {
	switch t {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	case DeliveryInbound:
		return "delivery-inbound"
	case DeliveryOutbound:
		return "delivery-outbound"
	case TransferIn:
		return "transfer-in"
	case TransferOut:
		return "transfer-out"
	case Dividends:
		return "dividends"
	case Interest:
		return "interest"
	case InterestCharge:
		return "interest-charge"
	case Deposit:
		return "deposit"
	case Removal:
		return "removal"
	case Taxes:
		return "taxes"
	case TaxRefund:
		return "tax-refund"
	case Fees:
		return "fees"
	case FeesRefund:
		return "fees-refund"
	default:
		return fmt.Sprintf("transaction-type(%d)", int(t))
	}
}

// IsInbound reports whether the type adds shares to a holding.
func (t TransactionType) IsInbound() bool {
	return t == Buy || t == DeliveryInbound || t == TransferIn
}

// IsOutbound reports whether the type removes shares from a holding.
func (t TransactionType) IsOutbound() bool {
	return t == Sell || t == DeliveryOutbound || t == TransferOut
}

// UnitType tags a sub-amount inside a transaction.
type UnitType int

const (
	GrossValue UnitType = iota
	Tax
	Fee
)

func (u UnitType) String() string {
	switch u {
	case GrossValue:
		return "gross-value"
	case Tax:
		return "tax"
	case Fee:
		return "fee"
	default:
		return fmt.Sprintf("unit-type(%d)", int(u))
	}
}

// Unit is a tagged sub-amount of a transaction, such as the tax withheld on a
// dividend. Amount is always in the owning account or portfolio's currency;
// Forex optionally carries the original amount in a foreign currency together
// with the exchange rate that was applied.
type Unit struct {
	Kind   UnitType
	Amount Money
	Forex  Money           // zero value when the unit is not cross-currency
	Rate   decimal.Decimal // exchange rate Forex -> Amount, zero when not cross-currency
}

// NewUnit creates a single-currency unit.
func NewUnit(kind UnitType, amount Money) Unit {
	return Unit{Kind: kind, Amount: amount}
}

// NewForexUnit creates a cross-currency unit carrying the original foreign
// amount and the exchange rate applied to it.
func NewForexUnit(kind UnitType, amount, forex Money, rate decimal.Decimal) Unit {
	return Unit{Kind: kind, Amount: amount, Forex: forex, Rate: rate}
}

func (u Unit) String() string {
	if u.Forex.IsZero() {
		return fmt.Sprintf("%s %s", u.Kind, u.Amount)
	}
	return fmt.Sprintf("%s %s (from %s @ %s)", u.Kind, u.Amount, u.Forex, u.Rate)
}

// Transaction is an immutable, dated ledger entry. It is owned by exactly one
// Portfolio or Account; CrossEntry is a weak, index-based reference to the
// paired leg of the same economic event (the account debit of a buy, the
// counterpart of a transfer) resolved through the client's transaction table,
// never through a mutual pointer pair.
type Transaction struct {
	ID         uuid.UUID
	Type       TransactionType
	Date       Date
	Security   string // ticker, empty for pure cash entries
	Shares     Quantity
	Amount     Money  // in the owning account/portfolio's currency
	Units      []Unit // optional GROSS_VALUE/TAX/FEE breakdown
	CrossEntry uuid.UUID

	seq int // insertion order, breaks same-day ties deterministically
}

// NewTransaction creates a dated ledger entry with a fresh identity.
func NewTransaction(t TransactionType, on Date, security string, shares Quantity, amount Money, units ...Unit) *Transaction {
	return &Transaction{
		ID:       uuid.New(),
		Type:     t,
		Date:     on,
		Security: security,
		Shares:   shares,
		Amount:   amount,
		Units:    units,
	}
}

// Link pairs two transactions as the legs of one economic event.
// Both legs point at each other by ID; the relation stays navigational only.
func Link(a, b *Transaction) {
	a.CrossEntry = b.ID
	b.CrossEntry = a.ID
}

// UnitSum returns the total of all units of a given kind.
func (t *Transaction) UnitSum(kind UnitType) Money {
	total := M(0, t.Amount.Currency())
	for _, u := range t.Units {
		if u.Kind == kind {
			total = total.Add(u.Amount)
		}
	}
	return total
}

// GrossAmount returns the gross value of the transaction: the GROSS_VALUE
// unit when present, otherwise the net amount grossed back up by the tax and
// fee units.
func (t *Transaction) GrossAmount() Money {
	gross := t.UnitSum(GrossValue)
	if !gross.IsZero() {
		return gross
	}
	return t.Amount.Add(t.UnitSum(Tax)).Add(t.UnitSum(Fee))
}

func (t *Transaction) String() string {
	if t.Security != "" {
		return fmt.Sprintf("%s %s %s x %s %s", t.Date, t.Type, t.Security, t.Shares, t.Amount)
	}
	return fmt.Sprintf("%s %s %s", t.Date, t.Type, t.Amount)
}
