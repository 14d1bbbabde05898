package performance

// Trail is a backward-pointing explanation record: it says which inputs
// produced a computed value. Trails are used only for lookup and debugging,
// never for ownership or mutation — the transactions they reference stay
// owned by their portfolio or account.
type Trail struct {
	Label        string
	Value        Money
	Transactions []*Transaction
	Inputs       []Trail
}

// NewTrail creates an explanation record for a computed value.
func NewTrail(label string, value Money, inputs ...Trail) Trail {
	return Trail{Label: label, Value: value, Inputs: inputs}
}

// WithTransactions attaches the source transactions the value came from.
func (t Trail) WithTransactions(txs ...*Transaction) Trail {
	t.Transactions = append(t.Transactions, txs...)
	return t
}
