package performance

// lot represents a single acquisition of a security, used for cost basis
// calculations. A lot is owned exclusively by the FIFO queue that created it;
// transfers hand the consumed lots over to the destination queue so the
// original acquisition dates and costs survive the move.
type lot struct {
	Date     Date
	Quantity Quantity
	Cost     Money // total cost of the lot in the holding currency
}

type lots []lot

// quantity returns the total number of shares across all lots.
func (l lots) quantity() Quantity {
	var total Quantity
	for _, currentLot := range l {
		total = total.Add(currentLot.Quantity)
	}
	return total
}

// totalCost returns the total cost across all lots.
func (l lots) totalCost() Money {
	var total Money
	for _, currentLot := range l {
		total = total.Add(currentLot.Cost)
	}
	return total
}

// consume removes a quantity of shares oldest-first and returns the remaining
// queue together with the consumed lots. A partially consumed lot is split
// pro-rata: the consumed part keeps the lot's acquisition date so a transfer
// can re-create it unchanged on the destination side.
func (l lots) consume(quantityToSell Quantity) (remaining, consumed lots) {
	for _, currentLot := range l {
		if quantityToSell.IsZero() {
			remaining = append(remaining, currentLot)
			continue
		}

		if currentLot.Quantity.GreaterThan(quantityToSell) {
			// Partial sale from this lot
			costOfSoldPortion := currentLot.Cost.Mul(quantityToSell).Div(currentLot.Quantity)
			consumed = append(consumed, lot{
				Date:     currentLot.Date,
				Quantity: quantityToSell,
				Cost:     costOfSoldPortion,
			})
			remaining = append(remaining, lot{
				Date:     currentLot.Date,
				Quantity: currentLot.Quantity.Sub(quantityToSell),
				Cost:     currentLot.Cost.Sub(costOfSoldPortion),
			})
			quantityToSell = Q(0)
		} else {
			// Full sale of this lot
			consumed = append(consumed, currentLot)
			quantityToSell = quantityToSell.Sub(currentLot.Quantity)
		}
	}
	return remaining, consumed
}
