package performance

import "fmt"

// Range represents the reporting interval over which performance is measured.
// Both boundaries are inclusive.
type Range struct{ From, To Date }

// NewRange creates a new date range. If 'from' is after 'to', they are swapped.
func NewRange(from, to Date) Range {
	if from.After(to) {
		from, to = to, from
	}
	return Range{From: from, To: to}
}

// Contains returns true when date is included in the range (boundaries included).
func (r Range) Contains(date Date) bool { return !date.Before(r.From) && !date.After(r.To) }

// Days returns the number of days covered by the range, boundaries included.
// A range whose boundaries are the same day covers one day.
func (r Range) Days() int { return r.To.DaysSince(r.From) + 1 }

func (r Range) String() string { return fmt.Sprintf("%s..%s", r.From, r.To) }
