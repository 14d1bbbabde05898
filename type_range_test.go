package performance

import (
	"testing"
	"time"
)

func TestNewRangeSwapsBounds(t *testing.T) {
	from := NewDate(2025, time.March, 1)
	to := NewDate(2025, time.June, 30)
	if got := NewRange(to, from); got.From != from || got.To != to {
		t.Errorf("NewRange(to, from) = %s, want %s..%s", got, from, to)
	}
}

func TestRangeContains(t *testing.T) {
	r := NewRange(NewDate(2025, time.March, 1), NewDate(2025, time.June, 30))
	tests := []struct {
		date Date
		want bool
	}{
		{NewDate(2025, time.February, 28), false},
		{NewDate(2025, time.March, 1), true}, // boundaries are inclusive
		{NewDate(2025, time.April, 15), true},
		{NewDate(2025, time.June, 30), true},
		{NewDate(2025, time.July, 1), false},
	}
	for _, tc := range tests {
		if got := r.Contains(tc.date); got != tc.want {
			t.Errorf("Contains(%s) = %v, want %v", tc.date, got, tc.want)
		}
	}
}

func TestRangeDays(t *testing.T) {
	sameDay := NewRange(NewDate(2025, time.March, 1), NewDate(2025, time.March, 1))
	if got := sameDay.Days(); got != 1 {
		t.Errorf("single-day range covers %d days, want 1", got)
	}
	week := NewRange(NewDate(2025, time.March, 1), NewDate(2025, time.March, 7))
	if got := week.Days(); got != 7 {
		t.Errorf("week range covers %d days, want 7", got)
	}
}
