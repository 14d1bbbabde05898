package performance

import "testing"

func TestPercentString(t *testing.T) {
	if got := Percent(20).String(); got != "20.00%" {
		t.Errorf("String() = %q, want 20.00%%", got)
	}
	tests := []struct {
		in   Percent
		want string
	}{
		{Percent(20), "+20.00%"},
		{Percent(-3.5), "-3.50%"},
		{Percent(0), "-"},
	}
	for _, tc := range tests {
		if got := tc.in.SignedString(); got != tc.want {
			t.Errorf("SignedString(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPercentEqual(t *testing.T) {
	if !Percent(10).Equal(Percent(10.00001)) {
		t.Error("10 and 10.00001 percent must compare equal")
	}
	if Percent(10).Equal(Percent(10.1)) {
		t.Error("10 and 10.1 percent must not compare equal")
	}
}
