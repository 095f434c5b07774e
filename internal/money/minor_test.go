package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToMinor(t *testing.T) {
	cases := map[string]int64{
		"0":       0,
		"1":       100,
		"12.34":   1234,
		"0.005":   1,
		"-12.345": -1235,
	}
	for in, want := range cases {
		if got := ToMinor(decimal.RequireFromString(in)); got != want {
			t.Errorf("ToMinor(%s) = %d, want %d", in, got, want)
		}
	}
}

func TestFromMinor(t *testing.T) {
	if got := FromMinor(1234); !got.Equal(decimal.RequireFromString("12.34")) {
		t.Errorf("FromMinor(1234) = %s", got)
	}
	if got := FromMinorPtr(nil); !got.IsZero() {
		t.Errorf("FromMinorPtr(nil) = %s", got)
	}
}

func TestTruncateAndRound(t *testing.T) {
	d := decimal.RequireFromString("33.336")
	if got := Truncate2(d); !got.Equal(decimal.RequireFromString("33.33")) {
		t.Errorf("Truncate2 = %s", got)
	}
	if got := Round2(d); !got.Equal(decimal.RequireFromString("33.34")) {
		t.Errorf("Round2 = %s", got)
	}
}
