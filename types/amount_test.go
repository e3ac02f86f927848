package types

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    Amount
		wantErr bool
	}{
		{"100", Tokens(100), false},
		{"0.5", Units(500_000), false},
		{"499.999999", Tokens(500) - 1, false},
		{".25", Units(250_000), false},
		{"-3", Tokens(-3), false},
		{"1.0000001", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"1e3", 0, true},
		{"99999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %d units, want %d", got, tt.want)
			}
		})
	}
}

func TestAmountString(t *testing.T) {
	tests := []struct {
		amount Amount
		want   string
	}{
		{Tokens(100), "100"},
		{Units(4_931_506), "4.931506"},
		{Units(500_000), "0.5"},
		{Units(1), "0.000001"},
		{Tokens(-2) - Units(250_000), "-2.25"},
		{Zero, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.amount.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := Tokens(12).Display(); got != "12 zkRUNE" {
		t.Errorf("Display() = %q", got)
	}
}

func TestMulDivFloors(t *testing.T) {
	// 1000 tokens at 18% for 10 days.
	got := Tokens(1000).MulDiv(1800*10, 365*10000)
	if got != Units(4_931_506) {
		t.Errorf("MulDiv = %s, want 4.931506", got)
	}

	if got := Units(99).Percent(5); got != Units(4) {
		t.Errorf("Percent floor = %d, want 4", got)
	}

	// Intermediate product exceeds int64.
	big := Tokens(9_000_000)
	if got := big.MulDiv(1_000_000_000, 1_000_000_000); got != big {
		t.Errorf("MulDiv overflow path = %s, want %s", got, big)
	}
}

func TestAddChecked(t *testing.T) {
	const maxAmount = Amount(math.MaxInt64)
	tests := []struct {
		name    string
		a, b    Amount
		want    Amount
		wantOK  bool
		wantSat Amount
	}{
		{"small", Tokens(2), Tokens(3), Tokens(5), true, Tokens(5)},
		{"to max", maxAmount - 10, Units(10), maxAmount, true, maxAmount},
		{"past max", maxAmount - 10, Tokens(1), 0, false, maxAmount},
		{"negative", Tokens(2), Tokens(-3), Tokens(-1), true, Tokens(-1)},
		{"past min", Amount(math.MinInt64) + 1, Units(-2), 0, false, Amount(math.MinInt64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.a.AddChecked(tt.b)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("AddChecked = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
			if sat := tt.a.SaturatingAdd(tt.b); sat != tt.wantSat {
				t.Errorf("SaturatingAdd = %d, want %d", sat, tt.wantSat)
			}
		})
	}

	if got := Sum(maxAmount, Tokens(1), Tokens(1)); got != maxAmount {
		t.Errorf("Sum past max = %d, want saturated", got)
	}
}

func TestSqrt(t *testing.T) {
	tests := []struct {
		in   Amount
		want Amount
	}{
		{Tokens(400), Tokens(20)},
		{Tokens(10), Units(3_162_277)},
		{Tokens(1), Tokens(1)},
		{Zero, Zero},
		{Tokens(-4), Zero},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			if got := tt.in.Sqrt(); got != tt.want {
				t.Errorf("Sqrt(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestAmountJSON(t *testing.T) {
	type payload struct {
		Amount Amount `json:"amount"`
	}

	data, err := json.Marshal(payload{Amount: Units(12_500_000)})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"amount":"12.5"}` {
		t.Errorf("marshal = %s", data)
	}

	for _, in := range []string{`{"amount":"12.5"}`, `{"amount":12.5}`} {
		var p payload
		if err := json.Unmarshal([]byte(in), &p); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if p.Amount != Units(12_500_000) {
			t.Errorf("unmarshal %s = %s", in, p.Amount)
		}
	}

	var p payload
	if err := json.Unmarshal([]byte(`{"amount":"1.1234567"}`), &p); err == nil {
		t.Error("expected precision error")
	}
}
