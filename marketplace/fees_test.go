package marketplace

import (
	"math"
	"testing"

	"github.com/zkrune/tokenledger/types"
)

func TestSplit(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		price   types.Amount
		fee     types.Amount
		revenue types.Amount
	}{
		{types.Tokens(100), types.Tokens(5), types.Tokens(95)},
		{types.Tokens(10), types.MustParseAmount("0.5"), types.MustParseAmount("9.5")},
		{types.Units(19), types.Units(0), types.Units(19)},
		{types.MustParseAmount("33.333333"), types.MustParseAmount("1.666666"), types.MustParseAmount("31.666667")},
	}
	for _, tt := range tests {
		t.Run(tt.price.String(), func(t *testing.T) {
			fee, revenue := cfg.Split(tt.price)
			if fee != tt.fee || revenue != tt.revenue {
				t.Errorf("Split = %s/%s, want %s/%s", fee, revenue, tt.fee, tt.revenue)
			}
			if fee+revenue != tt.price {
				t.Errorf("fee + revenue = %s, want %s", fee+revenue, tt.price)
			}
		})
	}
	if cfg.CreatorSharePct() != 95 {
		t.Errorf("CreatorSharePct = %d", cfg.CreatorSharePct())
	}
}

func TestClampPrice(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ClampPrice(types.Tokens(3)); got != types.Tokens(10) {
		t.Errorf("ClampPrice(3) = %s", got)
	}
	if got := cfg.ClampPrice(types.Tokens(25)); got != types.Tokens(25) {
		t.Errorf("ClampPrice(25) = %s", got)
	}
}

func TestNormalizeCategory(t *testing.T) {
	cfg := DefaultConfig()
	tests := map[Category]Category{
		"finance":   CategoryFinance,
		" Gaming ":  CategoryGaming,
		"":          CategoryOther,
		"astrology": CategoryOther,
	}
	for in, want := range tests {
		if got := cfg.NormalizeCategory(in); got != want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestApplyRating(t *testing.T) {
	tmpl := &Template{}
	for _, r := range []int{5, 4, 3} {
		tmpl.ApplyRating(r)
	}
	if tmpl.RatingCount != 3 || math.Abs(tmpl.Rating-4.0) > 1e-9 {
		t.Errorf("rating = %v over %d", tmpl.Rating, tmpl.RatingCount)
	}
	if ValidRating(0) || ValidRating(6) || !ValidRating(1) || !ValidRating(5) {
		t.Error("ValidRating bounds wrong")
	}
}

func TestMatches(t *testing.T) {
	tmpl := &Template{
		Name:        "Age Verification",
		Description: "Prove you are over 18",
		Tags:        []string{"KYC", "identity"},
	}
	for _, q := range []string{"", "age", "OVER 18", "kyc"} {
		if !tmpl.Matches(q) {
			t.Errorf("Matches(%q) = false", q)
		}
	}
	if tmpl.Matches("voting") {
		t.Error("Matches(voting) = true")
	}
}
