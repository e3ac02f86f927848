package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Token parameters. Amounts are stored as integer base units.
const (
	Decimals      = 6
	Symbol        = "zkRUNE"
	UnitsPerToken = 1_000_000
)

// Amount is a fixed-point token quantity counted in base units
// (10^-6 zkRUNE). All arithmetic is integer-only.
//
// Examples:
//   - Tokens(100) = 100 zkRUNE (100_000_000 units)
//   - Units(1)    = 0.000001 zkRUNE
type Amount int64

// Zero is the zero amount.
const Zero Amount = 0

// Tokens returns n whole tokens.
func Tokens(n int64) Amount { return Amount(n * UnitsPerToken) }

// Units returns n base units.
func Units(n int64) Amount { return Amount(n) }

// ParseAmount parses a decimal token string such as "12", "0.5" or
// "499.999999". More than Decimals fractional digits is an error.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount: parse %q: empty string", s)
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("amount: parse %q: no digits", s)
	}
	if len(frac) > Decimals {
		return 0, fmt.Errorf("amount: parse %q: more than %d decimals", s, Decimals)
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("amount: parse %q: invalid character", s)
	}

	var w, f int64
	var err error
	if whole != "" {
		w, err = strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("amount: parse %q: %w", s, err)
		}
	}
	if frac != "" {
		frac += strings.Repeat("0", Decimals-len(frac))
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("amount: parse %q: %w", s, err)
		}
	}
	if w > (math.MaxInt64-f)/UnitsPerToken {
		return 0, fmt.Errorf("amount: parse %q: out of range", s)
	}

	units := w*UnitsPerToken + f
	if neg {
		units = -units
	}
	return Amount(units), nil
}

// MustParseAmount is like ParseAmount but panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Sum adds all amounts.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total = total.SaturatingAdd(a)
	}
	return total
}

// Units returns the raw base-unit count.
func (a Amount) Units() int64 { return int64(a) }

// Add returns a + b. Callers adding untrusted totals use AddChecked.
func (a Amount) Add(b Amount) Amount { return a + b }

// AddChecked returns a + b and false if the sum leaves the int64 range.
func (a Amount) AddChecked(b Amount) (Amount, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// SaturatingAdd returns a + b clamped to the int64 range.
func (a Amount) SaturatingAdd(b Amount) Amount {
	sum, ok := a.AddChecked(b)
	switch {
	case ok:
		return sum
	case b > 0:
		return Amount(math.MaxInt64)
	default:
		return Amount(math.MinInt64)
	}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return a - b }

// MulDiv returns floor(a * num / den) computed without intermediate
// overflow. The result saturates at the int64 range.
func (a Amount) MulDiv(num, den int64) Amount {
	if den == 0 {
		panic("amount: division by zero")
	}
	n := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(num))
	q, m := new(big.Int).DivMod(n, big.NewInt(den), new(big.Int))
	// DivMod is Euclidean; adjust to floor for a negative divisor.
	if den < 0 && m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return saturate(q)
}

// Percent returns floor(a * pct / 100).
func (a Amount) Percent(pct int64) Amount { return a.MulDiv(pct, 100) }

// Sqrt returns the fixed-point square root of a token amount, so that
// Tokens(400).Sqrt() == Tokens(20). Negative amounts yield zero.
func (a Amount) Sqrt() Amount {
	if a <= 0 {
		return 0
	}
	n := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(UnitsPerToken))
	return saturate(n.Sqrt(n))
}

func saturate(v *big.Int) Amount {
	switch {
	case v.IsInt64():
		return Amount(v.Int64())
	case v.Sign() > 0:
		return Amount(math.MaxInt64)
	default:
		return Amount(math.MinInt64)
	}
}

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if b < a {
		return b
	}
	return a
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// IsPositive reports whether the amount is greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool { return a < 0 }

// Float64 converts to whole tokens. Use for display and ratios only.
func (a Amount) Float64() float64 { return float64(a) / UnitsPerToken }

// String renders the amount in whole tokens with trailing zeros trimmed:
// "100", "0.5", "4.931506".
func (a Amount) String() string {
	u := int64(a)
	sign := ""
	if u < 0 {
		sign = "-"
		if u == math.MinInt64 {
			return "-9223372036854.775808"
		}
		u = -u
	}
	whole, frac := u/UnitsPerToken, u%UnitsPerToken
	if frac == 0 {
		return sign + strconv.FormatInt(whole, 10)
	}
	f := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return sign + strconv.FormatInt(whole, 10) + "." + f
}

// Display renders the amount with the token symbol: "12.5 zkRUNE".
func (a Amount) Display() string { return a.String() + " " + Symbol }

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a decimal string to keep precision.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both "12.5" and 12.5. Numbers are parsed from
// their literal text, never through float64.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return a.UnmarshalText([]byte(s))
	}
	return a.UnmarshalText(data)
}
