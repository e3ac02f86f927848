package premium

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/zkrune/tokenledger/types"
)

func TestTierFor(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		total types.Amount
		want  Tier
	}{
		{0, TierFree},
		{types.MustParseAmount("99.999999"), TierFree},
		{types.Tokens(100), TierBuilder},
		{types.MustParseAmount("499.999999"), TierBuilder},
		{types.Tokens(500), TierPro},
		{types.Tokens(1999), TierPro},
		{types.Tokens(2000), TierEnterprise},
		{types.Tokens(1_000_000), TierEnterprise},
	}
	for _, tt := range tests {
		t.Run(tt.total.String(), func(t *testing.T) {
			if got := cfg.TierFor(tt.total).Tier; got != tt.want {
				t.Errorf("TierFor(%s) = %s, want %s", tt.total, got, tt.want)
			}
		})
	}
}

func mustBurn(t *testing.T, cfg Config, current *Status, wallet string, amount types.Amount, now time.Time) *Status {
	t.Helper()
	st, err := cfg.Burn(current, wallet, amount, now)
	if err != nil {
		t.Fatalf("Burn(%s): %v", amount, err)
	}
	return st
}

func TestBurnAccumulates(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	st := mustBurn(t, cfg, nil, "w1", types.Tokens(300), now)
	if st.Tier != TierBuilder || st.TotalBurned != types.Tokens(300) {
		t.Fatalf("first burn = %+v", st)
	}

	later := now.Add(48 * time.Hour)
	st = mustBurn(t, cfg, st, "w1", types.Tokens(200), later)
	if st.Tier != TierPro || st.TotalBurned != types.Tokens(500) {
		t.Fatalf("second burn = %+v", st)
	}
	if !st.UnlockedAt.Equal(later) || !st.ExpiresAt.Equal(later.AddDate(0, 0, 365)) {
		t.Errorf("window = %v..%v", st.UnlockedAt, st.ExpiresAt)
	}
	if !st.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt moved to %v", st.CreatedAt)
	}
}

func TestBurnAfterExpiryStartsFreshWindow(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	st := mustBurn(t, cfg, nil, "w1", types.Tokens(600), now)

	expired := st.ExpiresAt.Add(time.Second)
	eff := st.Effective(expired)
	if eff.Tier != TierFree || !eff.Expired || eff.TotalBurned != types.Tokens(600) {
		t.Errorf("effective after expiry = %+v", eff)
	}
	if st.Tier != TierPro {
		t.Error("Effective mutated the stored status")
	}

	st = mustBurn(t, cfg, st, "w1", types.Tokens(100), expired)
	if st.Tier != TierBuilder || st.TotalBurned != types.Tokens(100) || st.LifetimeBurned != types.Tokens(700) {
		t.Errorf("burn after expiry = %+v", st)
	}
}

func TestBurnOverflow(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	near := types.Units(math.MaxInt64 - 10)
	full := mustBurn(t, cfg, nil, "w1", near, now)

	tests := []struct {
		name    string
		current *Status
		at      time.Time
	}{
		{"window total", full, now.Add(time.Hour)},
		{"lifetime total after expiry", full, full.ExpiresAt.Add(time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := cfg.Burn(tt.current, "w1", types.Tokens(1), tt.at)
			if !errors.Is(err, ErrBurnOverflow) || st != nil {
				t.Fatalf("Burn = (%+v, %v), want ErrBurnOverflow", st, err)
			}
		})
	}
	if full.TotalBurned != near || full.Tier != TierEnterprise {
		t.Errorf("current status changed: %+v", full)
	}
}

func TestNext(t *testing.T) {
	cfg := DefaultConfig()

	n := cfg.Next(TierBuilder, types.Tokens(300))
	if n.Next != TierPro || n.TokensNeeded != types.Tokens(200) || n.IsMax {
		t.Errorf("Next(BUILDER, 300) = %+v", n)
	}
	if n := cfg.Next(TierEnterprise, types.Tokens(5000)); !n.IsMax {
		t.Errorf("Next(ENTERPRISE) = %+v", n)
	}
	if n := cfg.Next(TierFree, 0); n.TokensNeeded != types.Tokens(100) {
		t.Errorf("Next(FREE) = %+v", n)
	}
}

func TestHasFeature(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		tier    Tier
		feature string
		want    bool
	}{
		{TierFree, "api-access", false},
		{TierBuilder, "api-access", true},
		{TierBuilder, "gasless-proofs", false},
		{TierPro, "gasless-proofs", true},
		{TierPro, "white-label", false},
		{TierEnterprise, "custom-integrations", true},
		{TierFree, "dark-mode", true},
	}
	for _, tt := range tests {
		if got := cfg.HasFeature(tt.tier, tt.feature); got != tt.want {
			t.Errorf("HasFeature(%s, %s) = %v, want %v", tt.tier, tt.feature, got, tt.want)
		}
	}
}
