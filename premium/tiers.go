// Package premium holds premium statuses, the burn log, and the tier
// table that maps cumulative burns to access levels.
package premium

import (
	"errors"
	"time"

	"github.com/zkrune/tokenledger/types"
)

// ErrBurnOverflow is returned when a burn would overflow a wallet's totals.
var ErrBurnOverflow = errors.New("premium: burn total overflows")

// Config holds the premium tier table and burn policy.
type Config struct {
	// Tiers must be ordered by ascending BurnRequired, starting at zero.
	Tiers []TierSpec `json:"tiers" mapstructure:"tiers" yaml:"tiers"`

	ValidityDays int `json:"validity_days" mapstructure:"validity_days" yaml:"validity_days"`
	HistoryLimit int `json:"history_limit" mapstructure:"history_limit" yaml:"history_limit"`

	// FeatureTiers maps a gated feature to the lowest tier that unlocks it.
	// Features not listed are open to everyone.
	FeatureTiers map[string]Tier `json:"feature_tiers" mapstructure:"feature_tiers" yaml:"feature_tiers"`
}

// DefaultConfig returns the production tier table.
func DefaultConfig() Config {
	return Config{
		Tiers: []TierSpec{
			{
				Tier: TierFree, Name: "Free",
				Features:   []string{"Basic proof generation", "5 proofs per day", "Community templates", "Basic export"},
				ProofLimit: 5, TemplateAccess: AccessCommunity,
			},
			{
				Tier: TierBuilder, Name: "Builder", BurnRequired: types.Tokens(100),
				Features:   []string{"Unlimited proof generation", "All templates", "Priority circuit loading", "Code export", "API access"},
				ProofLimit: -1, TemplateAccess: AccessAll,
			},
			{
				Tier: TierPro, Name: "Pro", BurnRequired: types.Tokens(500),
				Features:   []string{"Everything in Builder", "Custom circuit builder", "Gasless proofs", "Priority support", "Early access to new features"},
				ProofLimit: -1, TemplateAccess: AccessAll, GaslessProofs: true,
			},
			{
				Tier: TierEnterprise, Name: "Enterprise", BurnRequired: types.Tokens(2000),
				Features:   []string{"Everything in Pro", "White-label solution", "Custom integrations", "Dedicated support", "SLA guarantee"},
				ProofLimit: -1, TemplateAccess: AccessAll, GaslessProofs: true, WhiteLabel: true,
			},
		},
		ValidityDays: 365,
		HistoryLimit: 100,
		FeatureTiers: map[string]Tier{
			"unlimited-proofs":    TierBuilder,
			"all-templates":       TierBuilder,
			"code-export":         TierBuilder,
			"api-access":          TierBuilder,
			"custom-circuits":     TierPro,
			"gasless-proofs":      TierPro,
			"priority-support":    TierPro,
			"white-label":         TierEnterprise,
			"custom-integrations": TierEnterprise,
		},
	}
}

// Validity is how long a burn keeps its tier unlocked.
func (c Config) Validity() time.Duration {
	return time.Duration(c.ValidityDays) * 24 * time.Hour
}

// TierFor returns the highest tier whose BurnRequired is covered by total.
func (c Config) TierFor(total types.Amount) TierSpec {
	best := TierSpec{Tier: TierFree}
	for _, spec := range c.Tiers {
		if spec.BurnRequired <= total {
			best = spec
		}
	}
	return best
}

// Spec looks up a tier's row.
func (c Config) Spec(tier Tier) (TierSpec, bool) {
	for _, spec := range c.Tiers {
		if spec.Tier == tier {
			return spec, true
		}
	}
	return TierSpec{}, false
}

// Rank is tier's position in the table, or -1 if unknown.
func (c Config) Rank(tier Tier) int {
	for i, spec := range c.Tiers {
		if spec.Tier == tier {
			return i
		}
	}
	return -1
}

// Next returns the tier above current and how much more must be burned
// on top of burned to reach it.
func (c Config) Next(current Tier, burned types.Amount) NextTier {
	r := c.Rank(current)
	if r < 0 || r+1 >= len(c.Tiers) {
		return NextTier{Current: current, IsMax: true}
	}
	next := c.Tiers[r+1]
	needed := next.BurnRequired.Sub(burned)
	if needed.IsNegative() {
		needed = 0
	}
	return NextTier{Current: current, Next: next.Tier, TokensNeeded: needed}
}

// HasFeature reports whether tier unlocks feature.
func (c Config) HasFeature(tier Tier, feature string) bool {
	required, gated := c.FeatureTiers[feature]
	if !gated {
		return true
	}
	return c.Rank(tier) >= c.Rank(required)
}

// Burn returns the status that results from burning amount on top of
// current at now. An expired or missing status starts a fresh window.
// The tier always follows from the cumulative total. A burn that would
// push either total past the int64 range fails with ErrBurnOverflow.
func (c Config) Burn(current *Status, wallet string, amount types.Amount, now time.Time) (*Status, error) {
	now = now.UTC()
	next := &Status{Wallet: wallet, Entity: types.NewEntity(now)}
	if current != nil {
		next.Entity = current.Entity
		next.Touch(now)
		next.LifetimeBurned = current.LifetimeBurned
		if !current.IsExpired(now) {
			next.TotalBurned = current.TotalBurned
		}
	}
	var ok bool
	if next.TotalBurned, ok = next.TotalBurned.AddChecked(amount); !ok {
		return nil, ErrBurnOverflow
	}
	if next.LifetimeBurned, ok = next.LifetimeBurned.AddChecked(amount); !ok {
		return nil, ErrBurnOverflow
	}
	next.Tier = c.TierFor(next.TotalBurned).Tier
	next.UnlockedAt = now
	next.ExpiresAt = now.Add(c.Validity())
	return next, nil
}
