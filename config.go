package ledger

import (
	"fmt"

	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/types"
)

// Config holds the economics of all three ledgers.
type Config struct {
	Staking     staking.Config     `json:"staking"     mapstructure:"staking"     yaml:"staking"`
	Governance  governance.Config  `json:"governance"  mapstructure:"governance"  yaml:"governance"`
	Marketplace marketplace.Config `json:"marketplace" mapstructure:"marketplace" yaml:"marketplace"`
	Premium     premium.Config     `json:"premium"     mapstructure:"premium"     yaml:"premium"`
}

// DefaultConfig returns the production economics.
func DefaultConfig() Config {
	return Config{
		Staking:     staking.DefaultConfig(),
		Governance:  governance.DefaultConfig(),
		Marketplace: marketplace.DefaultConfig(),
		Premium:     premium.DefaultConfig(),
	}
}

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var errs MultiError

	s := c.Staking
	if !s.MinStake.IsPositive() {
		errs.Add(ValidationError{Field: "staking.min_stake", Message: "must be positive"})
	}
	if len(s.LockPeriods) == 0 {
		errs.Add(ValidationError{Field: "staking.lock_periods", Message: "at least one lock period is required"})
	}
	seen := make(map[int]bool, len(s.LockPeriods))
	for i, lp := range s.LockPeriods {
		field := fmt.Sprintf("staking.lock_periods[%d]", i)
		if lp.Days <= 0 {
			errs.Add(ValidationError{Field: field, Message: "days must be positive"})
		}
		if lp.Multiplier <= 0 {
			errs.Add(ValidationError{Field: field, Message: "multiplier must be positive"})
		}
		if seen[lp.Days] {
			errs.Add(ValidationError{Field: field, Message: fmt.Sprintf("duplicate lock period %d", lp.Days)})
		}
		seen[lp.Days] = true
	}
	if s.BaseAPY < 0 || s.MaxAPY < s.BaseAPY {
		errs.Add(ValidationError{Field: "staking.max_apy", Message: "must be at least base_apy"})
	}
	if s.EarlyUnstakePenaltyPct < 0 || s.EarlyUnstakePenaltyPct > 100 {
		errs.Add(ValidationError{Field: "staking.early_unstake_penalty_pct", Message: "must be within [0, 100]"})
	}

	g := c.Governance
	if g.MinTokensToVote.IsNegative() {
		errs.Add(ValidationError{Field: "governance.min_tokens_to_vote", Message: "must not be negative"})
	}
	if g.VotingPeriodDays <= 0 {
		errs.Add(ValidationError{Field: "governance.voting_period_days", Message: "must be positive"})
	}
	if g.QuorumThreshold.IsNegative() {
		errs.Add(ValidationError{Field: "governance.quorum_threshold", Message: "must not be negative"})
	}

	m := c.Marketplace
	if m.PlatformFeePct < 0 || m.PlatformFeePct > 100 {
		errs.Add(ValidationError{Field: "marketplace.platform_fee_pct", Message: "must be within [0, 100]"})
	}
	if m.MinTemplatePrice.IsNegative() {
		errs.Add(ValidationError{Field: "marketplace.min_template_price", Message: "must not be negative"})
	}

	p := c.Premium
	if len(p.Tiers) == 0 {
		errs.Add(ValidationError{Field: "premium.tiers", Message: "at least one tier is required"})
	} else if !p.Tiers[0].BurnRequired.IsZero() {
		errs.Add(ValidationError{Field: "premium.tiers[0]", Message: "first tier must require no burn"})
	}
	prev := types.Amount(-1)
	for i, spec := range p.Tiers {
		if spec.BurnRequired <= prev {
			errs.Add(ValidationError{Field: fmt.Sprintf("premium.tiers[%d]", i), Message: "burn_required must increase"})
		}
		prev = spec.BurnRequired
	}
	for feature, tier := range p.FeatureTiers {
		if p.Rank(tier) < 0 {
			errs.Add(ValidationError{Field: "premium.feature_tiers." + feature, Message: fmt.Sprintf("unknown tier %q", tier)})
		}
	}
	if p.ValidityDays <= 0 {
		errs.Add(ValidationError{Field: "premium.validity_days", Message: "must be positive"})
	}
	if p.HistoryLimit <= 0 {
		errs.Add(ValidationError{Field: "premium.history_limit", Message: "must be positive"})
	}

	return errs.ErrOrNil()
}
