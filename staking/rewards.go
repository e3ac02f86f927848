// Package staking holds staking positions and the reward, lock and
// penalty arithmetic applied to them. Every calculation is a pure function
// of the position and the time it is evaluated at.
package staking

import (
	"math"
	"time"

	"github.com/zkrune/tokenledger/types"
)

const (
	day = 24 * time.Hour

	// Rewards accrue as amount * apy_bps * days / (365 * 10000).
	daysPerYear  = 365
	bpsPerWhole  = 10_000
	bpsPerAPYPct = 100
)

// LockPeriod is one row of the lock table.
type LockPeriod struct {
	Days       int     `json:"days"       mapstructure:"days"       yaml:"days"`
	Multiplier float64 `json:"multiplier" mapstructure:"multiplier" yaml:"multiplier"`
	Name       string  `json:"name"       mapstructure:"name"       yaml:"name"`
}

// Config holds the staking economics.
type Config struct {
	MinStake               types.Amount `json:"min_stake"                 mapstructure:"min_stake"                 yaml:"min_stake"`
	LockPeriods            []LockPeriod `json:"lock_periods"              mapstructure:"lock_periods"              yaml:"lock_periods"`
	BaseAPY                float64      `json:"base_apy"                  mapstructure:"base_apy"                  yaml:"base_apy"`
	MaxAPY                 float64      `json:"max_apy"                   mapstructure:"max_apy"                   yaml:"max_apy"`
	EarlyUnstakePenaltyPct int64        `json:"early_unstake_penalty_pct" mapstructure:"early_unstake_penalty_pct" yaml:"early_unstake_penalty_pct"`
}

// DefaultConfig returns the production staking economics.
func DefaultConfig() Config {
	return Config{
		MinStake: types.Tokens(100),
		LockPeriods: []LockPeriod{
			{Days: 30, Multiplier: 1.0, Name: "Flexible"},
			{Days: 90, Multiplier: 1.5, Name: "3 Months"},
			{Days: 180, Multiplier: 2.0, Name: "6 Months"},
			{Days: 365, Multiplier: 3.0, Name: "1 Year"},
		},
		BaseAPY:                12,
		MaxAPY:                 36,
		EarlyUnstakePenaltyPct: 50,
	}
}

// LockPeriod looks up the lock table row for days.
func (c Config) LockPeriod(days int) (LockPeriod, bool) {
	for _, lp := range c.LockPeriods {
		if lp.Days == days {
			return lp, true
		}
	}
	return LockPeriod{}, false
}

// LockOptions lists the lock table with the APY each row earns.
func (c Config) LockOptions() []LockOption {
	out := make([]LockOption, len(c.LockPeriods))
	for i, lp := range c.LockPeriods {
		out[i] = LockOption{LockPeriod: lp, APY: c.EffectiveAPY(lp.Multiplier)}
	}
	return out
}

// EffectiveAPY returns min(BaseAPY * multiplier, MaxAPY) in percent.
func (c Config) EffectiveAPY(multiplier float64) float64 {
	return math.Min(c.BaseAPY*multiplier, c.MaxAPY)
}

func (c Config) apyBasisPoints(multiplier float64) int64 {
	return int64(math.Round(c.EffectiveAPY(multiplier) * bpsPerAPYPct))
}

// PendingRewards returns the rewards accrued since LastClaimAt. Only whole
// elapsed days count, so repeated calls within a day return the same value.
func (c Config) PendingRewards(p *Position, now time.Time) types.Amount {
	if !p.IsActive {
		return 0
	}
	days := wholeDays(p.LastClaimAt, now)
	if days < 1 {
		return 0
	}
	return p.Amount.MulDiv(c.apyBasisPoints(p.Multiplier)*days, daysPerYear*bpsPerWhole)
}

// Settle computes what closing p at now pays out. Closing before
// UnlocksAt forfeits all rewards and costs EarlyUnstakePenaltyPct of the
// principal.
func (c Config) Settle(p *Position, now time.Time) Settlement {
	if !p.IsUnlocked(now) {
		penalty := p.Amount.Percent(c.EarlyUnstakePenaltyPct)
		return Settlement{
			ReturnAmount: p.Amount.Sub(penalty),
			Penalty:      penalty,
			Early:        true,
		}
	}
	return Settlement{
		ReturnAmount: p.Amount,
		Rewards:      c.PendingRewards(p, now),
	}
}

// TimeUntilUnlock reports how long p stays locked after now.
func TimeUntilUnlock(p *Position, now time.Time) Countdown {
	remaining := p.UnlocksAt.Sub(now)
	if remaining <= 0 {
		return Countdown{IsUnlocked: true}
	}
	return Countdown{
		Days:  int(remaining / day),
		Hours: int((remaining % day) / time.Hour),
	}
}

func wholeDays(from, to time.Time) int64 {
	if !to.After(from) {
		return 0
	}
	return int64(to.Sub(from) / day)
}
