package staking

import (
	"time"

	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/types"
)

// Position is a wallet's locked stake. Multiplier and UnlocksAt are fixed
// at creation. Once IsActive is false the position never changes again.
type Position struct {
	types.Entity
	ID             id.StakeID   `json:"id"`
	Staker         string       `json:"staker"`
	Amount         types.Amount `json:"amount"`
	LockPeriodDays int          `json:"lock_period_days"`
	Multiplier     float64      `json:"multiplier"`
	StakedAt       time.Time    `json:"staked_at"`
	UnlocksAt      time.Time    `json:"unlocks_at"`
	LastClaimAt    time.Time    `json:"last_claim_at"`
	TotalClaimed   types.Amount `json:"total_claimed"`
	IsActive       bool         `json:"is_active"`

	// Version increments on every mutation and guards claims against
	// concurrent writers.
	Version int64 `json:"version"`
}

// IsUnlocked reports whether the lock period has elapsed at now.
func (p *Position) IsUnlocked(now time.Time) bool {
	return !now.Before(p.UnlocksAt)
}

// Settlement is the outcome of closing a position.
type Settlement struct {
	ReturnAmount types.Amount `json:"return_amount"`
	Rewards      types.Amount `json:"rewards"`
	Penalty      types.Amount `json:"penalty"`
	Early        bool         `json:"early"`
}

// Countdown is the time left until a position unlocks.
type Countdown struct {
	Days       int  `json:"days"`
	Hours      int  `json:"hours"`
	IsUnlocked bool `json:"is_unlocked"`
}

// LockOption is a lock period offered to stakers with its resulting APY.
type LockOption struct {
	LockPeriod
	APY float64 `json:"apy"`
}

// Info aggregates a single staker's active positions.
type Info struct {
	Staker              string       `json:"staker"`
	Positions           []*Position  `json:"positions"`
	TotalStaked         types.Amount `json:"total_staked"`
	TotalPendingRewards types.Amount `json:"total_pending_rewards"`
	TotalClaimed        types.Amount `json:"total_claimed"`
	EffectiveAPY        float64      `json:"effective_apy"`
}

// Stats aggregates the whole staking pool.
type Stats struct {
	TotalStaked      types.Amount `json:"total_staked"`
	TotalStakers     int          `json:"total_stakers"`
	ActivePositions  int          `json:"active_positions"`
	AverageAPY       float64      `json:"average_apy"`
	TotalRewardsPaid types.Amount `json:"total_rewards_paid"`
}
