package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/types"
)

// ──────────────────────────────────────────────────
// Staking
// ──────────────────────────────────────────────────

// CreateStake locks amount for lockPeriodDays on behalf of staker.
func (l *Ledger) CreateStake(ctx context.Context, staker string, amount types.Amount, lockPeriodDays int) (*staking.Position, error) {
	const op = "create_stake"
	cfg := l.config.Staking

	staker = strings.TrimSpace(staker)
	if staker == "" {
		return nil, l.reject(ctx, op, ValidationError{Field: "staker", Message: "required"})
	}
	if !amount.IsPositive() || amount < cfg.MinStake {
		return nil, l.reject(ctx, op, ErrInvalidAmount)
	}
	lp, ok := cfg.LockPeriod(lockPeriodDays)
	if !ok {
		return nil, l.reject(ctx, op, ErrInvalidLockPeriod)
	}

	now := l.now()
	pos := &staking.Position{
		Entity:         types.NewEntity(now),
		ID:             id.NewStakeID(),
		Staker:         staker,
		Amount:         amount,
		LockPeriodDays: lp.Days,
		Multiplier:     lp.Multiplier,
		StakedAt:       now,
		UnlocksAt:      now.AddDate(0, 0, lp.Days),
		LastClaimAt:    now,
		IsActive:       true,
	}

	if err := l.store.CreatePosition(ctx, pos); err != nil {
		return nil, l.reject(ctx, op, storeError(op, err))
	}

	l.logger.Debug("stake created",
		"position_id", pos.ID.String(),
		"staker", staker,
		"amount", amount.String(),
		"lock_period_days", lp.Days,
	)
	l.plugins.EmitStakeCreated(ctx, pos)
	return pos, nil
}

// GetPosition retrieves a position by ID.
func (l *Ledger) GetPosition(ctx context.Context, positionID id.StakeID) (*staking.Position, error) {
	pos, err := l.store.GetPosition(ctx, positionID)
	if err != nil {
		return nil, storeError("get_position", err)
	}
	return pos, nil
}

// ListPositions lists positions matching opts.
func (l *Ledger) ListPositions(ctx context.Context, opts staking.ListOpts) ([]*staking.Position, error) {
	positions, err := l.store.ListPositions(ctx, opts)
	if err != nil {
		return nil, storeError("list_positions", err)
	}
	return positions, nil
}

// PendingRewards returns the rewards a position could claim now.
func (l *Ledger) PendingRewards(pos *staking.Position) types.Amount {
	return l.config.Staking.PendingRewards(pos, l.now())
}

// TimeUntilUnlock reports how long a position stays locked.
func (l *Ledger) TimeUntilUnlock(pos *staking.Position) staking.Countdown {
	return staking.TimeUntilUnlock(pos, l.now())
}

// LockPeriodOptions lists the configured lock periods with their APY.
func (l *Ledger) LockPeriodOptions() []staking.LockOption {
	return l.config.Staking.LockOptions()
}

// ownedPosition loads a position and hides it from anyone but its staker.
func (l *Ledger) ownedPosition(ctx context.Context, op string, positionID id.StakeID, staker string) (*staking.Position, error) {
	pos, err := l.store.GetPosition(ctx, positionID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if pos.Staker != staker {
		return nil, ErrPositionNotFound
	}
	return pos, nil
}

// ClaimRewards pays out the whole days of rewards accrued since the last
// claim and returns the amount paid. A concurrent claim on the same
// position makes the loser fail with ErrNothingToClaim.
func (l *Ledger) ClaimRewards(ctx context.Context, positionID id.StakeID, staker string) (types.Amount, error) {
	const op = "claim_rewards"

	pos, err := l.ownedPosition(ctx, op, positionID, staker)
	if err != nil {
		return 0, l.reject(ctx, op, err)
	}
	if !pos.IsActive {
		return 0, l.reject(ctx, op, ErrInactive)
	}

	now := l.now()
	pending := l.config.Staking.PendingRewards(pos, now)
	if !pending.IsPositive() {
		return 0, l.reject(ctx, op, ErrNothingToClaim)
	}

	if err := l.store.ClaimRewards(ctx, pos.ID, pos.Version, pending, now); err != nil {
		return 0, l.reject(ctx, op, storeError(op, err))
	}

	pos.LastClaimAt = now
	pos.TotalClaimed = pos.TotalClaimed.Add(pending)
	pos.Version++
	pos.Touch(now)

	l.logger.Debug("rewards claimed",
		"position_id", pos.ID.String(),
		"staker", staker,
		"amount", pending.String(),
	)
	l.plugins.EmitRewardsClaimed(ctx, pos, pending)
	return pending, nil
}

// closeAttempts bounds how often Unstake re-settles a position that a
// concurrent claim moved on.
const closeAttempts = 3

// Unstake closes a position. Before the unlock time the rewards are
// forfeited and the early-unstake penalty is taken from the principal.
// The close only applies to the version the settlement was computed from,
// so rewards paid by a concurrent claim are never paid again.
func (l *Ledger) Unstake(ctx context.Context, positionID id.StakeID, staker string) (staking.Settlement, error) {
	const op = "unstake"

	var (
		pos        *staking.Position
		settlement staking.Settlement
		now        time.Time
		err        error
	)
	for attempt := 1; ; attempt++ {
		pos, err = l.ownedPosition(ctx, op, positionID, staker)
		if err != nil {
			return staking.Settlement{}, l.reject(ctx, op, err)
		}
		if !pos.IsActive {
			return staking.Settlement{}, l.reject(ctx, op, ErrAlreadyInactive)
		}

		now = l.now()
		settlement = l.config.Staking.Settle(pos, now)

		err = l.store.ClosePosition(ctx, pos.ID, pos.Version, settlement.Rewards, now)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrPositionChanged) || attempt == closeAttempts {
			return staking.Settlement{}, l.reject(ctx, op, storeError(op, err))
		}
		l.logger.Debug("position changed during unstake, settling again",
			"position_id", pos.ID.String(),
			"attempt", attempt,
		)
	}

	pos.IsActive = false
	pos.TotalClaimed = pos.TotalClaimed.Add(settlement.Rewards)
	pos.Version++
	pos.Touch(now)

	l.logger.Debug("position closed",
		"position_id", pos.ID.String(),
		"staker", staker,
		"returned", settlement.ReturnAmount.String(),
		"rewards", settlement.Rewards.String(),
		"penalty", settlement.Penalty.String(),
		"early", settlement.Early,
	)
	l.plugins.EmitUnstaked(ctx, pos, settlement)
	return settlement, nil
}

// UserStakingInfo aggregates a staker's active positions.
func (l *Ledger) UserStakingInfo(ctx context.Context, staker string) (*staking.Info, error) {
	positions, err := l.store.ListPositions(ctx, staking.ListOpts{Staker: staker, ActiveOnly: true})
	if err != nil {
		return nil, storeError("user_staking_info", err)
	}

	now := l.now()
	cfg := l.config.Staking
	info := &staking.Info{Staker: staker, Positions: positions}
	var weighted float64
	for _, pos := range positions {
		info.TotalStaked = info.TotalStaked.SaturatingAdd(pos.Amount)
		info.TotalPendingRewards = info.TotalPendingRewards.SaturatingAdd(cfg.PendingRewards(pos, now))
		info.TotalClaimed = info.TotalClaimed.SaturatingAdd(pos.TotalClaimed)
		weighted += cfg.EffectiveAPY(pos.Multiplier) * pos.Amount.Float64()
	}
	if info.TotalStaked.IsPositive() {
		info.EffectiveAPY = weighted / info.TotalStaked.Float64()
	}
	return info, nil
}

// StakingStats aggregates the whole staking pool.
func (l *Ledger) StakingStats(ctx context.Context) (*staking.Stats, error) {
	positions, err := l.store.ListPositions(ctx, staking.ListOpts{})
	if err != nil {
		return nil, storeError("staking_stats", err)
	}

	cfg := l.config.Staking
	stats := &staking.Stats{AverageAPY: cfg.BaseAPY}
	stakers := make(map[string]struct{})
	var weighted float64
	for _, pos := range positions {
		stats.TotalRewardsPaid = stats.TotalRewardsPaid.SaturatingAdd(pos.TotalClaimed)
		if !pos.IsActive {
			continue
		}
		stats.ActivePositions++
		stats.TotalStaked = stats.TotalStaked.SaturatingAdd(pos.Amount)
		stakers[pos.Staker] = struct{}{}
		weighted += cfg.EffectiveAPY(pos.Multiplier) * pos.Amount.Float64()
	}
	stats.TotalStakers = len(stakers)
	if stats.TotalStaked.IsPositive() {
		stats.AverageAPY = weighted / stats.TotalStaked.Float64()
	}
	return stats, nil
}
