package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/types"
)

// errNothingToBurn aborts a burn whose target tier is already reached.
var errNothingToBurn = errors.New("ledger: nothing to burn")

// ──────────────────────────────────────────────────
// Premium
// ──────────────────────────────────────────────────

// BurnForPremium burns tokens toward a premium tier. The wallet's status is
// read, recomputed and written together with the burn record in one store
// transaction. A burn on an expired status starts a fresh window.
func (l *Ledger) BurnForPremium(ctx context.Context, req premium.BurnRequest) (*premium.BurnResult, error) {
	const op = "burn_for_premium"
	cfg := l.config.Premium

	wallet := strings.TrimSpace(req.Wallet)
	if wallet == "" {
		return nil, l.reject(ctx, op, ValidationError{Field: "wallet", Message: "required"})
	}
	if req.Amount.IsNegative() || (req.Amount.IsZero() && req.TargetTier == "") {
		return nil, l.reject(ctx, op, ErrInvalidAmount)
	}
	var target premium.TierSpec
	if req.TargetTier != "" {
		spec, ok := cfg.Spec(req.TargetTier)
		if !ok {
			return nil, l.reject(ctx, op, ErrUnknownTier)
		}
		target = spec
	}

	now := l.now()
	rec := &premium.BurnRecord{
		ID:        id.NewBurnID(),
		Wallet:    wallet,
		Signature: req.Signature,
		Simulated: req.Signature == "",
		Timestamp: now,
	}
	previous := premium.TierFree
	var unchanged *premium.Status

	apply := func(current *premium.Status) (*premium.Status, error) {
		previous = premium.TierFree
		var windowTotal types.Amount
		if current != nil {
			previous = current.Effective(now).Tier
			if !current.IsExpired(now) {
				windowTotal = current.TotalBurned
			}
		}

		amount := req.Amount
		if amount.IsZero() {
			amount = target.BurnRequired.Sub(windowTotal)
			if !amount.IsPositive() {
				unchanged = current
				return nil, errNothingToBurn
			}
		}

		next, err := cfg.Burn(current, wallet, amount, now)
		if err != nil {
			return nil, ErrInvalidAmount
		}
		rec.Amount = amount
		rec.Tier = next.Tier
		rec.TotalBurned = next.TotalBurned
		return next, nil
	}

	st, err := l.store.ApplyBurn(ctx, rec, apply)
	if errors.Is(err, errNothingToBurn) {
		if unchanged == nil {
			unchanged = &premium.Status{Wallet: wallet, Tier: premium.TierFree}
		}
		return &premium.BurnResult{
			Status:       unchanged.Effective(now),
			PreviousTier: previous,
		}, nil
	}
	if err != nil {
		return nil, l.reject(ctx, op, storeError(op, err))
	}

	result := &premium.BurnResult{
		Status:       st,
		Record:       rec,
		AmountBurned: rec.Amount,
		PreviousTier: previous,
		Upgraded:     cfg.Rank(st.Tier) > cfg.Rank(previous),
	}

	l.logger.Debug("tokens burned",
		"wallet", wallet,
		"amount", rec.Amount.String(),
		"tier", st.Tier,
		"total_burned", st.TotalBurned.String(),
		"simulated", rec.Simulated,
	)
	l.plugins.EmitTokensBurned(ctx, rec, st)
	return result, nil
}

// SimulateBurn is BurnForPremium without an on-chain signature.
func (l *Ledger) SimulateBurn(ctx context.Context, wallet string, amount types.Amount, targetTier premium.Tier) (*premium.BurnResult, error) {
	return l.BurnForPremium(ctx, premium.BurnRequest{
		Wallet:     wallet,
		Amount:     amount,
		TargetTier: targetTier,
	})
}

// PremiumStatus returns a wallet's effective status. Wallets that never
// burned, and wallets whose window expired, read as FREE.
func (l *Ledger) PremiumStatus(ctx context.Context, wallet string) (*premium.Status, error) {
	st, err := l.store.GetStatus(ctx, wallet)
	if IsNotFound(err) {
		return &premium.Status{Wallet: wallet, Tier: premium.TierFree}, nil
	}
	if err != nil {
		return nil, storeError("premium_status", err)
	}
	return st.Effective(l.now()), nil
}

// Tiers returns the tier table.
func (l *Ledger) Tiers() []premium.TierSpec {
	return l.config.Premium.Tiers
}

// TierFor returns the tier a cumulative burn total unlocks.
func (l *Ledger) TierFor(totalBurned types.Amount) premium.TierSpec {
	return l.config.Premium.TierFor(totalBurned)
}

// NextTier reports the tier above the wallet's current one and how much
// more it must burn to reach it.
func (l *Ledger) NextTier(ctx context.Context, wallet string) (*premium.NextTier, error) {
	st, err := l.PremiumStatus(ctx, wallet)
	if err != nil {
		return nil, err
	}
	burned := st.TotalBurned
	if st.Expired {
		burned = 0
	}
	next := l.config.Premium.Next(st.Tier, burned)
	return &next, nil
}

// HasFeatureAccess reports whether the wallet's effective tier unlocks
// feature. Features without a tier requirement are open to all.
func (l *Ledger) HasFeatureAccess(ctx context.Context, wallet, feature string) (bool, error) {
	st, err := l.PremiumStatus(ctx, wallet)
	if err != nil {
		return false, err
	}
	return l.config.Premium.HasFeature(st.Tier, feature), nil
}

// BurnHistory returns the newest burn records, optionally for one wallet.
// limit is capped at the configured history limit.
func (l *Ledger) BurnHistory(ctx context.Context, wallet string, limit int) ([]*premium.BurnRecord, error) {
	maxLimit := l.config.Premium.HistoryLimit
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	records, err := l.store.ListBurns(ctx, premium.BurnListOpts{Wallet: wallet, Limit: limit})
	if err != nil {
		return nil, storeError("burn_history", err)
	}
	return records, nil
}

// TotalBurned sums every burn ever recorded.
func (l *Ledger) TotalBurned(ctx context.Context) (types.Amount, error) {
	total, err := l.store.SumBurned(ctx)
	if err != nil {
		return 0, storeError("total_burned", err)
	}
	return total, nil
}
