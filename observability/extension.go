// Package observability provides a metrics extension for the token ledger
// that records domain event counts through a MetricFactory.
package observability

import (
	"context"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/plugin"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnStakeCreated      = (*MetricsExtension)(nil)
	_ plugin.OnRewardsClaimed    = (*MetricsExtension)(nil)
	_ plugin.OnUnstaked          = (*MetricsExtension)(nil)
	_ plugin.OnProposalCreated   = (*MetricsExtension)(nil)
	_ plugin.OnVoteCast          = (*MetricsExtension)(nil)
	_ plugin.OnProposalFinalized = (*MetricsExtension)(nil)
	_ plugin.OnTemplateListed    = (*MetricsExtension)(nil)
	_ plugin.OnTemplatePurchased = (*MetricsExtension)(nil)
	_ plugin.OnTemplateRated     = (*MetricsExtension)(nil)
	_ plugin.OnTokensBurned      = (*MetricsExtension)(nil)
	_ plugin.OnOperationRejected = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide ledger metrics. Register it as a
// ledger plugin. Token quantities are observed in whole tokens.
type MetricsExtension struct {
	// Staking metrics
	StakeCreated    Counter
	StakeAmount     Histogram
	RewardsClaimed  Counter
	RewardsPaid     Histogram
	Unstaked        Counter
	EarlyUnstaked   Counter
	PenaltyAssessed Histogram

	// Governance metrics
	ProposalCreated  Counter
	VoteCast         Counter
	VoteWeight       Histogram
	ProposalPassed   Counter
	ProposalRejected Counter

	// Marketplace metrics
	TemplateListed    Counter
	TemplatePurchased Counter
	PurchasePrice     Histogram
	PlatformFees      Counter
	TemplateRated     Counter

	// Premium metrics
	TokensBurned   Counter
	BurnAmount     Histogram
	SimulatedBurns Counter

	// Error metrics
	OperationsRejected Counter
	StoreErrors        Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		// Staking metrics
		StakeCreated:    factory.Counter("ledger.stake.created"),
		StakeAmount:     factory.Histogram("ledger.stake.amount_tokens"),
		RewardsClaimed:  factory.Counter("ledger.stake.rewards_claimed"),
		RewardsPaid:     factory.Histogram("ledger.stake.rewards_tokens"),
		Unstaked:        factory.Counter("ledger.stake.closed"),
		EarlyUnstaked:   factory.Counter("ledger.stake.closed_early"),
		PenaltyAssessed: factory.Histogram("ledger.stake.penalty_tokens"),

		// Governance metrics
		ProposalCreated:  factory.Counter("ledger.proposal.created"),
		VoteCast:         factory.Counter("ledger.vote.cast"),
		VoteWeight:       factory.Histogram("ledger.vote.weight"),
		ProposalPassed:   factory.Counter("ledger.proposal.passed"),
		ProposalRejected: factory.Counter("ledger.proposal.rejected"),

		// Marketplace metrics
		TemplateListed:    factory.Counter("ledger.template.listed"),
		TemplatePurchased: factory.Counter("ledger.template.purchased"),
		PurchasePrice:     factory.Histogram("ledger.template.price_tokens"),
		PlatformFees:      factory.Counter("ledger.template.platform_fee_tokens"),
		TemplateRated:     factory.Counter("ledger.template.rated"),

		// Premium metrics
		TokensBurned:   factory.Counter("ledger.premium.burned_tokens"),
		BurnAmount:     factory.Histogram("ledger.premium.burn_tokens"),
		SimulatedBurns: factory.Counter("ledger.premium.simulated_burns"),

		// Error metrics
		OperationsRejected: factory.Counter("ledger.operation.rejected"),
		StoreErrors:        factory.Counter("ledger.store.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Staking hooks
// ──────────────────────────────────────────────────

// OnStakeCreated implements plugin.OnStakeCreated.
func (m *MetricsExtension) OnStakeCreated(_ context.Context, pos *staking.Position) error {
	m.StakeCreated.Inc()
	m.StakeAmount.Observe(pos.Amount.Float64())
	return nil
}

// OnRewardsClaimed implements plugin.OnRewardsClaimed.
func (m *MetricsExtension) OnRewardsClaimed(_ context.Context, _ *staking.Position, amount types.Amount) error {
	m.RewardsClaimed.Inc()
	m.RewardsPaid.Observe(amount.Float64())
	return nil
}

// OnUnstaked implements plugin.OnUnstaked.
func (m *MetricsExtension) OnUnstaked(_ context.Context, _ *staking.Position, s staking.Settlement) error {
	m.Unstaked.Inc()
	if s.Early {
		m.EarlyUnstaked.Inc()
		m.PenaltyAssessed.Observe(s.Penalty.Float64())
	}
	if s.Rewards.IsPositive() {
		m.RewardsPaid.Observe(s.Rewards.Float64())
	}
	return nil
}

// ──────────────────────────────────────────────────
// Governance hooks
// ──────────────────────────────────────────────────

// OnProposalCreated implements plugin.OnProposalCreated.
func (m *MetricsExtension) OnProposalCreated(_ context.Context, _ *governance.Proposal) error {
	m.ProposalCreated.Inc()
	return nil
}

// OnVoteCast implements plugin.OnVoteCast.
func (m *MetricsExtension) OnVoteCast(_ context.Context, v *governance.Vote, _ *governance.Proposal) error {
	m.VoteCast.Inc()
	m.VoteWeight.Observe(v.Weight.Float64())
	return nil
}

// OnProposalFinalized implements plugin.OnProposalFinalized.
func (m *MetricsExtension) OnProposalFinalized(_ context.Context, p *governance.Proposal) error {
	if p.Status == governance.StatusPassed {
		m.ProposalPassed.Inc()
	} else {
		m.ProposalRejected.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Marketplace and premium hooks
// ──────────────────────────────────────────────────

// OnTemplateListed implements plugin.OnTemplateListed.
func (m *MetricsExtension) OnTemplateListed(_ context.Context, _ *marketplace.Template) error {
	m.TemplateListed.Inc()
	return nil
}

// OnTemplatePurchased implements plugin.OnTemplatePurchased.
func (m *MetricsExtension) OnTemplatePurchased(_ context.Context, p *marketplace.Purchase) error {
	m.TemplatePurchased.Inc()
	m.PurchasePrice.Observe(p.Price.Float64())
	m.PlatformFees.Add(p.PlatformFee.Float64())
	return nil
}

// OnTemplateRated implements plugin.OnTemplateRated.
func (m *MetricsExtension) OnTemplateRated(_ context.Context, _ *marketplace.Template, _ string, _ int) error {
	m.TemplateRated.Inc()
	return nil
}

// OnTokensBurned implements plugin.OnTokensBurned.
func (m *MetricsExtension) OnTokensBurned(_ context.Context, rec *premium.BurnRecord, _ *premium.Status) error {
	m.TokensBurned.Add(rec.Amount.Float64())
	m.BurnAmount.Observe(rec.Amount.Float64())
	if rec.Simulated {
		m.SimulatedBurns.Inc()
	}
	return nil
}

// OnOperationRejected implements plugin.OnOperationRejected.
func (m *MetricsExtension) OnOperationRejected(_ context.Context, _ string, err error) error {
	m.OperationsRejected.Inc()
	if ledger.IsRetryable(err) {
		m.StoreErrors.Inc()
	}
	return nil
}
