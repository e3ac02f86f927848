// Package audithook bridges ledger domain events to an audit trail backend.
//
// It defines a local Recorder interface so the package carries no audit
// backend dependency. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/plugin"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnStakeCreated      = (*Extension)(nil)
	_ plugin.OnRewardsClaimed    = (*Extension)(nil)
	_ plugin.OnUnstaked          = (*Extension)(nil)
	_ plugin.OnProposalCreated   = (*Extension)(nil)
	_ plugin.OnVoteCast          = (*Extension)(nil)
	_ plugin.OnProposalFinalized = (*Extension)(nil)
	_ plugin.OnTemplateListed    = (*Extension)(nil)
	_ plugin.OnTemplatePurchased = (*Extension)(nil)
	_ plugin.OnTemplateRated     = (*Extension)(nil)
	_ plugin.OnTokensBurned      = (*Extension)(nil)
	_ plugin.OnOperationRejected = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry in the audit trail.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger domain events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Staking hooks
// ──────────────────────────────────────────────────

// OnStakeCreated implements plugin.OnStakeCreated.
func (e *Extension) OnStakeCreated(ctx context.Context, pos *staking.Position) error {
	return e.record(ctx, ActionStakeCreated, SeverityInfo, OutcomeSuccess,
		ResourceStake, pos.ID.String(), pos.Staker, CategoryStaking, nil,
		"amount", pos.Amount.String(),
		"lock_period_days", pos.LockPeriodDays,
		"unlocks_at", pos.UnlocksAt,
	)
}

// OnRewardsClaimed implements plugin.OnRewardsClaimed.
func (e *Extension) OnRewardsClaimed(ctx context.Context, pos *staking.Position, amount types.Amount) error {
	return e.record(ctx, ActionRewardsClaimed, SeverityInfo, OutcomeSuccess,
		ResourceStake, pos.ID.String(), pos.Staker, CategoryStaking, nil,
		"amount", amount.String(),
		"total_claimed", pos.TotalClaimed.String(),
	)
}

// OnUnstaked implements plugin.OnUnstaked.
func (e *Extension) OnUnstaked(ctx context.Context, pos *staking.Position, s staking.Settlement) error {
	severity := SeverityInfo
	if s.Early {
		severity = SeverityWarning
	}
	return e.record(ctx, ActionUnstaked, severity, OutcomeSuccess,
		ResourceStake, pos.ID.String(), pos.Staker, CategoryStaking, nil,
		"return_amount", s.ReturnAmount.String(),
		"rewards", s.Rewards.String(),
		"penalty", s.Penalty.String(),
		"early", s.Early,
	)
}

// ──────────────────────────────────────────────────
// Governance hooks
// ──────────────────────────────────────────────────

// OnProposalCreated implements plugin.OnProposalCreated.
func (e *Extension) OnProposalCreated(ctx context.Context, p *governance.Proposal) error {
	return e.record(ctx, ActionProposalCreated, SeverityInfo, OutcomeSuccess,
		ResourceProposal, p.ID.String(), p.Creator, CategoryGovernance, nil,
		"type", string(p.Type),
		"title", p.Title,
		"ends_at", p.EndsAt,
	)
}

// OnVoteCast implements plugin.OnVoteCast.
func (e *Extension) OnVoteCast(ctx context.Context, v *governance.Vote, p *governance.Proposal) error {
	return e.record(ctx, ActionVoteCast, SeverityInfo, OutcomeSuccess,
		ResourceVote, v.ID.String(), v.Voter, CategoryGovernance, nil,
		"proposal_id", v.ProposalID.String(),
		"support", v.Support,
		"weight", v.Weight.String(),
		"quorum_reached", p.QuorumReached,
	)
}

// OnProposalFinalized implements plugin.OnProposalFinalized.
func (e *Extension) OnProposalFinalized(ctx context.Context, p *governance.Proposal) error {
	return e.record(ctx, ActionProposalFinalized, SeverityInfo, OutcomeSuccess,
		ResourceProposal, p.ID.String(), "", CategoryGovernance, nil,
		"status", string(p.Status),
		"votes_for", p.VotesFor.String(),
		"votes_against", p.VotesAgainst.String(),
		"voter_count", p.VoterCount,
	)
}

// ──────────────────────────────────────────────────
// Marketplace and premium hooks
// ──────────────────────────────────────────────────

// OnTemplateListed implements plugin.OnTemplateListed.
func (e *Extension) OnTemplateListed(ctx context.Context, t *marketplace.Template) error {
	return e.record(ctx, ActionTemplateListed, SeverityInfo, OutcomeSuccess,
		ResourceTemplate, t.ID.String(), t.Creator, CategoryMarketplace, nil,
		"name", t.Name,
		"price", t.Price.String(),
		"category", string(t.Category),
	)
}

// OnTemplatePurchased implements plugin.OnTemplatePurchased.
func (e *Extension) OnTemplatePurchased(ctx context.Context, p *marketplace.Purchase) error {
	return e.record(ctx, ActionTemplatePurchased, SeverityInfo, OutcomeSuccess,
		ResourcePurchase, p.ID.String(), p.Buyer, CategoryMarketplace, nil,
		"template_id", p.TemplateID.String(),
		"seller", p.Seller,
		"price", p.Price.String(),
		"platform_fee", p.PlatformFee.String(),
		"creator_revenue", p.CreatorRevenue.String(),
	)
}

// OnTemplateRated implements plugin.OnTemplateRated.
func (e *Extension) OnTemplateRated(ctx context.Context, t *marketplace.Template, rater string, rating int) error {
	return e.record(ctx, ActionTemplateRated, SeverityInfo, OutcomeSuccess,
		ResourceTemplate, t.ID.String(), rater, CategoryMarketplace, nil,
		"rating", rating,
		"average", t.Rating,
	)
}

// OnTokensBurned implements plugin.OnTokensBurned.
func (e *Extension) OnTokensBurned(ctx context.Context, rec *premium.BurnRecord, st *premium.Status) error {
	return e.record(ctx, ActionTokensBurned, SeverityInfo, OutcomeSuccess,
		ResourceBurn, rec.ID.String(), rec.Wallet, CategoryPremium, nil,
		"amount", rec.Amount.String(),
		"tier", string(st.Tier),
		"total_burned", st.TotalBurned.String(),
		"simulated", rec.Simulated,
	)
}

// OnOperationRejected implements plugin.OnOperationRejected. Storage
// faults are recorded as errors; refused input as access warnings.
func (e *Extension) OnOperationRejected(ctx context.Context, op string, opErr error) error {
	severity := SeverityWarning
	if ledger.IsRetryable(opErr) {
		severity = SeverityError
	}
	return e.record(ctx, ActionOperationRejected, severity, OutcomeFailure,
		ResourceLedger, "", "", CategoryAccess, opErr,
		"op", op,
		"code", ledger.ErrorCode(opErr),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, actor, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Actor:      actor,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
