// Package plugin lets extensions observe the token ledger. A plugin
// implements Plugin plus any of the hook interfaces below; the Registry
// discovers the hooks at registration and calls them after each committed
// operation. Hooks never affect the outcome of the operation.
package plugin

import (
	"context"

	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called from Ledger.Start with the ledger itself.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called from Ledger.Stop.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Staking hooks
// ──────────────────────────────────────────────────

// OnStakeCreated is called after a position is opened.
type OnStakeCreated interface {
	Plugin
	OnStakeCreated(ctx context.Context, pos *staking.Position) error
}

// OnRewardsClaimed is called after rewards are paid from an open position.
type OnRewardsClaimed interface {
	Plugin
	OnRewardsClaimed(ctx context.Context, pos *staking.Position, amount types.Amount) error
}

// OnUnstaked is called after a position is closed.
type OnUnstaked interface {
	Plugin
	OnUnstaked(ctx context.Context, pos *staking.Position, s staking.Settlement) error
}

// ──────────────────────────────────────────────────
// Governance hooks
// ──────────────────────────────────────────────────

// OnProposalCreated is called after a proposal opens for voting.
type OnProposalCreated interface {
	Plugin
	OnProposalCreated(ctx context.Context, p *governance.Proposal) error
}

// OnVoteCast is called after a vote is tallied.
type OnVoteCast interface {
	Plugin
	OnVoteCast(ctx context.Context, v *governance.Vote, p *governance.Proposal) error
}

// OnProposalFinalized is called once per proposal when it passes or fails.
type OnProposalFinalized interface {
	Plugin
	OnProposalFinalized(ctx context.Context, p *governance.Proposal) error
}

// ──────────────────────────────────────────────────
// Marketplace and premium hooks
// ──────────────────────────────────────────────────

// OnTemplateListed is called after a template is listed.
type OnTemplateListed interface {
	Plugin
	OnTemplateListed(ctx context.Context, t *marketplace.Template) error
}

// OnTemplatePurchased is called after a purchase is recorded.
type OnTemplatePurchased interface {
	Plugin
	OnTemplatePurchased(ctx context.Context, p *marketplace.Purchase) error
}

// OnTemplateRated is called after a rating is applied.
type OnTemplateRated interface {
	Plugin
	OnTemplateRated(ctx context.Context, t *marketplace.Template, rater string, rating int) error
}

// OnTokensBurned is called after a burn is recorded.
type OnTokensBurned interface {
	Plugin
	OnTokensBurned(ctx context.Context, rec *premium.BurnRecord, st *premium.Status) error
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnOperationRejected is called when an operation fails, with the
// operation name ("stake", "vote", "purchase", ...) and its error.
type OnOperationRejected interface {
	Plugin
	OnOperationRejected(ctx context.Context, op string, err error) error
}
