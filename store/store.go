// Package store defines the unified persistence interface the ledger
// façade depends on. Backends live in the sub-packages.
package store

import (
	"context"
	"time"

	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/types"
)

// Store is the unified storage interface for all ledger records.
// Instead of embedding the per-domain interfaces, all methods are declared
// explicitly so a backend reads as one checklist.
type Store interface {
	// Staking methods
	CreatePosition(ctx context.Context, p *staking.Position) error
	GetPosition(ctx context.Context, positionID id.StakeID) (*staking.Position, error)
	ListPositions(ctx context.Context, opts staking.ListOpts) ([]*staking.Position, error)
	ClaimRewards(ctx context.Context, positionID id.StakeID, version int64, amount types.Amount, claimedAt time.Time) error
	ClosePosition(ctx context.Context, positionID id.StakeID, version int64, rewards types.Amount, closedAt time.Time) error

	// Governance methods
	CreateProposal(ctx context.Context, p *governance.Proposal) error
	GetProposal(ctx context.Context, proposalID id.ProposalID) (*governance.Proposal, error)
	ListProposals(ctx context.Context, opts governance.ListOpts) ([]*governance.Proposal, error)
	RecordVote(ctx context.Context, v *governance.Vote, quorum types.Amount) (*governance.Proposal, error)
	GetVote(ctx context.Context, proposalID id.ProposalID, voter string) (*governance.Vote, error)
	ListVotes(ctx context.Context, opts governance.VoteListOpts) ([]*governance.Vote, error)
	FinalizeProposals(ctx context.Context, now time.Time) ([]*governance.Proposal, error)

	// Marketplace methods
	CreateTemplate(ctx context.Context, t *marketplace.Template) error
	GetTemplate(ctx context.Context, templateID id.TemplateID) (*marketplace.Template, error)
	ListTemplates(ctx context.Context, opts marketplace.ListOpts) ([]*marketplace.Template, error)
	RecordPurchase(ctx context.Context, p *marketplace.Purchase) error
	GetPurchase(ctx context.Context, templateID id.TemplateID, buyer string) (*marketplace.Purchase, error)
	ListPurchases(ctx context.Context, opts marketplace.PurchaseListOpts) ([]*marketplace.Purchase, error)
	RateTemplate(ctx context.Context, templateID id.TemplateID, rating int, ratedAt time.Time) (*marketplace.Template, error)

	// Premium methods
	GetStatus(ctx context.Context, wallet string) (*premium.Status, error)
	ApplyBurn(ctx context.Context, rec *premium.BurnRecord, apply premium.ApplyFunc) (*premium.Status, error)
	ListBurns(ctx context.Context, opts premium.BurnListOpts) ([]*premium.BurnRecord, error)
	SumBurned(ctx context.Context) (types.Amount, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// The unified interface satisfies every per-domain one.
var (
	_ staking.Store     = Store(nil)
	_ governance.Store  = Store(nil)
	_ marketplace.Store = Store(nil)
	_ premium.Store     = Store(nil)
)
