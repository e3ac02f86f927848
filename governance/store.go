package governance

import (
	"context"
	"time"

	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/types"
)

// Store persists proposals and votes.
type Store interface {
	CreateProposal(ctx context.Context, p *Proposal) error
	GetProposal(ctx context.Context, proposalID id.ProposalID) (*Proposal, error)
	ListProposals(ctx context.Context, opts ListOpts) ([]*Proposal, error)

	// RecordVote appends v and applies its weight to the proposal in one
	// atomic step, recomputing QuorumReached against quorum. It fails with
	// ErrAlreadyVoted, ErrProposalNotFound or ErrVotingClosed without
	// writing anything.
	RecordVote(ctx context.Context, v *Vote, quorum types.Amount) (*Proposal, error)
	GetVote(ctx context.Context, proposalID id.ProposalID, voter string) (*Vote, error)
	ListVotes(ctx context.Context, opts VoteListOpts) ([]*Vote, error)

	// FinalizeProposals moves every active proposal that ended at or
	// before now to passed or rejected and returns the ones it moved.
	FinalizeProposals(ctx context.Context, now time.Time) ([]*Proposal, error)
}

// ListOpts filters ListProposals.
type ListOpts struct {
	Status  Status
	Type    ProposalType
	Creator string
	Limit   int
	Offset  int
}

// VoteListOpts filters ListVotes.
type VoteListOpts struct {
	ProposalID id.ProposalID
	Voter      string
	Limit      int
	Offset     int
}
