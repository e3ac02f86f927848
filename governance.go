package ledger

import (
	"context"
	"strings"

	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/types"
)

// ──────────────────────────────────────────────────
// Governance
// ──────────────────────────────────────────────────

// CreateProposal opens a proposal whose voting window starts now.
func (l *Ledger) CreateProposal(ctx context.Context, in governance.ProposalInput) (*governance.Proposal, error) {
	const op = "create_proposal"

	if !in.Type.IsValid() {
		return nil, l.reject(ctx, op, ValidationError{Field: "type", Message: "unknown proposal type " + string(in.Type)})
	}

	now := l.now()
	p := &governance.Proposal{
		Entity:       types.NewEntity(now),
		ID:           id.NewProposalID(),
		Type:         in.Type,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Creator:      strings.TrimSpace(in.Creator),
		Status:       governance.StatusActive,
		EndsAt:       now.Add(l.config.Governance.VotingPeriod()),
		TemplateData: in.TemplateData,
		FeatureData:  in.FeatureData,
	}

	if err := l.store.CreateProposal(ctx, p); err != nil {
		return nil, l.reject(ctx, op, storeError(op, err))
	}

	l.logger.Debug("proposal created",
		"proposal_id", p.ID.String(),
		"type", p.Type,
		"creator", p.Creator,
		"ends_at", p.EndsAt,
	)
	l.plugins.EmitProposalCreated(ctx, p)
	return p, nil
}

// CanPropose reports whether balance meets the proposal threshold. It is
// advisory; CreateProposal does not enforce it.
func (l *Ledger) CanPropose(balance types.Amount) bool {
	return balance >= l.config.Governance.MinTokensToPropose
}

// GetProposal retrieves a proposal by ID.
func (l *Ledger) GetProposal(ctx context.Context, proposalID id.ProposalID) (*governance.Proposal, error) {
	p, err := l.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, storeError("get_proposal", err)
	}
	return p, nil
}

// ListProposals lists proposals matching opts.
func (l *Ledger) ListProposals(ctx context.Context, opts governance.ListOpts) ([]*governance.Proposal, error) {
	proposals, err := l.store.ListProposals(ctx, opts)
	if err != nil {
		return nil, storeError("list_proposals", err)
	}
	return proposals, nil
}

// ActiveProposals lists the proposals that still accept votes.
func (l *Ledger) ActiveProposals(ctx context.Context) ([]*governance.Proposal, error) {
	proposals, err := l.store.ListProposals(ctx, governance.ListOpts{Status: governance.StatusActive})
	if err != nil {
		return nil, storeError("active_proposals", err)
	}

	now := l.now()
	open := proposals[:0]
	for _, p := range proposals {
		if p.IsOpen(now) {
			open = append(open, p)
		}
	}
	return open, nil
}

// CastVote records voter's ballot with quadratic weight. Checks run in a
// fixed order: balance, duplicate vote, proposal existence, open window.
// The store repeats the last three atomically, so a concurrent duplicate
// still fails with ErrAlreadyVoted.
func (l *Ledger) CastVote(ctx context.Context, proposalID id.ProposalID, voter string, support bool, tokenBalance types.Amount) (*governance.Vote, error) {
	const op = "cast_vote"
	cfg := l.config.Governance

	voter = strings.TrimSpace(voter)
	if voter == "" {
		return nil, l.reject(ctx, op, ValidationError{Field: "voter", Message: "required"})
	}
	if !tokenBalance.IsPositive() || tokenBalance < cfg.MinTokensToVote {
		return nil, l.reject(ctx, op, ErrInsufficientTokens)
	}

	voted, err := l.HasVoted(ctx, proposalID, voter)
	if err != nil {
		return nil, l.reject(ctx, op, err)
	}
	if voted {
		return nil, l.reject(ctx, op, ErrAlreadyVoted)
	}

	p, err := l.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, l.reject(ctx, op, storeError(op, err))
	}

	now := l.now()
	if !p.IsOpen(now) {
		return nil, l.reject(ctx, op, ErrVotingClosed)
	}

	v := &governance.Vote{
		ID:           id.NewVoteID(),
		ProposalID:   proposalID,
		Voter:        voter,
		Support:      support,
		Weight:       governance.VoteWeight(tokenBalance),
		TokenBalance: tokenBalance,
		Timestamp:    now,
	}
	if !v.Weight.IsPositive() {
		return nil, l.reject(ctx, op, ErrInsufficientTokens)
	}

	updated, err := l.store.RecordVote(ctx, v, cfg.QuorumThreshold)
	if err != nil {
		return nil, l.reject(ctx, op, storeError(op, err))
	}

	l.logger.Debug("vote cast",
		"proposal_id", proposalID.String(),
		"voter", voter,
		"support", support,
		"weight", v.Weight.String(),
		"quorum_reached", updated.QuorumReached,
	)
	l.plugins.EmitVoteCast(ctx, v, updated)
	return v, nil
}

// HasVoted reports whether voter already voted on the proposal.
func (l *Ledger) HasVoted(ctx context.Context, proposalID id.ProposalID, voter string) (bool, error) {
	_, err := l.store.GetVote(ctx, proposalID, voter)
	switch {
	case err == nil:
		return true, nil
	case IsNotFound(err):
		return false, nil
	default:
		return false, storeError("has_voted", err)
	}
}

// ProposalVotes lists the votes cast on a proposal.
func (l *Ledger) ProposalVotes(ctx context.Context, proposalID id.ProposalID) ([]*governance.Vote, error) {
	votes, err := l.store.ListVotes(ctx, governance.VoteListOpts{ProposalID: proposalID})
	if err != nil {
		return nil, storeError("proposal_votes", err)
	}
	return votes, nil
}

// UserVotes lists a voter's ballots. It is advisory: a storage failure is
// logged and yields an empty list.
func (l *Ledger) UserVotes(ctx context.Context, voter string) []*governance.Vote {
	votes, err := l.store.ListVotes(ctx, governance.VoteListOpts{Voter: voter})
	if err != nil {
		l.logger.Error("failed to list votes", "voter", voter, "error", err)
		return []*governance.Vote{}
	}
	return votes
}

// FinalizeEndedProposals moves every ended active proposal to passed or
// rejected. It is safe to run repeatedly and concurrently.
func (l *Ledger) FinalizeEndedProposals(ctx context.Context) ([]*governance.Proposal, error) {
	const op = "finalize_proposals"

	finalized, err := l.store.FinalizeProposals(ctx, l.now())
	if err != nil {
		return nil, l.reject(ctx, op, storeError(op, err))
	}

	for _, p := range finalized {
		l.logger.Debug("proposal finalized",
			"proposal_id", p.ID.String(),
			"status", p.Status,
			"votes_for", p.VotesFor.String(),
			"votes_against", p.VotesAgainst.String(),
		)
		l.plugins.EmitProposalFinalized(ctx, p)
	}
	return finalized, nil
}

// GovernanceStats summarizes proposals and votes.
func (l *Ledger) GovernanceStats(ctx context.Context) (*governance.Stats, error) {
	proposals, err := l.store.ListProposals(ctx, governance.ListOpts{})
	if err != nil {
		return nil, storeError("governance_stats", err)
	}
	votes, err := l.store.ListVotes(ctx, governance.VoteListOpts{})
	if err != nil {
		return nil, storeError("governance_stats", err)
	}

	now := l.now()
	stats := &governance.Stats{
		TotalProposals: len(proposals),
		TotalVotesCast: len(votes),
	}
	for _, p := range proposals {
		switch {
		case p.IsOpen(now):
			stats.ActiveProposals++
		case p.Status == governance.StatusPassed:
			stats.PassedProposals++
		case p.Status == governance.StatusRejected:
			stats.RejectedProposals++
		}
	}
	voters := make(map[string]struct{}, len(votes))
	for _, v := range votes {
		voters[v.Voter] = struct{}{}
	}
	stats.TotalVoters = len(voters)
	return stats, nil
}
