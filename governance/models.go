package governance

import (
	"time"

	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/types"
)

// ProposalType classifies what a proposal changes.
type ProposalType string

const (
	TypeTemplate  ProposalType = "template"
	TypeFeature   ProposalType = "feature"
	TypeParameter ProposalType = "parameter"
	TypeTreasury  ProposalType = "treasury"
)

// IsValid reports whether t is a known proposal type.
func (t ProposalType) IsValid() bool {
	switch t {
	case TypeTemplate, TypeFeature, TypeParameter, TypeTreasury:
		return true
	}
	return false
}

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusActive   Status = "active"
	StatusPassed   Status = "passed"
	StatusRejected Status = "rejected"
	StatusExecuted Status = "executed"
)

// TemplateData is the payload of a template proposal.
type TemplateData struct {
	Name        string `json:"name"`
	CircuitCode string `json:"circuit_code"`
	Category    string `json:"category"`
}

// FeatureData is the payload of a feature proposal.
type FeatureData struct {
	FeatureName   string `json:"feature_name"`
	Specification string `json:"specification"`
}

// Proposal is a time-boxed governance vote.
type Proposal struct {
	types.Entity
	ID            id.ProposalID `json:"id"`
	Type          ProposalType  `json:"type"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Creator       string        `json:"creator"`
	Status        Status        `json:"status"`
	VotesFor      types.Amount  `json:"votes_for"`
	VotesAgainst  types.Amount  `json:"votes_against"`
	VoterCount    int           `json:"voter_count"`
	QuorumReached bool          `json:"quorum_reached"`
	EndsAt        time.Time     `json:"ends_at"`
	TemplateData  *TemplateData `json:"template_data,omitempty"`
	FeatureData   *FeatureData  `json:"feature_data,omitempty"`
}

// IsOpen reports whether the proposal accepts votes at now.
func (p *Proposal) IsOpen(now time.Time) bool {
	return p.Status == StatusActive && now.Before(p.EndsAt)
}

// HasEnded reports whether an active proposal's window has closed.
func (p *Proposal) HasEnded(now time.Time) bool {
	return p.Status == StatusActive && !now.Before(p.EndsAt)
}

// TotalVotes is the combined weight cast.
func (p *Proposal) TotalVotes() types.Amount {
	return p.VotesFor.SaturatingAdd(p.VotesAgainst)
}

// Vote is one wallet's ballot on one proposal.
type Vote struct {
	ID           id.VoteID     `json:"id"`
	ProposalID   id.ProposalID `json:"proposal_id"`
	Voter        string        `json:"voter"`
	Support      bool          `json:"support"`
	Weight       types.Amount  `json:"weight"`
	TokenBalance types.Amount  `json:"token_balance"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Stats summarizes governance activity.
type Stats struct {
	TotalProposals    int `json:"total_proposals"`
	ActiveProposals   int `json:"active_proposals"`
	PassedProposals   int `json:"passed_proposals"`
	RejectedProposals int `json:"rejected_proposals"`
	TotalVoters       int `json:"total_voters"`
	TotalVotesCast    int `json:"total_votes_cast"`
}

// ProposalInput is what a creator submits to open a proposal.
type ProposalInput struct {
	Type         ProposalType  `json:"type"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Creator      string        `json:"creator"`
	TemplateData *TemplateData `json:"template_data,omitempty"`
	FeatureData  *FeatureData  `json:"feature_data,omitempty"`
}
