// Package governance holds proposals and votes and the quadratic tally
// rules applied to them.
package governance

import (
	"time"

	"github.com/zkrune/tokenledger/types"
)

// Config holds the governance rules.
type Config struct {
	MinTokensToVote    types.Amount `json:"min_tokens_to_vote"    mapstructure:"min_tokens_to_vote"    yaml:"min_tokens_to_vote"`
	MinTokensToPropose types.Amount `json:"min_tokens_to_propose" mapstructure:"min_tokens_to_propose" yaml:"min_tokens_to_propose"`
	VotingPeriodDays   int          `json:"voting_period_days"    mapstructure:"voting_period_days"    yaml:"voting_period_days"`

	// QuorumThreshold is an absolute amount of vote weight.
	QuorumThreshold types.Amount `json:"quorum_threshold" mapstructure:"quorum_threshold" yaml:"quorum_threshold"`

	// QuorumPercentage is carried for clients that display it. Quorum is
	// decided by QuorumThreshold only.
	QuorumPercentage float64 `json:"quorum_percentage" mapstructure:"quorum_percentage" yaml:"quorum_percentage"`
}

// DefaultConfig returns the production governance rules.
func DefaultConfig() Config {
	return Config{
		MinTokensToVote:    types.Tokens(10),
		MinTokensToPropose: types.Tokens(1000),
		VotingPeriodDays:   7,
		QuorumThreshold:    types.Tokens(100),
		QuorumPercentage:   10,
	}
}

// VotingPeriod is the length of a proposal's voting window.
func (c Config) VotingPeriod() time.Duration {
	return time.Duration(c.VotingPeriodDays) * 24 * time.Hour
}

// VoteWeight is the quadratic weight of a token balance.
func VoteWeight(balance types.Amount) types.Amount {
	return balance.Sqrt()
}

// ApplyVote adds v's weight to the matching side of the tally and
// recomputes QuorumReached. Callers must already hold exclusive access to p.
func (p *Proposal) ApplyVote(v *Vote, quorum types.Amount) {
	if v.Support {
		p.VotesFor = p.VotesFor.SaturatingAdd(v.Weight)
	} else {
		p.VotesAgainst = p.VotesAgainst.SaturatingAdd(v.Weight)
	}
	p.VoterCount++
	p.QuorumReached = p.TotalVotes() >= quorum
	p.Touch(v.Timestamp)
}

// Outcome is the terminal status the proposal would take if finalized now.
func (p *Proposal) Outcome() Status {
	if p.QuorumReached && p.VotesFor > p.VotesAgainst {
		return StatusPassed
	}
	return StatusRejected
}
