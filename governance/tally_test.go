package governance

import (
	"math"
	"testing"
	"time"

	"github.com/zkrune/tokenledger/types"
)

func TestVoteWeight(t *testing.T) {
	tests := []struct {
		balance types.Amount
		want    types.Amount
	}{
		{types.Tokens(400), types.Tokens(20)},
		{types.Tokens(10), types.MustParseAmount("3.162277")},
		{types.Tokens(1_000_000), types.Tokens(1000)},
	}
	for _, tt := range tests {
		if got := VoteWeight(tt.balance); got != tt.want {
			t.Errorf("VoteWeight(%s) = %s, want %s", tt.balance, got, tt.want)
		}
	}
}

func TestApplyVote(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	quorum := DefaultConfig().QuorumThreshold
	p := &Proposal{Status: StatusActive, EndsAt: now.Add(time.Hour)}

	p.ApplyVote(&Vote{Support: true, Weight: types.Tokens(60), Timestamp: now}, quorum)
	if p.QuorumReached {
		t.Error("quorum reached at 60")
	}

	p.ApplyVote(&Vote{Support: false, Weight: types.Tokens(40), Timestamp: now}, quorum)
	if !p.QuorumReached {
		t.Error("quorum not reached at 100")
	}
	if p.VotesFor != types.Tokens(60) || p.VotesAgainst != types.Tokens(40) || p.VoterCount != 2 {
		t.Errorf("tally = %s/%s/%d", p.VotesFor, p.VotesAgainst, p.VoterCount)
	}
}

func TestApplyVoteSaturates(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	huge := types.Units(math.MaxInt64 - 1)
	p := &Proposal{Status: StatusActive, EndsAt: now.Add(time.Hour), VotesFor: huge, VotesAgainst: huge}

	p.ApplyVote(&Vote{Support: true, Weight: types.Tokens(5), Timestamp: now}, types.Tokens(100))
	if p.VotesFor != types.Units(math.MaxInt64) {
		t.Errorf("VotesFor = %d, want saturated", p.VotesFor)
	}
	if p.TotalVotes() != types.Units(math.MaxInt64) || !p.QuorumReached {
		t.Errorf("TotalVotes = %d, quorum %v", p.TotalVotes(), p.QuorumReached)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name    string
		forV    int64
		against int64
		quorum  bool
		want    Status
	}{
		{"passes with quorum and majority", 1250, 180, true, StatusPassed},
		{"tie is rejected", 100, 100, true, StatusRejected},
		{"majority without quorum", 50, 10, false, StatusRejected},
		{"no votes", 0, 0, false, StatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Proposal{
				VotesFor:      types.Tokens(tt.forV),
				VotesAgainst:  types.Tokens(tt.against),
				QuorumReached: tt.quorum,
			}
			if got := p.Outcome(); got != tt.want {
				t.Errorf("Outcome() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsOpen(t *testing.T) {
	end := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)
	p := &Proposal{Status: StatusActive, EndsAt: end}

	if !p.IsOpen(end.Add(-time.Nanosecond)) {
		t.Error("should be open just before EndsAt")
	}
	if p.IsOpen(end) || !p.HasEnded(end) {
		t.Error("should be closed at EndsAt")
	}

	p.Status = StatusPassed
	if p.IsOpen(end.Add(-time.Hour)) || p.HasEnded(end) {
		t.Error("finalized proposal reported as active")
	}
}

func TestProposalTypes(t *testing.T) {
	for _, pt := range []ProposalType{TypeTemplate, TypeFeature, TypeParameter, TypeTreasury} {
		if !pt.IsValid() {
			t.Errorf("%s should be valid", pt)
		}
	}
	if ProposalType("budget").IsValid() {
		t.Error("unknown type accepted")
	}
}
