// Package storetest is a conformance suite every store backend runs from
// its own tests. It checks the atomic, conditional writes the ledger
// relies on as well as plain CRUD and listing.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/store"
	"github.com/zkrune/tokenledger/types"
)

// Factory returns a fresh, migrated, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// base is a fixed, second-aligned UTC instant so every backend round-trips
// times exactly.
var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Run executes the whole suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Positions", testPositions},
		{"ClaimRewardsCAS", testClaimRewardsCAS},
		{"ClosePosition", testClosePosition},
		{"ClosePositionStaleVersion", testClosePositionStaleVersion},
		{"Proposals", testProposals},
		{"RecordVote", testRecordVote},
		{"RecordVoteRejections", testRecordVoteRejections},
		{"FinalizeProposals", testFinalizeProposals},
		{"Templates", testTemplates},
		{"RecordPurchase", testRecordPurchase},
		{"RateTemplate", testRateTemplate},
		{"ApplyBurn", testApplyBurn},
		{"ApplyBurnAbort", testApplyBurnAbort},
		{"ListBurns", testListBurns},
		{"ConcurrentVotes", testConcurrentVotes},
		{"ConcurrentPurchases", testConcurrentPurchases},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			if err := s.Ping(context.Background()); err != nil {
				t.Fatalf("Ping: %v", err)
			}
			tt.fn(t, s)
		})
	}
}

// ──────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────

func newPosition(staker string, amount types.Amount, stakedAt time.Time) *staking.Position {
	return &staking.Position{
		Entity:         types.NewEntity(stakedAt),
		ID:             id.NewStakeID(),
		Staker:         staker,
		Amount:         amount,
		LockPeriodDays: 30,
		Multiplier:     1.0,
		StakedAt:       stakedAt,
		UnlocksAt:      stakedAt.AddDate(0, 0, 30),
		LastClaimAt:    stakedAt,
		IsActive:       true,
	}
}

func newProposal(creator string, createdAt time.Time) *governance.Proposal {
	return &governance.Proposal{
		Entity:      types.NewEntity(createdAt),
		ID:          id.NewProposalID(),
		Type:        governance.TypeFeature,
		Title:       "Add dark mode",
		Description: "Ship a dark theme",
		Creator:     creator,
		Status:      governance.StatusActive,
		EndsAt:      createdAt.AddDate(0, 0, 7),
		FeatureData: &governance.FeatureData{FeatureName: "dark-mode", Specification: "css"},
	}
}

func newVote(p *governance.Proposal, voter string, support bool, weight types.Amount, at time.Time) *governance.Vote {
	return &governance.Vote{
		ID:           id.NewVoteID(),
		ProposalID:   p.ID,
		Voter:        voter,
		Support:      support,
		Weight:       weight,
		TokenBalance: types.Amount(weight.Units() * weight.Units() / types.UnitsPerToken),
		Timestamp:    at,
	}
}

func newTemplate(name, creator string, price types.Amount, category marketplace.Category, createdAt time.Time) *marketplace.Template {
	return &marketplace.Template{
		Entity:         types.NewEntity(createdAt),
		ID:             id.NewTemplateID(),
		Name:           name,
		Description:    name + " circuit",
		Creator:        creator,
		CreatorAddress: creator + "-addr",
		Price:          price,
		Category:       category,
		CircuitCode:    "pragma circom 2.0.0;",
		Tags:           []string{"zk", string(category)},
	}
}

func newPurchase(t *marketplace.Template, buyer string, at time.Time) *marketplace.Purchase {
	fee := t.Price.Percent(5)
	return &marketplace.Purchase{
		ID:             id.NewPurchaseID(),
		TemplateID:     t.ID,
		Buyer:          buyer,
		Seller:         t.CreatorAddress,
		Price:          t.Price,
		PlatformFee:    fee,
		CreatorRevenue: t.Price.Sub(fee),
		Timestamp:      at,
	}
}

func burnRecord(wallet string, at time.Time) *premium.BurnRecord {
	return &premium.BurnRecord{
		ID:        id.NewBurnID(),
		Wallet:    wallet,
		Simulated: true,
		Timestamp: at,
	}
}

// burnApply adds amount to the stored total with the default tier table.
func burnApply(rec *premium.BurnRecord, amount types.Amount) premium.ApplyFunc {
	cfg := premium.DefaultConfig()
	return func(current *premium.Status) (*premium.Status, error) {
		next, err := cfg.Burn(current, rec.Wallet, amount, rec.Timestamp)
		if err != nil {
			return nil, err
		}
		rec.Amount = amount
		rec.Tier = next.Tier
		rec.TotalBurned = next.TotalBurned
		return next, nil
	}
}

func mustCreateProposal(t *testing.T, s store.Store, p *governance.Proposal) {
	t.Helper()
	if err := s.CreateProposal(context.Background(), p); err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
}

func mustCreateTemplate(t *testing.T, s store.Store, tmpl *marketplace.Template) {
	t.Helper()
	if err := s.CreateTemplate(context.Background(), tmpl); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Staking
// ──────────────────────────────────────────────────

func testPositions(t *testing.T, s store.Store) {
	ctx := context.Background()

	alice1 := newPosition("alice", types.Tokens(100), base)
	alice2 := newPosition("alice", types.Tokens(250), base.Add(time.Hour))
	bob := newPosition("bob", types.Tokens(500), base.Add(2*time.Hour))
	for _, p := range []*staking.Position{alice1, alice2, bob} {
		if err := s.CreatePosition(ctx, p); err != nil {
			t.Fatalf("CreatePosition: %v", err)
		}
	}

	got, err := s.GetPosition(ctx, alice2.ID)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if got.ID.String() != alice2.ID.String() || got.Staker != "alice" || got.Amount != types.Tokens(250) {
		t.Errorf("GetPosition = %+v", got)
	}
	if !got.StakedAt.Equal(alice2.StakedAt) || !got.UnlocksAt.Equal(alice2.UnlocksAt) {
		t.Errorf("times not preserved: staked %v unlocks %v", got.StakedAt, got.UnlocksAt)
	}
	if !got.IsActive || got.Multiplier != 1.0 || got.LockPeriodDays != 30 {
		t.Errorf("fields not preserved: %+v", got)
	}

	if _, err := s.GetPosition(ctx, id.NewStakeID()); !errors.Is(err, ledger.ErrPositionNotFound) {
		t.Errorf("GetPosition(missing) error = %v, want ErrPositionNotFound", err)
	}

	list, err := s.ListPositions(ctx, staking.ListOpts{Staker: "alice"})
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(list) != 2 || list[0].ID.String() != alice1.ID.String() {
		t.Errorf("ListPositions(alice) = %d positions, want alice1 first of 2", len(list))
	}

	all, err := s.ListPositions(ctx, staking.ListOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListPositions(paged): %v", err)
	}
	if len(all) != 2 || all[1].ID.String() != bob.ID.String() {
		t.Errorf("ListPositions(paged) = %d positions", len(all))
	}
}

func testClaimRewardsCAS(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPosition("alice", types.Tokens(1000), base)
	if err := s.CreatePosition(ctx, p); err != nil {
		t.Fatalf("CreatePosition: %v", err)
	}

	claimAt := base.AddDate(0, 0, 10)
	if err := s.ClaimRewards(ctx, p.ID, p.Version, types.MustParseAmount("3.287671"), claimAt); err != nil {
		t.Fatalf("ClaimRewards: %v", err)
	}

	// The same version was consumed by the first claim.
	if err := s.ClaimRewards(ctx, p.ID, p.Version, types.Tokens(1), claimAt); !errors.Is(err, ledger.ErrNothingToClaim) {
		t.Errorf("stale ClaimRewards error = %v, want ErrNothingToClaim", err)
	}

	got, err := s.GetPosition(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if got.TotalClaimed != types.MustParseAmount("3.287671") {
		t.Errorf("TotalClaimed = %s", got.TotalClaimed)
	}
	if !got.LastClaimAt.Equal(claimAt) {
		t.Errorf("LastClaimAt = %v, want %v", got.LastClaimAt, claimAt)
	}
	if got.Version != p.Version+1 {
		t.Errorf("Version = %d, want %d", got.Version, p.Version+1)
	}

	if err := s.ClaimRewards(ctx, id.NewStakeID(), 0, types.Tokens(1), claimAt); !errors.Is(err, ledger.ErrPositionNotFound) {
		t.Errorf("ClaimRewards(missing) error = %v", err)
	}

	if err := s.ClosePosition(ctx, p.ID, got.Version, 0, claimAt); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if err := s.ClaimRewards(ctx, p.ID, got.Version+1, types.Tokens(1), claimAt); !errors.Is(err, ledger.ErrInactive) {
		t.Errorf("ClaimRewards(closed) error = %v, want ErrInactive", err)
	}
}

func testClosePosition(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPosition("alice", types.Tokens(1000), base)
	if err := s.CreatePosition(ctx, p); err != nil {
		t.Fatalf("CreatePosition: %v", err)
	}

	closeAt := base.AddDate(0, 0, 31)
	if err := s.ClosePosition(ctx, p.ID, p.Version, types.Tokens(10), closeAt); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if err := s.ClosePosition(ctx, p.ID, p.Version+1, types.Tokens(10), closeAt); !errors.Is(err, ledger.ErrAlreadyInactive) {
		t.Errorf("second ClosePosition error = %v, want ErrAlreadyInactive", err)
	}
	if err := s.ClosePosition(ctx, id.NewStakeID(), 0, 0, closeAt); !errors.Is(err, ledger.ErrPositionNotFound) {
		t.Errorf("ClosePosition(missing) error = %v", err)
	}

	got, err := s.GetPosition(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if got.IsActive || got.TotalClaimed != types.Tokens(10) {
		t.Errorf("closed position = active %v claimed %s", got.IsActive, got.TotalClaimed)
	}

	active, err := s.ListPositions(ctx, staking.ListOpts{ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("ActiveOnly returned %d closed positions", len(active))
	}
}

func testClosePositionStaleVersion(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPosition("alice", types.Tokens(1000), base)
	if err := s.CreatePosition(ctx, p); err != nil {
		t.Fatalf("CreatePosition: %v", err)
	}

	// A claim lands between reading the position and closing it.
	claimAt := base.AddDate(0, 0, 73)
	if err := s.ClaimRewards(ctx, p.ID, p.Version, types.Tokens(24), claimAt); err != nil {
		t.Fatalf("ClaimRewards: %v", err)
	}
	if err := s.ClosePosition(ctx, p.ID, p.Version, types.Tokens(24), claimAt); !errors.Is(err, ledger.ErrPositionChanged) {
		t.Fatalf("stale ClosePosition error = %v, want ErrPositionChanged", err)
	}

	got, err := s.GetPosition(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if !got.IsActive || got.TotalClaimed != types.Tokens(24) {
		t.Errorf("stale close was applied: active %v claimed %s", got.IsActive, got.TotalClaimed)
	}

	if err := s.ClosePosition(ctx, p.ID, got.Version, 0, claimAt); err != nil {
		t.Fatalf("ClosePosition(current): %v", err)
	}
	got, err = s.GetPosition(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if got.IsActive || got.TotalClaimed != types.Tokens(24) {
		t.Errorf("closed position = active %v claimed %s", got.IsActive, got.TotalClaimed)
	}
}

// ──────────────────────────────────────────────────
// Governance
// ──────────────────────────────────────────────────

func testProposals(t *testing.T, s store.Store) {
	ctx := context.Background()

	older := newProposal("alice", base)
	newer := newProposal("bob", base.Add(time.Hour))
	newer.Type = governance.TypeTemplate
	newer.FeatureData = nil
	newer.TemplateData = &governance.TemplateData{Name: "age-check", CircuitCode: "c", Category: "identity"}
	mustCreateProposal(t, s, older)
	mustCreateProposal(t, s, newer)

	got, err := s.GetProposal(ctx, newer.ID)
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if got.TemplateData == nil || got.TemplateData.Name != "age-check" || got.FeatureData != nil {
		t.Errorf("payload not preserved: %+v %+v", got.TemplateData, got.FeatureData)
	}
	if !got.EndsAt.Equal(newer.EndsAt) || got.Status != governance.StatusActive {
		t.Errorf("GetProposal = %+v", got)
	}

	if _, err := s.GetProposal(ctx, id.NewProposalID()); !errors.Is(err, ledger.ErrProposalNotFound) {
		t.Errorf("GetProposal(missing) error = %v", err)
	}

	list, err := s.ListProposals(ctx, governance.ListOpts{})
	if err != nil {
		t.Fatalf("ListProposals: %v", err)
	}
	if len(list) != 2 || list[0].ID.String() != newer.ID.String() {
		t.Errorf("ListProposals should return newest first, got %d", len(list))
	}

	byType, err := s.ListProposals(ctx, governance.ListOpts{Type: governance.TypeFeature})
	if err != nil {
		t.Fatalf("ListProposals(type): %v", err)
	}
	if len(byType) != 1 || byType[0].ID.String() != older.ID.String() {
		t.Errorf("ListProposals(type) = %d", len(byType))
	}

	byCreator, err := s.ListProposals(ctx, governance.ListOpts{Creator: "bob"})
	if err != nil {
		t.Fatalf("ListProposals(creator): %v", err)
	}
	if len(byCreator) != 1 {
		t.Errorf("ListProposals(creator) = %d", len(byCreator))
	}
}

func testRecordVote(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newProposal("alice", base)
	mustCreateProposal(t, s, p)

	quorum := types.Tokens(100)
	v1 := newVote(p, "bob", true, types.Tokens(60), base.Add(time.Hour))
	updated, err := s.RecordVote(ctx, v1, quorum)
	if err != nil {
		t.Fatalf("RecordVote: %v", err)
	}
	if updated.VotesFor != types.Tokens(60) || updated.VoterCount != 1 || updated.QuorumReached {
		t.Errorf("after first vote: for=%s voters=%d quorum=%v", updated.VotesFor, updated.VoterCount, updated.QuorumReached)
	}

	v2 := newVote(p, "carol", false, types.Tokens(40), base.Add(2*time.Hour))
	updated, err = s.RecordVote(ctx, v2, quorum)
	if err != nil {
		t.Fatalf("RecordVote: %v", err)
	}
	if updated.VotesAgainst != types.Tokens(40) || updated.VoterCount != 2 || !updated.QuorumReached {
		t.Errorf("after second vote: against=%s voters=%d quorum=%v", updated.VotesAgainst, updated.VoterCount, updated.QuorumReached)
	}

	stored, err := s.GetProposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if stored.VotesFor != types.Tokens(60) || stored.VotesAgainst != types.Tokens(40) || !stored.QuorumReached {
		t.Errorf("stored tallies = %+v", stored)
	}

	got, err := s.GetVote(ctx, p.ID, "bob")
	if err != nil {
		t.Fatalf("GetVote: %v", err)
	}
	if !got.Support || got.Weight != types.Tokens(60) || got.ID.String() != v1.ID.String() {
		t.Errorf("GetVote = %+v", got)
	}
	if _, err := s.GetVote(ctx, p.ID, "dave"); !ledger.IsNotFound(err) {
		t.Errorf("GetVote(missing) error = %v", err)
	}

	votes, err := s.ListVotes(ctx, governance.VoteListOpts{ProposalID: p.ID})
	if err != nil {
		t.Fatalf("ListVotes: %v", err)
	}
	if len(votes) != 2 || votes[0].Voter != "bob" {
		t.Errorf("ListVotes = %d votes", len(votes))
	}
	byVoter, err := s.ListVotes(ctx, governance.VoteListOpts{Voter: "carol"})
	if err != nil {
		t.Fatalf("ListVotes(voter): %v", err)
	}
	if len(byVoter) != 1 || byVoter[0].Support {
		t.Errorf("ListVotes(voter) = %+v", byVoter)
	}
}

func testRecordVoteRejections(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newProposal("alice", base)
	mustCreateProposal(t, s, p)
	quorum := types.Tokens(100)

	if _, err := s.RecordVote(ctx, newVote(p, "bob", true, types.Tokens(10), base.Add(time.Hour)), quorum); err != nil {
		t.Fatalf("RecordVote: %v", err)
	}

	tests := []struct {
		name string
		vote *governance.Vote
		want error
	}{
		{"duplicate", newVote(p, "bob", false, types.Tokens(10), base.Add(2*time.Hour)), ledger.ErrAlreadyVoted},
		{"missing proposal", newVote(newProposal("x", base), "carol", true, types.Tokens(10), base.Add(time.Hour)), ledger.ErrProposalNotFound},
		{"after end", newVote(p, "dave", true, types.Tokens(10), p.EndsAt), ledger.ErrVotingClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.RecordVote(ctx, tt.vote, quorum); !errors.Is(err, tt.want) {
				t.Errorf("RecordVote error = %v, want %v", err, tt.want)
			}
		})
	}

	stored, err := s.GetProposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if stored.VotesFor != types.Tokens(10) || stored.VotesAgainst != 0 || stored.VoterCount != 1 {
		t.Errorf("rejected votes changed tallies: %+v", stored)
	}
	if _, err := s.GetVote(ctx, p.ID, "dave"); !ledger.IsNotFound(err) {
		t.Errorf("rejected vote was stored: %v", err)
	}
}

func testFinalizeProposals(t *testing.T, s store.Store) {
	ctx := context.Background()
	quorum := types.Tokens(100)

	passing := newProposal("alice", base)
	failing := newProposal("alice", base.Add(time.Minute))
	noQuorum := newProposal("alice", base.Add(2*time.Minute))
	later := newProposal("alice", base.AddDate(0, 0, 5))
	for _, p := range []*governance.Proposal{passing, failing, noQuorum, later} {
		mustCreateProposal(t, s, p)
	}

	at := base.Add(time.Hour)
	votes := []*governance.Vote{
		newVote(passing, "v1", true, types.Tokens(80), at),
		newVote(passing, "v2", false, types.Tokens(30), at),
		newVote(failing, "v1", false, types.Tokens(80), at),
		newVote(failing, "v2", true, types.Tokens(30), at),
		newVote(noQuorum, "v1", true, types.Tokens(50), at),
	}
	for _, v := range votes {
		if _, err := s.RecordVote(ctx, v, quorum); err != nil {
			t.Fatalf("RecordVote: %v", err)
		}
	}

	now := base.AddDate(0, 0, 8)
	finalized, err := s.FinalizeProposals(ctx, now)
	if err != nil {
		t.Fatalf("FinalizeProposals: %v", err)
	}
	if len(finalized) != 3 {
		t.Fatalf("finalized %d proposals, want 3", len(finalized))
	}

	want := map[string]governance.Status{
		passing.ID.String():  governance.StatusPassed,
		failing.ID.String():  governance.StatusRejected,
		noQuorum.ID.String(): governance.StatusRejected,
		later.ID.String():    governance.StatusActive,
	}
	for key, status := range want {
		pid, _ := id.ParseProposalID(key)
		got, err := s.GetProposal(ctx, pid)
		if err != nil {
			t.Fatalf("GetProposal: %v", err)
		}
		if got.Status != status {
			t.Errorf("proposal %s status = %s, want %s", key, got.Status, status)
		}
	}

	again, err := s.FinalizeProposals(ctx, now)
	if err != nil {
		t.Fatalf("second FinalizeProposals: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second FinalizeProposals moved %d proposals", len(again))
	}

	passed, err := s.ListProposals(ctx, governance.ListOpts{Status: governance.StatusPassed})
	if err != nil {
		t.Fatalf("ListProposals: %v", err)
	}
	if len(passed) != 1 || passed[0].ID.String() != passing.ID.String() {
		t.Errorf("ListProposals(passed) = %d", len(passed))
	}
}

// ──────────────────────────────────────────────────
// Marketplace
// ──────────────────────────────────────────────────

func testTemplates(t *testing.T, s store.Store) {
	ctx := context.Background()

	age := newTemplate("Age Verification", "alice", types.Tokens(10), marketplace.CategoryIdentity, base)
	vote := newTemplate("Private Voting", "bob", types.Tokens(25), marketplace.CategoryVoting, base.Add(time.Hour))
	vote.Featured = true
	vote.Nodes = []byte(`[{"id":"n1"}]`)
	mustCreateTemplate(t, s, age)
	mustCreateTemplate(t, s, vote)

	got, err := s.GetTemplate(ctx, vote.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if got.Name != "Private Voting" || got.Price != types.Tokens(25) || !got.Featured {
		t.Errorf("GetTemplate = %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[1] != "voting" {
		t.Errorf("Tags = %v", got.Tags)
	}
	if string(got.Nodes) != `[{"id":"n1"}]` {
		t.Errorf("Nodes = %s", got.Nodes)
	}
	if _, err := s.GetTemplate(ctx, id.NewTemplateID()); !errors.Is(err, ledger.ErrTemplateNotFound) {
		t.Errorf("GetTemplate(missing) error = %v", err)
	}

	featured := true
	tests := []struct {
		name string
		opts marketplace.ListOpts
		want []string
	}{
		{"all newest first", marketplace.ListOpts{}, []string{vote.ID.String(), age.ID.String()}},
		{"category", marketplace.ListOpts{Category: marketplace.CategoryIdentity}, []string{age.ID.String()}},
		{"creator", marketplace.ListOpts{Creator: "bob"}, []string{vote.ID.String()}},
		{"featured", marketplace.ListOpts{Featured: &featured}, []string{vote.ID.String()}},
		{"search name", marketplace.ListOpts{Query: "AGE"}, []string{age.ID.String()}},
		{"search tag", marketplace.ListOpts{Query: "voting"}, []string{vote.ID.String()}},
		{"paged", marketplace.ListOpts{Limit: 1, Offset: 1}, []string{age.ID.String()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListTemplates(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListTemplates: %v", err)
			}
			if len(list) != len(tt.want) {
				t.Fatalf("ListTemplates = %d templates, want %d", len(list), len(tt.want))
			}
			for i := range list {
				if list[i].ID.String() != tt.want[i] {
					t.Errorf("ListTemplates[%d] = %s, want %s", i, list[i].ID, tt.want[i])
				}
			}
		})
	}
}

func testRecordPurchase(t *testing.T, s store.Store) {
	ctx := context.Background()
	tmpl := newTemplate("Age Verification", "alice", types.Tokens(10), marketplace.CategoryIdentity, base)
	mustCreateTemplate(t, s, tmpl)

	p := newPurchase(tmpl, "bob", base.Add(time.Hour))
	p.TransactionSignature = "sig-1"
	if err := s.RecordPurchase(ctx, p); err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	if err := s.RecordPurchase(ctx, newPurchase(tmpl, "bob", base.Add(2*time.Hour))); !errors.Is(err, ledger.ErrAlreadyOwned) {
		t.Errorf("duplicate RecordPurchase error = %v, want ErrAlreadyOwned", err)
	}
	ghost := newTemplate("Ghost", "x", types.Tokens(10), marketplace.CategoryOther, base)
	if err := s.RecordPurchase(ctx, newPurchase(ghost, "bob", base)); !errors.Is(err, ledger.ErrTemplateNotFound) {
		t.Errorf("RecordPurchase(missing template) error = %v", err)
	}

	got, err := s.GetTemplate(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if got.Downloads != 1 {
		t.Errorf("Downloads = %d, want 1", got.Downloads)
	}

	purchase, err := s.GetPurchase(ctx, tmpl.ID, "bob")
	if err != nil {
		t.Fatalf("GetPurchase: %v", err)
	}
	if purchase.PlatformFee != types.MustParseAmount("0.5") || purchase.CreatorRevenue != types.MustParseAmount("9.5") {
		t.Errorf("split = %s/%s", purchase.PlatformFee, purchase.CreatorRevenue)
	}
	if purchase.TransactionSignature != "sig-1" || purchase.Seller != "alice-addr" {
		t.Errorf("GetPurchase = %+v", purchase)
	}
	if _, err := s.GetPurchase(ctx, tmpl.ID, "carol"); !ledger.IsNotFound(err) {
		t.Errorf("GetPurchase(missing) error = %v", err)
	}

	if err := s.RecordPurchase(ctx, newPurchase(tmpl, "carol", base.Add(3*time.Hour))); err != nil {
		t.Fatalf("RecordPurchase(carol): %v", err)
	}
	all, err := s.ListPurchases(ctx, marketplace.PurchaseListOpts{TemplateID: tmpl.ID})
	if err != nil {
		t.Fatalf("ListPurchases: %v", err)
	}
	if len(all) != 2 || all[0].Buyer != "bob" {
		t.Errorf("ListPurchases = %d", len(all))
	}
	byBuyer, err := s.ListPurchases(ctx, marketplace.PurchaseListOpts{Buyer: "carol"})
	if err != nil {
		t.Fatalf("ListPurchases(buyer): %v", err)
	}
	if len(byBuyer) != 1 {
		t.Errorf("ListPurchases(buyer) = %d", len(byBuyer))
	}
	bySeller, err := s.ListPurchases(ctx, marketplace.PurchaseListOpts{Seller: "alice-addr"})
	if err != nil {
		t.Fatalf("ListPurchases(seller): %v", err)
	}
	if len(bySeller) != 2 {
		t.Errorf("ListPurchases(seller) = %d", len(bySeller))
	}
}

func testRateTemplate(t *testing.T, s store.Store) {
	ctx := context.Background()
	tmpl := newTemplate("Age Verification", "alice", types.Tokens(10), marketplace.CategoryIdentity, base)
	mustCreateTemplate(t, s, tmpl)

	var ratedAt time.Time
	for i, r := range []int{5, 4, 3} {
		ratedAt = base.Add(time.Duration(i+1) * time.Hour)
		rated, err := s.RateTemplate(ctx, tmpl.ID, r, ratedAt)
		if err != nil {
			t.Fatalf("RateTemplate(%d): %v", r, err)
		}
		if !rated.UpdatedAt.Equal(ratedAt) {
			t.Errorf("RateTemplate(%d) UpdatedAt = %v, want %v", r, rated.UpdatedAt, ratedAt)
		}
	}
	got, err := s.GetTemplate(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if got.RatingCount != 3 || got.Rating != 4 {
		t.Errorf("rating = %v over %d, want 4 over 3", got.Rating, got.RatingCount)
	}
	if !got.UpdatedAt.Equal(ratedAt) {
		t.Errorf("stored UpdatedAt = %v, want %v", got.UpdatedAt, ratedAt)
	}

	if _, err := s.RateTemplate(ctx, id.NewTemplateID(), 5, ratedAt); !errors.Is(err, ledger.ErrTemplateNotFound) {
		t.Errorf("RateTemplate(missing) error = %v", err)
	}
}

// ──────────────────────────────────────────────────
// Premium
// ──────────────────────────────────────────────────

func testApplyBurn(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.GetStatus(ctx, "alice"); !ledger.IsNotFound(err) {
		t.Fatalf("GetStatus(new wallet) error = %v", err)
	}

	first := burnRecord("alice", base)
	st, err := s.ApplyBurn(ctx, first, burnApply(first, types.Tokens(100)))
	if err != nil {
		t.Fatalf("ApplyBurn: %v", err)
	}
	if st.Tier != premium.TierBuilder || st.TotalBurned != types.Tokens(100) {
		t.Errorf("after first burn: %s %s", st.Tier, st.TotalBurned)
	}

	second := burnRecord("alice", base.Add(time.Hour))
	st, err = s.ApplyBurn(ctx, second, burnApply(second, types.Tokens(400)))
	if err != nil {
		t.Fatalf("ApplyBurn: %v", err)
	}
	if st.Tier != premium.TierPro || st.TotalBurned != types.Tokens(500) || st.LifetimeBurned != types.Tokens(500) {
		t.Errorf("after second burn: %+v", st)
	}

	stored, err := s.GetStatus(ctx, "alice")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if stored.Tier != premium.TierPro || !stored.ExpiresAt.Equal(base.Add(time.Hour).AddDate(0, 0, 365)) {
		t.Errorf("stored status = %+v", stored)
	}
	if !stored.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want first burn time", stored.CreatedAt)
	}

	burns, err := s.ListBurns(ctx, premium.BurnListOpts{Wallet: "alice"})
	if err != nil {
		t.Fatalf("ListBurns: %v", err)
	}
	if len(burns) != 2 || burns[0].ID.String() != second.ID.String() {
		t.Fatalf("ListBurns = %d, want newest first", len(burns))
	}
	if burns[0].TotalBurned != types.Tokens(500) || burns[0].Tier != premium.TierPro || !burns[0].Simulated {
		t.Errorf("burn record = %+v", burns[0])
	}
}

func testApplyBurnAbort(t *testing.T, s store.Store) {
	ctx := context.Background()
	abort := errors.New("abort")

	rec := burnRecord("alice", base)
	_, err := s.ApplyBurn(ctx, rec, func(*premium.Status) (*premium.Status, error) {
		return nil, abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("ApplyBurn error = %v, want the apply error", err)
	}
	if _, err := s.GetStatus(ctx, "alice"); !ledger.IsNotFound(err) {
		t.Errorf("aborted burn wrote a status: %v", err)
	}
	total, err := s.SumBurned(ctx)
	if err != nil {
		t.Fatalf("SumBurned: %v", err)
	}
	if total != 0 {
		t.Errorf("aborted burn wrote a record: total %s", total)
	}
}

func testListBurns(t *testing.T, s store.Store) {
	ctx := context.Background()

	wallets := []string{"alice", "bob", "alice", "carol", "alice"}
	for i, w := range wallets {
		rec := burnRecord(w, base.Add(time.Duration(i)*time.Minute))
		if _, err := s.ApplyBurn(ctx, rec, burnApply(rec, types.Tokens(int64(10*(i+1))))); err != nil {
			t.Fatalf("ApplyBurn: %v", err)
		}
	}

	all, err := s.ListBurns(ctx, premium.BurnListOpts{Limit: 3})
	if err != nil {
		t.Fatalf("ListBurns: %v", err)
	}
	if len(all) != 3 || all[0].Amount != types.Tokens(50) || all[2].Amount != types.Tokens(30) {
		t.Errorf("ListBurns(limit 3) = %d records", len(all))
	}

	alice, err := s.ListBurns(ctx, premium.BurnListOpts{Wallet: "alice"})
	if err != nil {
		t.Fatalf("ListBurns(alice): %v", err)
	}
	if len(alice) != 3 {
		t.Errorf("ListBurns(alice) = %d", len(alice))
	}

	total, err := s.SumBurned(ctx)
	if err != nil {
		t.Fatalf("SumBurned: %v", err)
	}
	if total != types.Tokens(150) {
		t.Errorf("SumBurned = %s, want 150", total)
	}
}

// ──────────────────────────────────────────────────
// Concurrency
// ──────────────────────────────────────────────────

func testConcurrentVotes(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newProposal("alice", base)
	mustCreateProposal(t, s, p)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := newVote(p, "bob", i%2 == 0, types.Tokens(10), base.Add(time.Hour))
			_, err := s.RecordVote(ctx, v, types.Tokens(100))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ledger.ErrAlreadyVoted):
				conflicts++
			default:
				t.Errorf("RecordVote: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != n-1 {
		t.Errorf("successes = %d, conflicts = %d", successes, conflicts)
	}
	got, err := s.GetProposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if got.VoterCount != 1 || got.TotalVotes() != types.Tokens(10) {
		t.Errorf("tallies after race = %d voters, %s weight", got.VoterCount, got.TotalVotes())
	}
}

func testConcurrentPurchases(t *testing.T, s store.Store) {
	ctx := context.Background()
	tmpl := newTemplate("Age Verification", "alice", types.Tokens(10), marketplace.CategoryIdentity, base)
	mustCreateTemplate(t, s, tmpl)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RecordPurchase(ctx, newPurchase(tmpl, "bob", base.Add(time.Hour)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ledger.ErrAlreadyOwned):
			default:
				t.Errorf("RecordPurchase: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successes = %d, want 1", successes)
	}
	got, err := s.GetTemplate(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if got.Downloads != 1 {
		t.Errorf("Downloads = %d, want 1", got.Downloads)
	}
}
