package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/store"
	"github.com/zkrune/tokenledger/store/memory"
	"github.com/zkrune/tokenledger/types"
)

var epoch = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const day = 24 * time.Hour

func newTestLedger(t *testing.T, opts ...ledger.Option) (*ledger.Ledger, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: epoch}
	base := []ledger.Option{
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		ledger.WithClock(clock),
		ledger.WithSweepInterval(0),
	}
	l := ledger.New(memory.New(), append(base, opts...)...)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = l.Stop() })
	return l, clock
}

func TestStakeLifecycle(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLedger(t)

	pos, err := l.CreateStake(ctx, "alice", types.Tokens(1000), 30)
	if err != nil {
		t.Fatalf("CreateStake: %v", err)
	}
	if !pos.IsActive || pos.Multiplier != 1.0 || !pos.UnlocksAt.Equal(epoch.AddDate(0, 0, 30)) {
		t.Fatalf("unexpected position: %+v", pos)
	}

	if _, err := l.ClaimRewards(ctx, pos.ID, "alice"); !errors.Is(err, ledger.ErrNothingToClaim) {
		t.Fatalf("claim on day 0: err = %v, want ErrNothingToClaim", err)
	}

	// 12% APY on 1000 tokens for 73 days is exactly 24 tokens.
	clock.Advance(73 * day)
	paid, err := l.ClaimRewards(ctx, pos.ID, "alice")
	if err != nil {
		t.Fatalf("ClaimRewards: %v", err)
	}
	if paid != types.Tokens(24) {
		t.Errorf("paid = %s, want 24", paid)
	}

	got, err := l.GetPosition(ctx, pos.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalClaimed != types.Tokens(24) || !got.LastClaimAt.Equal(clock.Now()) {
		t.Errorf("claim not persisted: %+v", got)
	}
	if pending := l.PendingRewards(got); !pending.IsZero() {
		t.Errorf("pending right after claim = %s", pending)
	}

	settlement, err := l.Unstake(ctx, pos.ID, "alice")
	if err != nil {
		t.Fatalf("Unstake: %v", err)
	}
	if settlement.Early || settlement.ReturnAmount != types.Tokens(1000) || !settlement.Penalty.IsZero() {
		t.Errorf("settlement = %+v", settlement)
	}

	if _, err := l.Unstake(ctx, pos.ID, "alice"); !errors.Is(err, ledger.ErrAlreadyInactive) {
		t.Errorf("second unstake: err = %v", err)
	}
	if _, err := l.ClaimRewards(ctx, pos.ID, "alice"); !errors.Is(err, ledger.ErrInactive) {
		t.Errorf("claim after unstake: err = %v", err)
	}
}

func TestEarlyUnstakeForfeitsRewards(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLedger(t)

	pos, err := l.CreateStake(ctx, "bob", types.Tokens(400), 365)
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(100 * day)

	if pending := l.PendingRewards(pos); !pending.IsPositive() {
		t.Fatalf("pending = %s, want positive", pending)
	}
	cd := l.TimeUntilUnlock(pos)
	if cd.IsUnlocked || cd.Days != 265 {
		t.Errorf("countdown = %+v", cd)
	}

	s, err := l.Unstake(ctx, pos.ID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	want := struct{ ret, penalty types.Amount }{types.Tokens(200), types.Tokens(200)}
	if !s.Early || s.ReturnAmount != want.ret || s.Penalty != want.penalty || !s.Rewards.IsZero() {
		t.Errorf("settlement = %+v", s)
	}
}

// claimFirstStore runs beforeClose once, just ahead of the first
// ClosePosition it forwards.
type claimFirstStore struct {
	store.Store
	once        sync.Once
	beforeClose func()
}

func (s *claimFirstStore) ClosePosition(ctx context.Context, positionID id.StakeID, version int64, rewards types.Amount, closedAt time.Time) error {
	s.once.Do(s.beforeClose)
	return s.Store.ClosePosition(ctx, positionID, version, rewards, closedAt)
}

func TestUnstakeAfterInterleavedClaim(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: epoch}
	s := &claimFirstStore{Store: memory.New()}
	l := ledger.New(s,
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		ledger.WithClock(clock),
		ledger.WithSweepInterval(0),
	)
	if err := l.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer l.Stop()

	pos, err := l.CreateStake(ctx, "alice", types.Tokens(1000), 30)
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(73 * day)

	var claimed types.Amount
	s.beforeClose = func() {
		claimed, err = l.ClaimRewards(ctx, pos.ID, "alice")
		if err != nil {
			t.Errorf("interleaved claim: %v", err)
		}
	}

	settlement, err := l.Unstake(ctx, pos.ID, "alice")
	if err != nil {
		t.Fatalf("Unstake: %v", err)
	}
	if claimed != types.Tokens(24) {
		t.Errorf("claimed = %s, want 24", claimed)
	}
	if !settlement.Rewards.IsZero() || settlement.ReturnAmount != types.Tokens(1000) {
		t.Errorf("settlement = %+v, want principal only", settlement)
	}

	got, _ := l.GetPosition(ctx, pos.ID)
	if got.IsActive || got.TotalClaimed != types.Tokens(24) {
		t.Errorf("position = active %v claimed %s, want closed with 24", got.IsActive, got.TotalClaimed)
	}
}

func TestCreateStakeValidation(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	tests := []struct {
		name   string
		staker string
		amount types.Amount
		days   int
		want   error
	}{
		{"below minimum", "alice", types.Tokens(99), 30, ledger.ErrInvalidAmount},
		{"zero", "alice", 0, 30, ledger.ErrInvalidAmount},
		{"negative", "alice", types.Tokens(-500), 30, ledger.ErrInvalidAmount},
		{"unknown lock", "alice", types.Tokens(500), 60, ledger.ErrInvalidLockPeriod},
		{"missing staker", " ", types.Tokens(500), 30, ledger.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.CreateStake(ctx, tt.staker, tt.amount, tt.days); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := l.CreateStake(ctx, "alice", types.Tokens(100), 30); err != nil {
		t.Errorf("minimum stake rejected: %v", err)
	}
}

func TestPositionHiddenFromOtherStakers(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLedger(t)

	pos, err := l.CreateStake(ctx, "alice", types.Tokens(500), 90)
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(10 * day)

	if _, err := l.ClaimRewards(ctx, pos.ID, "mallory"); !errors.Is(err, ledger.ErrPositionNotFound) {
		t.Errorf("foreign claim: err = %v", err)
	}
	if _, err := l.Unstake(ctx, pos.ID, "mallory"); !errors.Is(err, ledger.ErrPositionNotFound) {
		t.Errorf("foreign unstake: err = %v", err)
	}
}

func TestStakingAggregates(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLedger(t)

	a1, _ := l.CreateStake(ctx, "alice", types.Tokens(1000), 30)
	_, _ = l.CreateStake(ctx, "alice", types.Tokens(1000), 365)
	b1, _ := l.CreateStake(ctx, "bob", types.Tokens(200), 90)

	clock.Advance(40 * day)
	if _, err := l.Unstake(ctx, b1.ID, "bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.ClaimRewards(ctx, a1.ID, "alice"); err != nil {
		t.Fatal(err)
	}

	info, err := l.UserStakingInfo(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Positions) != 2 || info.TotalStaked != types.Tokens(2000) {
		t.Errorf("info = %+v", info)
	}
	// (1000*12 + 1000*36) / 2000
	if info.EffectiveAPY != 24 {
		t.Errorf("effective APY = %v, want 24", info.EffectiveAPY)
	}

	stats, err := l.StakingStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ActivePositions != 2 || stats.TotalStakers != 1 || stats.TotalStaked != types.Tokens(2000) {
		t.Errorf("stats = %+v", stats)
	}
	if !stats.TotalRewardsPaid.IsPositive() {
		t.Errorf("rewards paid = %s", stats.TotalRewardsPaid)
	}

	opts := l.LockPeriodOptions()
	if len(opts) != 4 || opts[3].APY != 36 {
		t.Errorf("lock options = %+v", opts)
	}
}

func TestGovernanceLifecycle(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLedger(t)

	p, err := l.CreateProposal(ctx, governance.ProposalInput{
		Type:    governance.TypeFeature,
		Title:   "Batch proofs",
		Creator: "alice",
		FeatureData: &governance.FeatureData{
			FeatureName: "batch-proofs",
		},
	})
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if p.Status != governance.StatusActive || !p.EndsAt.Equal(epoch.Add(7*day)) {
		t.Fatalf("proposal = %+v", p)
	}

	v, err := l.CastVote(ctx, p.ID, "alice", true, types.Tokens(10000))
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if v.Weight != types.Tokens(100) {
		t.Errorf("weight = %s, want 100", v.Weight)
	}
	if _, err := l.CastVote(ctx, p.ID, "bob", false, types.Tokens(2500)); err != nil {
		t.Fatal(err)
	}

	got, _ := l.GetProposal(ctx, p.ID)
	if got.VotesFor != types.Tokens(100) || got.VotesAgainst != types.Tokens(50) || got.VoterCount != 2 || !got.QuorumReached {
		t.Errorf("tally = %+v", got)
	}

	if voted, _ := l.HasVoted(ctx, p.ID, "bob"); !voted {
		t.Error("HasVoted(bob) = false")
	}
	if votes := l.UserVotes(ctx, "alice"); len(votes) != 1 {
		t.Errorf("UserVotes = %d", len(votes))
	}

	if finalized, _ := l.FinalizeEndedProposals(ctx); len(finalized) != 0 {
		t.Errorf("finalized before end: %d", len(finalized))
	}

	clock.Advance(7 * day)
	if _, err := l.CastVote(ctx, p.ID, "carol", true, types.Tokens(100)); !errors.Is(err, ledger.ErrVotingClosed) {
		t.Errorf("late vote: err = %v", err)
	}
	if active, _ := l.ActiveProposals(ctx); len(active) != 0 {
		t.Errorf("ended proposal still active: %d", len(active))
	}

	finalized, err := l.FinalizeEndedProposals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(finalized) != 1 || finalized[0].Status != governance.StatusPassed {
		t.Fatalf("finalized = %+v", finalized)
	}
	if again, _ := l.FinalizeEndedProposals(ctx); len(again) != 0 {
		t.Errorf("finalize is not idempotent: %d", len(again))
	}

	stats, err := l.GovernanceStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := governance.Stats{TotalProposals: 1, PassedProposals: 1, TotalVoters: 2, TotalVotesCast: 2}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
}

func TestProposalWithoutQuorumIsRejected(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLedger(t)

	p, _ := l.CreateProposal(ctx, governance.ProposalInput{Type: governance.TypeParameter, Title: "Fee", Creator: "alice"})
	// sqrt(400) = 20, below the 100 token quorum.
	if _, err := l.CastVote(ctx, p.ID, "alice", true, types.Tokens(400)); err != nil {
		t.Fatal(err)
	}
	clock.Advance(8 * day)

	finalized, err := l.FinalizeEndedProposals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(finalized) != 1 || finalized[0].Status != governance.StatusRejected || finalized[0].QuorumReached {
		t.Errorf("finalized = %+v", finalized)
	}
}

func TestCastVoteErrors(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	p, _ := l.CreateProposal(ctx, governance.ProposalInput{Type: governance.TypeTreasury, Title: "Grant", Creator: "alice"})
	if _, err := l.CastVote(ctx, p.ID, "alice", true, types.Tokens(50)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		proposal id.ProposalID
		voter    string
		balance  types.Amount
		want     error
	}{
		{"below minimum", p.ID, "bob", types.Tokens(9), ledger.ErrInsufficientTokens},
		// balance is checked before the duplicate vote
		{"duplicate with low balance", p.ID, "alice", types.Tokens(1), ledger.ErrInsufficientTokens},
		{"duplicate", p.ID, "alice", types.Tokens(50), ledger.ErrAlreadyVoted},
		{"unknown proposal", id.NewProposalID(), "bob", types.Tokens(50), ledger.ErrProposalNotFound},
		{"missing voter", p.ID, "", types.Tokens(50), ledger.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.CastVote(ctx, tt.proposal, tt.voter, true, tt.balance); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := l.CreateProposal(ctx, governance.ProposalInput{Type: "bribe", Title: "x"}); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("unknown type: err = %v", err)
	}
	if l.CanPropose(types.Tokens(999)) || !l.CanPropose(types.Tokens(1000)) {
		t.Error("CanPropose threshold mismatch")
	}
}

func TestMarketplaceLifecycle(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLedger(t)

	tmpl, err := l.ListTemplate(ctx, marketplace.TemplateInput{
		Name:     "Age proof",
		Creator:  "carol",
		Price:    types.Tokens(3),
		Category: "astrology",
	})
	if err != nil {
		t.Fatalf("ListTemplate: %v", err)
	}
	if tmpl.Price != types.Tokens(10) || tmpl.Category != marketplace.CategoryOther || tmpl.CreatorAddress != "carol" {
		t.Errorf("template = %+v", tmpl)
	}

	if _, err := l.RateTemplate(ctx, tmpl.ID, "dave", 5); !errors.Is(err, ledger.ErrNotOwned) {
		t.Errorf("rate before purchase: err = %v", err)
	}

	p, err := l.PurchaseTemplate(ctx, tmpl.ID, "dave", "sig")
	if err != nil {
		t.Fatalf("PurchaseTemplate: %v", err)
	}
	if p.PlatformFee != types.Units(500_000) || p.CreatorRevenue != types.Units(9_500_000) || p.Seller != "carol" {
		t.Errorf("purchase = %+v", p)
	}
	if p.PlatformFee.Add(p.CreatorRevenue) != p.Price {
		t.Error("fee and revenue must sum to price")
	}

	if _, err := l.PurchaseTemplate(ctx, tmpl.ID, "dave", ""); !errors.Is(err, ledger.ErrAlreadyOwned) {
		t.Errorf("second purchase: err = %v", err)
	}
	if _, err := l.PurchaseTemplate(ctx, id.NewTemplateID(), "dave", ""); !errors.Is(err, ledger.ErrTemplateNotFound) {
		t.Errorf("unknown template: err = %v", err)
	}

	if _, err := l.RateTemplate(ctx, tmpl.ID, "dave", 6); !errors.Is(err, ledger.ErrInvalidRating) {
		t.Errorf("rating 6: err = %v", err)
	}
	if _, err := l.RateTemplate(ctx, tmpl.ID, "dave", 4); err != nil {
		t.Fatal(err)
	}
	clock.Advance(3 * day)
	rated, err := l.RateTemplate(ctx, tmpl.ID, "dave", 2)
	if err != nil {
		t.Fatal(err)
	}
	if rated.Rating != 3 || rated.RatingCount != 2 {
		t.Errorf("rating = %v over %d", rated.Rating, rated.RatingCount)
	}
	if !rated.UpdatedAt.Equal(epoch.Add(3 * day)) {
		t.Errorf("UpdatedAt = %v, want the ledger clock", rated.UpdatedAt)
	}

	owned, err := l.OwnedTemplates(ctx, "dave")
	if err != nil || len(owned) != 1 || owned[0].Downloads != 1 {
		t.Errorf("owned = %+v, err = %v", owned, err)
	}

	cs, err := l.CreatorStats(ctx, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if cs.TotalTemplates != 1 || cs.TotalDownloads != 1 || cs.TotalRevenue != p.CreatorRevenue || cs.AverageRating != 3 {
		t.Errorf("creator stats = %+v", cs)
	}

	ms, err := l.MarketplaceStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ms.TotalSales != 1 || ms.TotalCreators != 1 || ms.TotalVolume != types.Tokens(10) {
		t.Errorf("marketplace stats = %+v", ms)
	}
}

func TestPremiumBurns(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLedger(t)

	st, _ := l.PremiumStatus(ctx, "erin")
	if st.Tier != premium.TierFree || !st.TotalBurned.IsZero() {
		t.Fatalf("fresh status = %+v", st)
	}

	res, err := l.SimulateBurn(ctx, "erin", types.Tokens(150), "")
	if err != nil {
		t.Fatalf("SimulateBurn: %v", err)
	}
	if !res.Upgraded || res.Status.Tier != premium.TierBuilder || res.PreviousTier != premium.TierFree || !res.Record.Simulated {
		t.Errorf("result = %+v", res)
	}

	next, _ := l.NextTier(ctx, "erin")
	if next.Next != premium.TierPro || next.TokensNeeded != types.Tokens(350) {
		t.Errorf("next = %+v", next)
	}

	// a zero amount with a target burns the shortfall
	clock.Advance(time.Hour)
	res, err = l.BurnForPremium(ctx, premium.BurnRequest{Wallet: "erin", TargetTier: premium.TierPro, Signature: "tx1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.AmountBurned != types.Tokens(350) || res.Status.Tier != premium.TierPro || res.Record.Simulated {
		t.Errorf("target burn = %+v", res)
	}

	// already at the target: nothing is recorded
	res, err = l.BurnForPremium(ctx, premium.BurnRequest{Wallet: "erin", TargetTier: premium.TierBuilder})
	if err != nil {
		t.Fatal(err)
	}
	if res.Record != nil || res.Status.Tier != premium.TierPro {
		t.Errorf("no-op burn = %+v", res)
	}

	ok, _ := l.HasFeatureAccess(ctx, "erin", "gasless-proofs")
	if !ok {
		t.Error("PRO should unlock gasless-proofs")
	}
	ok, _ = l.HasFeatureAccess(ctx, "erin", "white-label")
	if ok {
		t.Error("PRO should not unlock white-label")
	}

	history, _ := l.BurnHistory(ctx, "erin", 0)
	if len(history) != 2 || history[0].Amount != types.Tokens(350) {
		t.Errorf("history = %+v", history)
	}
	total, _ := l.TotalBurned(ctx)
	if total != types.Tokens(500) {
		t.Errorf("total burned = %s", total)
	}

	// past the validity window the tier lapses and the next burn restarts it
	clock.Advance(366 * day)
	st, _ = l.PremiumStatus(ctx, "erin")
	if st.Tier != premium.TierFree || !st.Expired {
		t.Errorf("expired status = %+v", st)
	}
	res, err = l.SimulateBurn(ctx, "erin", types.Tokens(100), "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status.Tier != premium.TierBuilder || res.Status.TotalBurned != types.Tokens(100) || res.Status.LifetimeBurned != types.Tokens(600) {
		t.Errorf("renewed status = %+v", res.Status)
	}
}

func TestBurnValidation(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	tests := []struct {
		name string
		req  premium.BurnRequest
		want error
	}{
		{"zero without target", premium.BurnRequest{Wallet: "w"}, ledger.ErrInvalidAmount},
		{"negative", premium.BurnRequest{Wallet: "w", Amount: types.Tokens(-1)}, ledger.ErrInvalidAmount},
		{"unknown tier", premium.BurnRequest{Wallet: "w", TargetTier: "GOLD"}, ledger.ErrUnknownTier},
		{"missing wallet", premium.BurnRequest{Amount: types.Tokens(1)}, ledger.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.BurnForPremium(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBurnTotalOverflow(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	near := types.Units(math.MaxInt64 - 10)
	if _, err := l.SimulateBurn(ctx, "whale", near, ""); err != nil {
		t.Fatalf("SimulateBurn: %v", err)
	}

	tests := []struct {
		name   string
		amount types.Amount
	}{
		{"one token", types.Tokens(1)},
		{"one unit past max", types.Units(11)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.SimulateBurn(ctx, "whale", tt.amount, ""); !errors.Is(err, ledger.ErrInvalidAmount) {
				t.Errorf("err = %v, want ErrInvalidAmount", err)
			}
		})
	}

	st, _ := l.PremiumStatus(ctx, "whale")
	if st.TotalBurned != near || st.Tier != premium.TierEnterprise {
		t.Errorf("status = %s %s, want unchanged ENTERPRISE", st.TotalBurned, st.Tier)
	}
	if history, _ := l.BurnHistory(ctx, "whale", 0); len(history) != 1 {
		t.Errorf("history has %d records, want 1", len(history))
	}

	// Exactly reaching the int64 limit is still accepted.
	if _, err := l.SimulateBurn(ctx, "whale", types.Units(10), ""); err != nil {
		t.Errorf("burn to the limit: %v", err)
	}
}

func TestStakingAggregatesSaturate(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	half := types.Units(math.MaxInt64/2 + 1)
	for range 2 {
		if _, err := l.CreateStake(ctx, "whale", half, 30); err != nil {
			t.Fatalf("CreateStake: %v", err)
		}
	}

	info, err := l.UserStakingInfo(ctx, "whale")
	if err != nil {
		t.Fatal(err)
	}
	stats, err := l.StakingStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for name, got := range map[string]types.Amount{"info": info.TotalStaked, "stats": stats.TotalStaked} {
		if got != types.Units(math.MaxInt64) {
			t.Errorf("%s TotalStaked = %d, want saturated", name, got)
		}
	}
}

func TestConcurrentOperations(t *testing.T) {
	ctx := context.Background()
	const workers = 16

	run := func(fn func() error) (ok int, errs []error) {
		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := fn()
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					ok++
				} else {
					errs = append(errs, err)
				}
			}()
		}
		wg.Wait()
		return ok, errs
	}

	t.Run("double vote", func(t *testing.T) {
		l, _ := newTestLedger(t)
		p, _ := l.CreateProposal(ctx, governance.ProposalInput{Type: governance.TypeFeature, Title: "x", Creator: "a"})
		ok, errs := run(func() error {
			_, err := l.CastVote(ctx, p.ID, "alice", true, types.Tokens(100))
			return err
		})
		if ok != 1 {
			t.Fatalf("%d votes accepted", ok)
		}
		for _, err := range errs {
			if !errors.Is(err, ledger.ErrAlreadyVoted) {
				t.Errorf("loser err = %v", err)
			}
		}
		got, _ := l.GetProposal(ctx, p.ID)
		if got.VoterCount != 1 || got.VotesFor != types.Tokens(10) {
			t.Errorf("tally = %+v", got)
		}
	})

	t.Run("double purchase", func(t *testing.T) {
		l, _ := newTestLedger(t)
		tmpl, _ := l.ListTemplate(ctx, marketplace.TemplateInput{Name: "x", Creator: "c", Price: types.Tokens(20)})
		ok, errs := run(func() error {
			_, err := l.PurchaseTemplate(ctx, tmpl.ID, "buyer", "")
			return err
		})
		if ok != 1 {
			t.Fatalf("%d purchases accepted", ok)
		}
		for _, err := range errs {
			if !errors.Is(err, ledger.ErrAlreadyOwned) {
				t.Errorf("loser err = %v", err)
			}
		}
		got, _ := l.GetTemplate(ctx, tmpl.ID)
		if got.Downloads != 1 {
			t.Errorf("downloads = %d", got.Downloads)
		}
	})

	t.Run("concurrent claims", func(t *testing.T) {
		l, clock := newTestLedger(t)
		pos, _ := l.CreateStake(ctx, "alice", types.Tokens(1000), 30)
		clock.Advance(73 * day)
		ok, errs := run(func() error {
			_, err := l.ClaimRewards(ctx, pos.ID, "alice")
			return err
		})
		if ok != 1 {
			t.Fatalf("%d claims paid", ok)
		}
		for _, err := range errs {
			if !errors.Is(err, ledger.ErrNothingToClaim) {
				t.Errorf("loser err = %v", err)
			}
		}
		got, _ := l.GetPosition(ctx, pos.ID)
		if got.TotalClaimed != types.Tokens(24) {
			t.Errorf("claimed = %s", got.TotalClaimed)
		}
	})

	t.Run("claim against unstake", func(t *testing.T) {
		for range 20 {
			l, clock := newTestLedger(t)
			pos, _ := l.CreateStake(ctx, "alice", types.Tokens(1000), 30)
			clock.Advance(73 * day)

			var (
				wg         sync.WaitGroup
				paid       types.Amount
				settlement staking.Settlement
				unstakeErr error
			)
			wg.Add(2)
			go func() {
				defer wg.Done()
				paid, _ = l.ClaimRewards(ctx, pos.ID, "alice")
			}()
			go func() {
				defer wg.Done()
				settlement, unstakeErr = l.Unstake(ctx, pos.ID, "alice")
			}()
			wg.Wait()

			if unstakeErr != nil {
				t.Fatalf("Unstake: %v", unstakeErr)
			}
			if total := paid.Add(settlement.Rewards); total != types.Tokens(24) {
				t.Fatalf("claim %s + unstake %s = %s, want 24 paid once", paid, settlement.Rewards, total)
			}
			got, _ := l.GetPosition(ctx, pos.ID)
			if got.TotalClaimed != types.Tokens(24) {
				t.Fatalf("TotalClaimed = %s, want 24", got.TotalClaimed)
			}
		}
	})

	t.Run("parallel burns", func(t *testing.T) {
		l, _ := newTestLedger(t)
		ok, errs := run(func() error {
			_, err := l.SimulateBurn(ctx, "w", types.Tokens(10), "")
			return err
		})
		if ok != workers || len(errs) != 0 {
			t.Fatalf("ok = %d, errs = %v", ok, errs)
		}
		st, _ := l.PremiumStatus(ctx, "w")
		if st.TotalBurned != types.Tokens(10*workers) || st.Tier != premium.TierBuilder {
			t.Errorf("status = %+v", st)
		}
		total, _ := l.TotalBurned(ctx)
		if total != types.Tokens(10*workers) {
			t.Errorf("total = %s", total)
		}
	})
}

func TestStartStopReleasesWorkers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := ledger.New(memory.New(),
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		ledger.WithSweepInterval(time.Millisecond),
	)
	if err := l.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Errorf("second Start: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := l.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := l.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestSweepFinalizesEndedProposals(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: epoch}
	l := ledger.New(memory.New(),
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		ledger.WithClock(clock),
		ledger.WithSweepInterval(time.Millisecond),
	)
	if err := l.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer l.Stop()

	p, _ := l.CreateProposal(ctx, governance.ProposalInput{Type: governance.TypeFeature, Title: "x", Creator: "a"})
	clock.Advance(8 * day)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := l.GetProposal(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != governance.StatusActive {
			if got.Status != governance.StatusRejected {
				t.Errorf("status = %s", got.Status)
			}
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("sweep worker did not finalize the proposal")
}
