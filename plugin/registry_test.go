package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/plugin"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/types"
)

type recorder struct {
	name    string
	stakes  atomic.Int32
	votes   atomic.Int32
	claimed atomic.Int64
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnStakeCreated(_ context.Context, _ *staking.Position) error {
	r.stakes.Add(1)
	return nil
}

func (r *recorder) OnRewardsClaimed(_ context.Context, _ *staking.Position, amount types.Amount) error {
	r.claimed.Add(amount.Units())
	return nil
}

func (r *recorder) OnVoteCast(_ context.Context, _ *governance.Vote, _ *governance.Proposal) error {
	r.votes.Add(1)
	return errors.New("ignored")
}

type slowPlugin struct{}

func (slowPlugin) Name() string { return "slow" }

func (slowPlugin) OnStakeCreated(ctx context.Context, _ *staking.Position) error {
	time.Sleep(200 * time.Millisecond)
	return nil
}

func quietRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := quietRegistry()
	if err := r.Register(&recorder{name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&recorder{name: "a"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 || r.Get("a") == nil || r.Get("b") != nil {
		t.Errorf("registry state: count=%d", r.Count())
	}
}

func TestDispatch(t *testing.T) {
	r := quietRegistry()
	rec := &recorder{name: "rec"}
	if err := r.Register(rec); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	r.EmitStakeCreated(ctx, &staking.Position{})
	r.EmitStakeCreated(ctx, &staking.Position{})
	r.EmitRewardsClaimed(ctx, &staking.Position{}, types.Tokens(3))
	r.EmitVoteCast(ctx, &governance.Vote{}, &governance.Proposal{})
	r.EmitProposalFinalized(ctx, &governance.Proposal{})

	if got := rec.stakes.Load(); got != 2 {
		t.Errorf("stakes = %d, want 2", got)
	}
	if got := rec.claimed.Load(); got != types.Tokens(3).Units() {
		t.Errorf("claimed = %d", got)
	}
	if got := rec.votes.Load(); got != 1 {
		t.Errorf("votes = %d, want 1 (hook errors are logged, not fatal)", got)
	}
}

func TestHookTimeout(t *testing.T) {
	r := quietRegistry().WithTimeout(20 * time.Millisecond)
	if err := r.Register(slowPlugin{}); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	r.EmitStakeCreated(context.Background(), &staking.Position{})
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("emit blocked for %v", elapsed)
	}
}
