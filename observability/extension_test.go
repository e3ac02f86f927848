package observability_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/observability"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/types"
)

type fakeCounter struct {
	mu    sync.Mutex
	value float64
}

func (c *fakeCounter) Inc() { c.Add(1) }

func (c *fakeCounter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

type fakeHistogram struct {
	mu       sync.Mutex
	observed []float64
}

func (h *fakeHistogram) Observe(v float64) {
	h.mu.Lock()
	h.observed = append(h.observed, v)
	h.mu.Unlock()
}

type fakeFactory struct {
	counters   map[string]*fakeCounter
	histograms map[string]*fakeHistogram
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		counters:   make(map[string]*fakeCounter),
		histograms: make(map[string]*fakeHistogram),
	}
}

func (f *fakeFactory) Counter(name string) observability.Counter {
	c := &fakeCounter{}
	f.counters[name] = c
	return c
}

func (f *fakeFactory) Histogram(name string) observability.Histogram {
	h := &fakeHistogram{}
	f.histograms[name] = h
	return h
}

func TestMetricsExtensionCountsEvents(t *testing.T) {
	ctx := context.Background()
	f := newFakeFactory()
	m := observability.NewMetricsExtension(f)

	_ = m.OnStakeCreated(ctx, &staking.Position{Amount: types.Tokens(500)})
	_ = m.OnUnstaked(ctx, &staking.Position{}, staking.Settlement{Penalty: types.Tokens(250), Early: true})
	_ = m.OnUnstaked(ctx, &staking.Position{}, staking.Settlement{Rewards: types.Tokens(3)})
	_ = m.OnProposalFinalized(ctx, &governance.Proposal{Status: governance.StatusPassed})
	_ = m.OnProposalFinalized(ctx, &governance.Proposal{Status: governance.StatusRejected})
	_ = m.OnTemplatePurchased(ctx, &marketplace.Purchase{Price: types.Tokens(100), PlatformFee: types.Tokens(5)})
	_ = m.OnTokensBurned(ctx, &premium.BurnRecord{Amount: types.Tokens(10), Simulated: true}, &premium.Status{})
	_ = m.OnOperationRejected(ctx, "vote", ledger.ErrAlreadyVoted)
	_ = m.OnOperationRejected(ctx, "stake", errors.Join(ledger.ErrStoreUnavailable, errors.New("disk full")))

	tests := []struct {
		name string
		want float64
	}{
		{"ledger.stake.created", 1},
		{"ledger.stake.closed", 2},
		{"ledger.stake.closed_early", 1},
		{"ledger.proposal.passed", 1},
		{"ledger.proposal.rejected", 1},
		{"ledger.template.purchased", 1},
		{"ledger.template.platform_fee_tokens", 5},
		{"ledger.premium.burned_tokens", 10},
		{"ledger.premium.simulated_burns", 1},
		{"ledger.operation.rejected", 2},
		{"ledger.store.errors", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := f.counters[tt.name]
			if !ok {
				t.Fatalf("counter %q not created", tt.name)
			}
			if c.value != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, c.value, tt.want)
			}
		})
	}

	if got := f.histograms["ledger.stake.amount_tokens"].observed; len(got) != 1 || got[0] != 500 {
		t.Errorf("stake amount observations = %v, want [500]", got)
	}
}

func TestPrometheusFactory(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory("tokenledger", reg)

	c := f.Counter("ledger.vote.cast")
	c.Inc()
	// Same name, same collector: no duplicate registration panic.
	f.Counter("ledger.vote.cast").Add(2)
	f.Histogram("ledger.vote.weight").Observe(10)

	expected := `
# HELP tokenledger_ledger_vote_cast_total Total ledger vote cast
# TYPE tokenledger_ledger_vote_cast_total counter
tokenledger_ledger_vote_cast_total 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "tokenledger_ledger_vote_cast_total"); err != nil {
		t.Fatal(err)
	}
	if n := testutil.CollectAndCount(reg, "tokenledger_ledger_vote_weight"); n != 1 {
		t.Errorf("weight histogram series = %d, want 1", n)
	}
}

func TestMetricsExtensionWithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetricsExtension(observability.NewPrometheusFactory("tokenledger", reg))

	if err := m.OnVoteCast(context.Background(), &governance.Vote{Weight: types.Tokens(4)}, &governance.Proposal{}); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.VoteCast.(prometheus.Counter)); got != 1 {
		t.Errorf("vote counter = %v, want 1", got)
	}
}
