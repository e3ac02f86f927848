package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/api"
	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/store/memory"
)

type testServer struct {
	handler http.Handler
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := &testServer{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ledger.New(memory.New(),
		ledger.WithLogger(logger),
		ledger.WithClock(ledger.ClockFunc(func() time.Time { return ts.now })),
		ledger.WithSweepInterval(0),
	)
	ts.handler = api.New(l, api.WithLogger(logger)).Handler()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func TestStakingRoutes(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/staking/positions", map[string]any{
		"staker": "alice", "amount": "1000", "lock_period_days": 30,
	})
	expectStatus(t, rr, http.StatusCreated)
	pos := decodeBody[api.PositionView](t, rr)
	if pos.Staker != "alice" || pos.Multiplier != 1.0 {
		t.Fatalf("position = %+v", pos.Position)
	}

	ts.now = ts.now.Add(10 * 24 * time.Hour)

	rr = ts.do(t, http.MethodGet, "/staking/positions/"+pos.ID.String(), nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[api.PositionView](t, rr); !got.PendingRewards.IsPositive() {
		t.Errorf("pending rewards = %s, want positive", got.PendingRewards)
	}

	rr = ts.do(t, http.MethodPost, "/staking/positions/"+pos.ID.String()+"/claim", api.StakerRequest{Staker: "alice"})
	expectStatus(t, rr, http.StatusOK)
	if claim := decodeBody[api.ClaimResponse](t, rr); !claim.Amount.IsPositive() {
		t.Errorf("claimed = %s, want positive", claim.Amount)
	}

	rr = ts.do(t, http.MethodPost, "/staking/positions/"+pos.ID.String()+"/unstake", api.StakerRequest{Staker: "alice"})
	expectStatus(t, rr, http.StatusOK)
	if s := decodeBody[staking.Settlement](t, rr); !s.Early || s.Penalty != ledger.Tokens(500) {
		t.Errorf("settlement = %+v, want early exit with 500 penalty", s)
	}

	rr = ts.do(t, http.MethodPost, "/staking/positions/"+pos.ID.String()+"/unstake", api.StakerRequest{Staker: "alice"})
	expectStatus(t, rr, http.StatusConflict)
	if e := decodeBody[api.ErrorResponse](t, rr); e.Error != ledger.CodeAlreadyInactive {
		t.Errorf("error code = %q, want %s", e.Error, ledger.CodeAlreadyInactive)
	}

	rr = ts.do(t, http.MethodGet, "/staking/lock-periods", nil)
	expectStatus(t, rr, http.StatusOK)
	if opts := decodeBody[[]staking.LockOption](t, rr); len(opts) != 4 {
		t.Errorf("lock periods = %d, want 4", len(opts))
	}
}

func TestGovernanceRoutes(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/governance/proposals", governance.ProposalInput{
		Type: governance.TypeFeature, Title: "Dark mode", Creator: "alice",
		FeatureData: &governance.FeatureData{FeatureName: "dark-mode", Specification: "invert"},
	})
	expectStatus(t, rr, http.StatusCreated)
	p := decodeBody[governance.Proposal](t, rr)

	votePath := "/governance/proposals/" + p.ID.String() + "/votes"
	rr = ts.do(t, http.MethodPost, votePath, map[string]any{"voter": "bob", "support": true, "token_balance": "10000"})
	expectStatus(t, rr, http.StatusCreated)
	if v := decodeBody[governance.Vote](t, rr); v.Weight != ledger.Tokens(100) {
		t.Errorf("weight = %s, want 100", v.Weight)
	}

	rr = ts.do(t, http.MethodPost, votePath, map[string]any{"voter": "bob", "support": false, "token_balance": "10000"})
	expectStatus(t, rr, http.StatusConflict)

	rr = ts.do(t, http.MethodPost, votePath, map[string]any{"voter": "carol", "support": true, "token_balance": "1"})
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	if e := decodeBody[api.ErrorResponse](t, rr); e.Error != ledger.CodeInsufficientTokens {
		t.Errorf("error code = %q", e.Error)
	}

	rr = ts.do(t, http.MethodGet, votePath+"/bob", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[map[string]bool](t, rr); !got["voted"] {
		t.Error("bob should have voted")
	}

	ts.now = ts.now.Add(8 * 24 * time.Hour)
	rr = ts.do(t, http.MethodPost, "/governance/finalize", nil)
	expectStatus(t, rr, http.StatusOK)
	finalized := decodeBody[[]governance.Proposal](t, rr)
	if len(finalized) != 1 || finalized[0].Status != governance.StatusPassed {
		t.Fatalf("finalized = %+v, want one passed proposal", finalized)
	}

	rr = ts.do(t, http.MethodGet, "/governance/proposals?status=passed", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[[]governance.Proposal](t, rr); len(got) != 1 {
		t.Errorf("passed proposals = %d, want 1", len(got))
	}
}

func TestMarketplaceRoutes(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/marketplace/templates", map[string]any{
		"name": "Age proof", "creator": "alice", "creator_address": "alice-wallet",
		"price": "100", "category": "identity", "tags": []string{"kyc"},
	})
	expectStatus(t, rr, http.StatusCreated)
	tmpl := decodeBody[marketplace.Template](t, rr)

	rr = ts.do(t, http.MethodPost, "/marketplace/templates/"+tmpl.ID.String()+"/ratings", api.RatingRequest{Rater: "bob", Rating: 5})
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	if e := decodeBody[api.ErrorResponse](t, rr); e.Error != ledger.CodeNotOwned {
		t.Errorf("error code = %q, want NotOwned", e.Error)
	}

	rr = ts.do(t, http.MethodPost, "/marketplace/templates/"+tmpl.ID.String()+"/purchase", api.PurchaseRequest{Buyer: "bob"})
	expectStatus(t, rr, http.StatusCreated)
	purchase := decodeBody[marketplace.Purchase](t, rr)
	if purchase.PlatformFee != ledger.Tokens(5) || purchase.CreatorRevenue != ledger.Tokens(95) {
		t.Errorf("split = %s/%s, want 5/95", purchase.PlatformFee, purchase.CreatorRevenue)
	}

	rr = ts.do(t, http.MethodPost, "/marketplace/templates/"+tmpl.ID.String()+"/purchase", api.PurchaseRequest{Buyer: "bob"})
	expectStatus(t, rr, http.StatusConflict)

	rr = ts.do(t, http.MethodPost, "/marketplace/templates/"+tmpl.ID.String()+"/ratings", api.RatingRequest{Rater: "bob", Rating: 4})
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[marketplace.Template](t, rr); got.Rating != 4 || got.Downloads != 1 {
		t.Errorf("rating = %v downloads = %d", got.Rating, got.Downloads)
	}

	rr = ts.do(t, http.MethodGet, "/marketplace/templates?q=AGE", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[[]marketplace.Template](t, rr); len(got) != 1 {
		t.Errorf("search results = %d, want 1", len(got))
	}

	rr = ts.do(t, http.MethodGet, "/marketplace/buyers/bob/templates", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[[]marketplace.Template](t, rr); len(got) != 1 {
		t.Errorf("owned templates = %d, want 1", len(got))
	}
}

func TestPremiumRoutes(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/premium/burns", premium.BurnRequest{Wallet: "alice", TargetTier: premium.TierBuilder})
	expectStatus(t, rr, http.StatusCreated)
	result := decodeBody[premium.BurnResult](t, rr)
	if result.Status.Tier != premium.TierBuilder || !result.Upgraded {
		t.Fatalf("result = %+v", result)
	}

	// Target already reached: nothing is burned.
	rr = ts.do(t, http.MethodPost, "/premium/burns/simulate", premium.BurnRequest{Wallet: "alice", TargetTier: premium.TierBuilder})
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[premium.BurnResult](t, rr); got.Record != nil {
		t.Errorf("record = %+v, want none", got.Record)
	}

	rr = ts.do(t, http.MethodGet, "/premium/wallets/alice", nil)
	expectStatus(t, rr, http.StatusOK)
	if st := decodeBody[premium.Status](t, rr); st.Tier != premium.TierBuilder {
		t.Errorf("tier = %s", st.Tier)
	}

	ts.now = ts.now.Add(366 * 24 * time.Hour)
	rr = ts.do(t, http.MethodGet, "/premium/wallets/alice", nil)
	expectStatus(t, rr, http.StatusOK)
	if st := decodeBody[premium.Status](t, rr); st.Tier != premium.TierFree || !st.Expired {
		t.Errorf("expired status = %+v", st)
	}

	rr = ts.do(t, http.MethodGet, "/premium/burns?wallet=alice", nil)
	expectStatus(t, rr, http.StatusOK)
	if burns := decodeBody[[]premium.BurnRecord](t, rr); len(burns) != 1 {
		t.Errorf("burns = %d, want 1", len(burns))
	}

	rr = ts.do(t, http.MethodGet, "/premium/burns/total", nil)
	expectStatus(t, rr, http.StatusOK)
	if total := decodeBody[api.TotalBurnedResponse](t, rr); total.TotalBurned != result.AmountBurned {
		t.Errorf("total = %s, want %s", total.TotalBurned, result.AmountBurned)
	}
}

func TestRequestErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"malformed id", http.MethodGet, "/staking/positions/not-an-id", nil, http.StatusBadRequest, ledger.CodeInvalidInput},
		{"wrong id prefix", http.MethodGet, "/governance/proposals/" + "tmpl_01h455vb4pex5vsknk084sn02q", nil, http.StatusBadRequest, ledger.CodeInvalidInput},
		{"empty body", http.MethodPost, "/staking/positions", nil, http.StatusBadRequest, ledger.CodeInvalidInput},
		{"unknown field", http.MethodPost, "/premium/burns", map[string]any{"wallet": "a", "bogus": 1}, http.StatusBadRequest, ledger.CodeInvalidInput},
		{"bad lock period", http.MethodPost, "/staking/positions", map[string]any{"staker": "a", "amount": "500", "lock_period_days": 7}, http.StatusBadRequest, ledger.CodeInvalidLockPeriod},
		{"bad limit", http.MethodGet, "/premium/burns?limit=-1", nil, http.StatusBadRequest, ledger.CodeInvalidInput},
		{"unknown proposal", http.MethodGet, "/governance/proposals/prop_01h455vb4pex5vsknk084sn02q", nil, http.StatusNotFound, ledger.CodeProposalNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, tt.method, tt.path, tt.body)
			expectStatus(t, rr, tt.status)
			if e := decodeBody[api.ErrorResponse](t, rr); e.Error != tt.code {
				t.Errorf("error code = %q, want %q", e.Error, tt.code)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ledger.ErrInvalidAmount, http.StatusBadRequest},
		{ledger.ErrTemplateNotFound, http.StatusNotFound},
		{ledger.ErrAlreadyOwned, http.StatusConflict},
		{ledger.ErrVotingClosed, http.StatusUnprocessableEntity},
		{ledger.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := api.StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/health", nil)
	expectStatus(t, rr, http.StatusOK)
}
