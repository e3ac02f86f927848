package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/types"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Driver != driverMemory {
		t.Errorf("driver = %q, want %q", cfg.Store.Driver, driverMemory)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Ledger.Staking.MinStake != types.Tokens(100) {
		t.Errorf("min stake = %s", cfg.Ledger.Staking.MinStake)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeFile(t, "tokenledger.yaml", `
server:
  addr: ":9090"
  shutdown_timeout: 3s
store:
  driver: leveldb
  dsn: /var/lib/tokenledger
sweep_interval: 30s
ledger:
  staking:
    min_stake: 250
  governance:
    quorum_threshold: "12.5"
    voting_period_days: 3
  marketplace:
    min_template_price: 0.5
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"addr", cfg.Server.Addr, ":9090"},
		{"shutdown", cfg.Server.ShutdownTimeout, 3 * time.Second},
		{"driver", cfg.Store.Driver, driverLevelDB},
		{"dsn", cfg.Store.DSN, "/var/lib/tokenledger"},
		{"sweep", cfg.SweepInterval, 30 * time.Second},
		{"min stake", cfg.Ledger.Staking.MinStake, types.Tokens(250)},
		{"quorum", cfg.Ledger.Governance.QuorumThreshold, types.Tokens(12) + types.Tokens(1)/2},
		{"voting days", cfg.Ledger.Governance.VotingPeriodDays, 3},
		{"min price", cfg.Ledger.Marketplace.MinTemplatePrice, types.Tokens(1) / 2},
		// untouched sections keep their defaults
		{"lock periods", len(cfg.Ledger.Staking.LockPeriods), 4},
		{"tiers", len(cfg.Ledger.Premium.Tiers), len(premium.DefaultConfig().Tiers)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("TOKENLEDGER_STORE_DRIVER", "sqlite")
	t.Setenv("TOKENLEDGER_STORE_DSN", "ledger.db")
	t.Setenv("TOKENLEDGER_AUDIT", "false")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Driver != driverSQLite || cfg.Store.DSN != "ledger.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Audit {
		t.Error("audit should be disabled from the environment")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"unknown driver", "store:\n  driver: redis\n", "store.driver"},
		{"missing dsn", "store:\n  driver: postgres\n", "store.dsn"},
		{"bad economics", "ledger:\n  governance:\n    voting_period_days: 0\n", "governance.voting_period_days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "bad.yaml", tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ledger.ErrInvalidInput) {
				t.Errorf("error %v should match ErrInvalidInput", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q should mention %s", err, tt.field)
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, err := openStore(ctx, driverLevelDB, filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("close: %v", err)
	}

	if _, err := openStore(ctx, "redis", ""); err == nil {
		t.Error("unknown driver should fail")
	}
}

func TestRouterServesMetrics(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	cfg := DefaultConfig()
	cfg.SweepInterval = 0
	l, err := newLedger(ctx, cfg, logger, reg)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer l.Stop()

	ts := httptest.NewServer(newRouter(l, logger, "/metrics", reg))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/premium/burns", "application/json",
		strings.NewReader(`{"wallet":"alice","amount":"150"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("burn status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "tokenledger_ledger_premium_burned_tokens_total 150") {
		t.Errorf("metrics missing burn counter:\n%s", body)
	}
}
