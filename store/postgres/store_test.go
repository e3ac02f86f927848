package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/zkrune/tokenledger/store"
	"github.com/zkrune/tokenledger/store/postgres"
	"github.com/zkrune/tokenledger/store/storetest"
)

// TestConformance runs against a scratch database named by
// TOKENLEDGER_POSTGRES_DSN. Every subtest truncates the ledger tables.
func TestConformance(t *testing.T) {
	dsn := os.Getenv("TOKENLEDGER_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TOKENLEDGER_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()

		ctx := context.Background()
		s, err := postgres.Open(ctx, dsn)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			t.Fatalf("migrate: %v", err)
		}
		_, err = pgdriver.Unwrap(s.DB()).Exec(ctx, `TRUNCATE ledger_votes, ledger_proposals, ledger_purchases,
			ledger_templates, ledger_burns, ledger_premium_status, ledger_stake_positions`)
		if err != nil {
			_ = s.Close()
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}
