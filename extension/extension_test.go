package extension

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/store/sqlite"
)

func TestMergeConfigurations(t *testing.T) {
	economics := ledger.DefaultConfig()

	tests := []struct {
		name         string
		yaml         Config
		programmatic Config
		want         Config
	}{
		{
			name: "defaults fill gaps",
			want: Config{BasePath: "/tokenledger", SweepInterval: ledger.DefaultSweepInterval},
		},
		{
			name:         "yaml wins",
			yaml:         Config{BasePath: "/ledger", SweepInterval: time.Second},
			programmatic: Config{BasePath: "/other", SweepInterval: time.Hour},
			want:         Config{BasePath: "/ledger", SweepInterval: time.Second},
		},
		{
			name:         "programmatic flags and economics carry over",
			programmatic: Config{DisableRoutes: true, DisableMigrate: true, Economics: &economics},
			want: Config{
				DisableRoutes:  true,
				DisableMigrate: true,
				BasePath:       "/tokenledger",
				SweepInterval:  ledger.DefaultSweepInterval,
				Economics:      &economics,
			},
		},
		{
			name: "negative sweep interval is kept",
			yaml: Config{SweepInterval: -1},
			want: Config{BasePath: "/tokenledger", SweepInterval: -1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeConfigurations(tt.yaml, tt.programmatic)
			if got.BasePath != tt.want.BasePath ||
				got.SweepInterval != tt.want.SweepInterval ||
				got.DisableRoutes != tt.want.DisableRoutes ||
				got.DisableMigrate != tt.want.DisableMigrate ||
				got.Economics != tt.want.Economics {
				t.Errorf("merge = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildLedgerOptsRejectsBadEconomics(t *testing.T) {
	bad := ledger.DefaultConfig()
	bad.Marketplace.PlatformFeePct = 150

	e := New(WithEconomics(bad))
	if _, err := e.buildLedgerOpts(); err == nil {
		t.Fatal("expected validation error for platform fee above 100%")
	}
}

func TestStoreForGrove(t *testing.T) {
	ctx := context.Background()
	drv := sqlitedriver.New()
	if err := drv.Open(ctx, "file:"+filepath.Join(t.TempDir(), "ext.db")); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatalf("grove open: %v", err)
	}
	defer db.Close()

	s, err := StoreForGrove(db)
	if err != nil {
		t.Fatalf("StoreForGrove: %v", err)
	}
	if _, ok := s.(*sqlite.Store); !ok {
		t.Fatalf("store = %T, want *sqlite.Store", s)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}
