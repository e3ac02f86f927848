package leveldb_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/store"
	"github.com/zkrune/tokenledger/store/leveldb"
	"github.com/zkrune/tokenledger/store/storetest"
	"github.com/zkrune/tokenledger/types"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()
		s, err := leveldb.Open(filepath.Join(t.TempDir(), "ledger"))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		return s
	})
}

func TestBurnLogSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "ledger")
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	burn := func(s *leveldb.Store, amount types.Amount) {
		t.Helper()
		rec := &premium.BurnRecord{ID: id.NewBurnID(), Wallet: "alice", Timestamp: at}
		_, err := s.ApplyBurn(ctx, rec, func(*premium.Status) (*premium.Status, error) {
			rec.Amount = amount
			return &premium.Status{Wallet: "alice", Tier: premium.TierBuilder, TotalBurned: amount}, nil
		})
		if err != nil {
			t.Fatalf("ApplyBurn: %v", err)
		}
	}

	s, err := leveldb.Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	burn(s, types.Tokens(1))
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = leveldb.Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	burn(s, types.Tokens(2))

	burns, err := s.ListBurns(ctx, premium.BurnListOpts{})
	if err != nil {
		t.Fatalf("ListBurns: %v", err)
	}
	if len(burns) != 2 || burns[0].Amount != types.Tokens(2) {
		t.Fatalf("burns after reopen = %+v, want the second burn first", burns)
	}
}

func TestClosedStore(t *testing.T) {
	s, err := leveldb.Open(filepath.Join(t.TempDir(), "ledger"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, ledger.ErrStoreClosed) {
		t.Errorf("Ping after close = %v, want ErrStoreClosed", err)
	}
	if _, err := s.GetStatus(context.Background(), "alice"); !errors.Is(err, ledger.ErrStoreClosed) {
		t.Errorf("GetStatus after close = %v, want ErrStoreClosed", err)
	}
}
