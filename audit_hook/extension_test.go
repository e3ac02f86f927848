package audithook_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	ledger "github.com/zkrune/tokenledger"
	audithook "github.com/zkrune/tokenledger/audit_hook"
	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/types"
)

type captured struct {
	events []*audithook.AuditEvent
}

func (c *captured) recorder() audithook.Recorder {
	return audithook.RecorderFunc(func(_ context.Context, evt *audithook.AuditEvent) error {
		c.events = append(c.events, evt)
		return nil
	})
}

func TestUnstakeEvent(t *testing.T) {
	c := &captured{}
	ext := audithook.New(c.recorder())

	pos := &staking.Position{ID: id.NewStakeID(), Staker: "alice", Amount: types.Tokens(1000)}
	s := staking.Settlement{ReturnAmount: types.Tokens(500), Penalty: types.Tokens(500), Early: true}
	if err := ext.OnUnstaked(context.Background(), pos, s); err != nil {
		t.Fatal(err)
	}

	if len(c.events) != 1 {
		t.Fatalf("events = %d, want 1", len(c.events))
	}
	evt := c.events[0]
	if evt.Action != audithook.ActionUnstaked {
		t.Errorf("action = %q", evt.Action)
	}
	if evt.Severity != audithook.SeverityWarning {
		t.Errorf("early exit severity = %q, want warning", evt.Severity)
	}
	if evt.ResourceID != pos.ID.String() || evt.Actor != "alice" {
		t.Errorf("resource = %q actor = %q", evt.ResourceID, evt.Actor)
	}
	if evt.Metadata["penalty"] != "500" {
		t.Errorf("penalty metadata = %v", evt.Metadata["penalty"])
	}
}

func TestRejectedOperationSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		severity string
		code     string
	}{
		{"validation", ledger.ErrAlreadyVoted, audithook.SeverityWarning, ledger.CodeAlreadyVoted},
		{"storage", fmt.Errorf("%w: record vote: %w", ledger.ErrStoreUnavailable, errors.New("io")), audithook.SeverityError, ledger.CodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &captured{}
			ext := audithook.New(c.recorder())
			_ = ext.OnOperationRejected(context.Background(), "vote", tt.err)

			if len(c.events) != 1 {
				t.Fatalf("events = %d, want 1", len(c.events))
			}
			evt := c.events[0]
			if evt.Severity != tt.severity {
				t.Errorf("severity = %q, want %q", evt.Severity, tt.severity)
			}
			if evt.Outcome != audithook.OutcomeFailure {
				t.Errorf("outcome = %q", evt.Outcome)
			}
			if evt.Metadata["code"] != tt.code {
				t.Errorf("code = %v, want %s", evt.Metadata["code"], tt.code)
			}
			if evt.Reason == "" {
				t.Error("reason is empty")
			}
		})
	}
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()
	rec := &premium.BurnRecord{ID: id.NewBurnID(), Wallet: "bob", Amount: types.Tokens(100)}
	st := &premium.Status{Wallet: "bob", Tier: premium.TierBuilder}
	pos := &staking.Position{ID: id.NewStakeID(), Staker: "bob"}

	t.Run("enabled", func(t *testing.T) {
		c := &captured{}
		ext := audithook.New(c.recorder(), audithook.WithEnabledActions(audithook.ActionTokensBurned))
		_ = ext.OnTokensBurned(ctx, rec, st)
		_ = ext.OnStakeCreated(ctx, pos)
		if len(c.events) != 1 || c.events[0].Action != audithook.ActionTokensBurned {
			t.Fatalf("events = %+v, want only the burn", c.events)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		c := &captured{}
		ext := audithook.New(c.recorder(), audithook.WithDisabledActions(audithook.ActionTokensBurned))
		_ = ext.OnTokensBurned(ctx, rec, st)
		_ = ext.OnStakeCreated(ctx, pos)
		if len(c.events) != 1 || c.events[0].Action != audithook.ActionStakeCreated {
			t.Fatalf("events = %+v, want only the stake", c.events)
		}
	})
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	pos := &staking.Position{ID: id.NewStakeID(), Staker: "carol"}
	if err := ext.OnStakeCreated(context.Background(), pos); err != nil {
		t.Fatalf("OnStakeCreated = %v, want nil", err)
	}
}
