package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/zkrune/tokenledger/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"StakeID", id.NewStakeID, "stake_"},
		{"ProposalID", id.NewProposalID, "prop_"},
		{"VoteID", id.NewVoteID, "vote_"},
		{"TemplateID", id.NewTemplateID, "tmpl_"},
		{"PurchaseID", id.NewPurchaseID, "purch_"},
		{"BurnID", id.NewBurnID, "burn_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"StakeID", id.NewStakeID, id.ParseStakeID},
		{"ProposalID", id.NewProposalID, id.ParseProposalID},
		{"VoteID", id.NewVoteID, id.ParseVoteID},
		{"TemplateID", id.NewTemplateID, id.ParseTemplateID},
		{"PurchaseID", id.NewPurchaseID, id.ParsePurchaseID},
		{"BurnID", id.NewBurnID, id.ParseBurnID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed, original)
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseStakeID rejects prop_", id.NewProposalID().String(), id.ParseStakeID},
		{"ParseProposalID rejects vote_", id.NewVoteID().String(), id.ParseProposalID},
		{"ParseVoteID rejects tmpl_", id.NewTemplateID().String(), id.ParseVoteID},
		{"ParseTemplateID rejects purch_", id.NewPurchaseID().String(), id.ParseTemplateID},
		{"ParsePurchaseID rejects burn_", id.NewBurnID().String(), id.ParsePurchaseID},
		{"ParseBurnID rejects stake_", id.NewStakeID().String(), id.ParseBurnID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q", tt.input)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "stake", "stake_!!", "not an id"} {
		if _, err := id.Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error", in)
		}
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" || i.Prefix() != "" {
		t.Errorf("nil ID rendered as %q / %q", i.String(), i.Prefix())
	}
	val, err := i.Value()
	if err != nil || val != nil {
		t.Errorf("Value() = %v, %v; want nil, nil", val, err)
	}
}

func TestJSONAndScan(t *testing.T) {
	original := id.NewPurchaseID()

	data, err := json.Marshal(struct {
		ID id.ID `json:"id"`
	}{original})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		ID id.ID `json:"id"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID.String() != original.String() {
		t.Errorf("json mismatch: %q != %q", decoded.ID, original)
	}

	var scanned id.ID
	if err := scanned.Scan([]byte(original.String())); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("scan mismatch: %q != %q", scanned, original)
	}
	if err := scanned.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}
