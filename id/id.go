// Package id defines the TypeID-based identifiers used by every ledger
// record: stake positions, proposals, votes, templates, purchases and burns.
//
// IDs render as "prefix_suffix", sort by creation time (UUIDv7) and are safe
// to embed in URLs and storage keys.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record type encoded in a TypeID.
type Prefix string

// Prefix constants for all ledger record types.
const (
	PrefixStake    Prefix = "stake" // Staking position
	PrefixProposal Prefix = "prop"  // Governance proposal
	PrefixVote     Prefix = "vote"  // Governance vote
	PrefixTemplate Prefix = "tmpl"  // Marketplace template
	PrefixPurchase Prefix = "purch" // Template purchase
	PrefixBurn     Prefix = "burn"  // Premium burn record
)

// ID is the identifier carried by every ledger record.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a fresh ID with the given prefix. It panics on a malformed
// prefix, which can only come from a programming error.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string such as "stake_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and rejects IDs of another record type.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// ──────────────────────────────────────────────────
// Record-specific aliases
// ──────────────────────────────────────────────────

// StakeID identifies a staking position (prefix: "stake").
type StakeID = ID

// ProposalID identifies a governance proposal (prefix: "prop").
type ProposalID = ID

// VoteID identifies a vote (prefix: "vote").
type VoteID = ID

// TemplateID identifies a marketplace template (prefix: "tmpl").
type TemplateID = ID

// PurchaseID identifies a template purchase (prefix: "purch").
type PurchaseID = ID

// BurnID identifies a premium burn record (prefix: "burn").
type BurnID = ID

// NewStakeID generates a new staking position ID.
func NewStakeID() ID { return New(PrefixStake) }

// NewProposalID generates a new proposal ID.
func NewProposalID() ID { return New(PrefixProposal) }

// NewVoteID generates a new vote ID.
func NewVoteID() ID { return New(PrefixVote) }

// NewTemplateID generates a new template ID.
func NewTemplateID() ID { return New(PrefixTemplate) }

// NewPurchaseID generates a new purchase ID.
func NewPurchaseID() ID { return New(PrefixPurchase) }

// NewBurnID generates a new burn record ID.
func NewBurnID() ID { return New(PrefixBurn) }

// ParseStakeID parses s and requires the "stake" prefix.
func ParseStakeID(s string) (ID, error) { return ParseWithPrefix(s, PrefixStake) }

// ParseProposalID parses s and requires the "prop" prefix.
func ParseProposalID(s string) (ID, error) { return ParseWithPrefix(s, PrefixProposal) }

// ParseVoteID parses s and requires the "vote" prefix.
func ParseVoteID(s string) (ID, error) { return ParseWithPrefix(s, PrefixVote) }

// ParseTemplateID parses s and requires the "tmpl" prefix.
func ParseTemplateID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTemplate) }

// ParsePurchaseID parses s and requires the "purch" prefix.
func ParsePurchaseID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPurchase) }

// ParseBurnID parses s and requires the "burn" prefix.
func ParseBurnID(s string) (ID, error) { return ParseWithPrefix(s, PrefixBurn) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the record type of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
