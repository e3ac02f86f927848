package premium

import (
	"time"

	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/types"
)

// Tier is a premium access level.
type Tier string

const (
	TierFree       Tier = "FREE"
	TierBuilder    Tier = "BUILDER"
	TierPro        Tier = "PRO"
	TierEnterprise Tier = "ENTERPRISE"
)

// TemplateAccess values used by the default tier table.
const (
	AccessCommunity = "community"
	AccessAll       = "all"
)

// TierSpec is one row of the tier table. ProofLimit is per day; -1 means
// unlimited.
type TierSpec struct {
	Tier           Tier         `json:"tier"            mapstructure:"tier"            yaml:"tier"`
	Name           string       `json:"name"            mapstructure:"name"            yaml:"name"`
	BurnRequired   types.Amount `json:"burn_required"   mapstructure:"burn_required"   yaml:"burn_required"`
	Features       []string     `json:"features"        mapstructure:"features"        yaml:"features"`
	ProofLimit     int          `json:"proof_limit"     mapstructure:"proof_limit"     yaml:"proof_limit"`
	TemplateAccess string       `json:"template_access" mapstructure:"template_access" yaml:"template_access"`
	GaslessProofs  bool         `json:"gasless_proofs"  mapstructure:"gasless_proofs"  yaml:"gasless_proofs"`
	WhiteLabel     bool         `json:"white_label"     mapstructure:"white_label"     yaml:"white_label"`
}

// Status is a wallet's premium standing. TotalBurned accumulates within
// the current validity window; LifetimeBurned is never reset.
type Status struct {
	types.Entity
	Wallet         string       `json:"wallet"`
	Tier           Tier         `json:"tier"`
	TotalBurned    types.Amount `json:"total_burned"`
	LifetimeBurned types.Amount `json:"lifetime_burned"`
	UnlockedAt     time.Time    `json:"unlocked_at"`
	ExpiresAt      time.Time    `json:"expires_at"`
	Expired        bool         `json:"expired"`
}

// IsExpired reports whether the unlocked tier has lapsed at now.
func (s *Status) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Effective returns the status as it reads at now: an expired status
// reports TierFree with its burn totals unchanged.
func (s *Status) Effective(now time.Time) *Status {
	out := *s
	if s.IsExpired(now) {
		out.Tier = TierFree
		out.Expired = true
	}
	return &out
}

// BurnRecord is an append-only audit entry for one burn. Signature is
// empty for simulated burns.
type BurnRecord struct {
	ID          id.BurnID    `json:"id"`
	Wallet      string       `json:"wallet"`
	Amount      types.Amount `json:"amount"`
	Tier        Tier         `json:"tier"`
	TotalBurned types.Amount `json:"total_burned"`
	Signature   string       `json:"signature,omitempty"`
	Simulated   bool         `json:"simulated"`
	Timestamp   time.Time    `json:"timestamp"`
}

// BurnResult is returned from a burn.
type BurnResult struct {
	Status       *Status      `json:"status"`
	Record       *BurnRecord  `json:"record,omitempty"`
	AmountBurned types.Amount `json:"amount_burned"`
	PreviousTier Tier         `json:"previous_tier"`
	Upgraded     bool         `json:"upgraded"`
}

// NextTier describes the next tier above a wallet's current one.
type NextTier struct {
	Current      Tier         `json:"current"`
	Next         Tier         `json:"next,omitempty"`
	TokensNeeded types.Amount `json:"tokens_needed"`
	IsMax        bool         `json:"is_max"`
}

// BurnRequest asks to burn tokens for premium access. With a zero Amount
// and a TargetTier, the amount burned is whatever the wallet still needs
// to reach that tier. An empty Signature marks the burn as simulated.
type BurnRequest struct {
	Wallet     string       `json:"wallet"`
	Amount     types.Amount `json:"amount"`
	TargetTier Tier         `json:"target_tier,omitempty"`
	Signature  string       `json:"signature,omitempty"`
}
