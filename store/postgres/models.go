package postgres

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/xraph/grove"

	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/types"
)

// ==================== Position models ====================

type positionModel struct {
	grove.BaseModel `grove:"table:ledger_stake_positions"`

	ID             string    `grove:"id,pk"`
	Staker         string    `grove:"staker"`
	Amount         int64     `grove:"amount"`
	LockPeriodDays int       `grove:"lock_period_days"`
	Multiplier     float64   `grove:"multiplier"`
	StakedAt       time.Time `grove:"staked_at"`
	UnlocksAt      time.Time `grove:"unlocks_at"`
	LastClaimAt    time.Time `grove:"last_claim_at"`
	TotalClaimed   int64     `grove:"total_claimed"`
	IsActive       bool      `grove:"is_active"`
	Version        int64     `grove:"version"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toPositionModel(p *staking.Position) *positionModel {
	return &positionModel{
		ID:             p.ID.String(),
		Staker:         p.Staker,
		Amount:         p.Amount.Units(),
		LockPeriodDays: p.LockPeriodDays,
		Multiplier:     p.Multiplier,
		StakedAt:       p.StakedAt,
		UnlocksAt:      p.UnlocksAt,
		LastClaimAt:    p.LastClaimAt,
		TotalClaimed:   p.TotalClaimed.Units(),
		IsActive:       p.IsActive,
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func fromPositionModel(m *positionModel) (*staking.Position, error) {
	positionID, err := id.ParseStakeID(m.ID)
	if err != nil {
		return nil, err
	}
	return &staking.Position{
		Entity:         types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:             positionID,
		Staker:         m.Staker,
		Amount:         types.Amount(m.Amount),
		LockPeriodDays: m.LockPeriodDays,
		Multiplier:     m.Multiplier,
		StakedAt:       m.StakedAt.UTC(),
		UnlocksAt:      m.UnlocksAt.UTC(),
		LastClaimAt:    m.LastClaimAt.UTC(),
		TotalClaimed:   types.Amount(m.TotalClaimed),
		IsActive:       m.IsActive,
		Version:        m.Version,
	}, nil
}

// ==================== Proposal models ====================

type proposalModel struct {
	grove.BaseModel `grove:"table:ledger_proposals"`

	ID            string          `grove:"id,pk"`
	Type          string          `grove:"type"`
	Title         string          `grove:"title"`
	Description   string          `grove:"description"`
	Creator       string          `grove:"creator"`
	Status        string          `grove:"status"`
	VotesFor      int64           `grove:"votes_for"`
	VotesAgainst  int64           `grove:"votes_against"`
	VoterCount    int             `grove:"voter_count"`
	QuorumReached bool            `grove:"quorum_reached"`
	EndsAt        time.Time       `grove:"ends_at"`
	TemplateData  json.RawMessage `grove:"template_data,type:jsonb"`
	FeatureData   json.RawMessage `grove:"feature_data,type:jsonb"`
	CreatedAt     time.Time       `grove:"created_at"`
	UpdatedAt     time.Time       `grove:"updated_at"`
}

func toProposalModel(p *governance.Proposal) *proposalModel {
	m := &proposalModel{
		ID:            p.ID.String(),
		Type:          string(p.Type),
		Title:         p.Title,
		Description:   p.Description,
		Creator:       p.Creator,
		Status:        string(p.Status),
		VotesFor:      p.VotesFor.Units(),
		VotesAgainst:  p.VotesAgainst.Units(),
		VoterCount:    p.VoterCount,
		QuorumReached: p.QuorumReached,
		EndsAt:        p.EndsAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.TemplateData != nil {
		m.TemplateData, _ = json.Marshal(p.TemplateData) //nolint:errcheck // string-only payload
	}
	if p.FeatureData != nil {
		m.FeatureData, _ = json.Marshal(p.FeatureData) //nolint:errcheck // string-only payload
	}
	return m
}

func fromProposalModel(m *proposalModel) (*governance.Proposal, error) {
	proposalID, err := id.ParseProposalID(m.ID)
	if err != nil {
		return nil, err
	}

	p := &governance.Proposal{
		Entity:        types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:            proposalID,
		Type:          governance.ProposalType(m.Type),
		Title:         m.Title,
		Description:   m.Description,
		Creator:       m.Creator,
		Status:        governance.Status(m.Status),
		VotesFor:      types.Amount(m.VotesFor),
		VotesAgainst:  types.Amount(m.VotesAgainst),
		VoterCount:    m.VoterCount,
		QuorumReached: m.QuorumReached,
		EndsAt:        m.EndsAt.UTC(),
	}
	if len(m.TemplateData) > 0 && string(m.TemplateData) != "null" {
		p.TemplateData = new(governance.TemplateData)
		if err := json.Unmarshal(m.TemplateData, p.TemplateData); err != nil {
			return nil, err
		}
	}
	if len(m.FeatureData) > 0 && string(m.FeatureData) != "null" {
		p.FeatureData = new(governance.FeatureData)
		if err := json.Unmarshal(m.FeatureData, p.FeatureData); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ==================== Vote models ====================

type voteModel struct {
	grove.BaseModel `grove:"table:ledger_votes"`

	ID           string    `grove:"id,pk"`
	ProposalID   string    `grove:"proposal_id"`
	Voter        string    `grove:"voter"`
	Support      bool      `grove:"support"`
	Weight       int64     `grove:"weight"`
	TokenBalance int64     `grove:"token_balance"`
	Timestamp    time.Time `grove:"timestamp"`
}

func toVoteModel(v *governance.Vote) *voteModel {
	return &voteModel{
		ID:           v.ID.String(),
		ProposalID:   v.ProposalID.String(),
		Voter:        v.Voter,
		Support:      v.Support,
		Weight:       v.Weight.Units(),
		TokenBalance: v.TokenBalance.Units(),
		Timestamp:    v.Timestamp,
	}
}

func fromVoteModel(m *voteModel) (*governance.Vote, error) {
	voteID, err := id.ParseVoteID(m.ID)
	if err != nil {
		return nil, err
	}
	proposalID, err := id.ParseProposalID(m.ProposalID)
	if err != nil {
		return nil, err
	}
	return &governance.Vote{
		ID:           voteID,
		ProposalID:   proposalID,
		Voter:        m.Voter,
		Support:      m.Support,
		Weight:       types.Amount(m.Weight),
		TokenBalance: types.Amount(m.TokenBalance),
		Timestamp:    m.Timestamp.UTC(),
	}, nil
}

// ==================== Template models ====================

type templateModel struct {
	grove.BaseModel `grove:"table:ledger_templates"`

	ID             string          `grove:"id,pk"`
	Name           string          `grove:"name"`
	Description    string          `grove:"description"`
	Creator        string          `grove:"creator"`
	CreatorAddress string          `grove:"creator_address"`
	Price          int64           `grove:"price"`
	Category       string          `grove:"category"`
	CircuitCode    string          `grove:"circuit_code"`
	Nodes          json.RawMessage `grove:"nodes,type:jsonb"`
	Edges          json.RawMessage `grove:"edges,type:jsonb"`
	Downloads      int64           `grove:"downloads"`
	Rating         float64         `grove:"rating"`
	RatingCount    int64           `grove:"rating_count"`
	Featured       bool            `grove:"featured"`
	Verified       bool            `grove:"verified"`
	Tags           []string        `grove:"tags,type:text[]"`
	SearchText     string          `grove:"search_text"`
	CreatedAt      time.Time       `grove:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"`
}

func toTemplateModel(t *marketplace.Template) *templateModel {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return &templateModel{
		ID:             t.ID.String(),
		Name:           t.Name,
		Description:    t.Description,
		Creator:        t.Creator,
		CreatorAddress: t.CreatorAddress,
		Price:          t.Price.Units(),
		Category:       string(t.Category),
		CircuitCode:    t.CircuitCode,
		Nodes:          t.Nodes,
		Edges:          t.Edges,
		Downloads:      t.Downloads,
		Rating:         t.Rating,
		RatingCount:    t.RatingCount,
		Featured:       t.Featured,
		Verified:       t.Verified,
		Tags:           tags,
		SearchText:     searchText(t),
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func fromTemplateModel(m *templateModel) (*marketplace.Template, error) {
	templateID, err := id.ParseTemplateID(m.ID)
	if err != nil {
		return nil, err
	}

	var tags []string
	if len(m.Tags) > 0 {
		tags = m.Tags
	}

	return &marketplace.Template{
		Entity:         types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:             templateID,
		Name:           m.Name,
		Description:    m.Description,
		Creator:        m.Creator,
		CreatorAddress: m.CreatorAddress,
		Price:          types.Amount(m.Price),
		Category:       marketplace.Category(m.Category),
		CircuitCode:    m.CircuitCode,
		Nodes:          m.Nodes,
		Edges:          m.Edges,
		Downloads:      m.Downloads,
		Rating:         m.Rating,
		RatingCount:    m.RatingCount,
		Featured:       m.Featured,
		Verified:       m.Verified,
		Tags:           tags,
	}, nil
}

// ==================== Purchase models ====================

type purchaseModel struct {
	grove.BaseModel `grove:"table:ledger_purchases"`

	ID                   string    `grove:"id,pk"`
	TemplateID           string    `grove:"template_id"`
	Buyer                string    `grove:"buyer"`
	Seller               string    `grove:"seller"`
	Price                int64     `grove:"price"`
	PlatformFee          int64     `grove:"platform_fee"`
	CreatorRevenue       int64     `grove:"creator_revenue"`
	TransactionSignature string    `grove:"transaction_signature"`
	Timestamp            time.Time `grove:"timestamp"`
}

func toPurchaseModel(p *marketplace.Purchase) *purchaseModel {
	return &purchaseModel{
		ID:                   p.ID.String(),
		TemplateID:           p.TemplateID.String(),
		Buyer:                p.Buyer,
		Seller:               p.Seller,
		Price:                p.Price.Units(),
		PlatformFee:          p.PlatformFee.Units(),
		CreatorRevenue:       p.CreatorRevenue.Units(),
		TransactionSignature: p.TransactionSignature,
		Timestamp:            p.Timestamp,
	}
}

func fromPurchaseModel(m *purchaseModel) (*marketplace.Purchase, error) {
	purchaseID, err := id.ParsePurchaseID(m.ID)
	if err != nil {
		return nil, err
	}
	templateID, err := id.ParseTemplateID(m.TemplateID)
	if err != nil {
		return nil, err
	}
	return &marketplace.Purchase{
		ID:                   purchaseID,
		TemplateID:           templateID,
		Buyer:                m.Buyer,
		Seller:               m.Seller,
		Price:                types.Amount(m.Price),
		PlatformFee:          types.Amount(m.PlatformFee),
		CreatorRevenue:       types.Amount(m.CreatorRevenue),
		TransactionSignature: m.TransactionSignature,
		Timestamp:            m.Timestamp.UTC(),
	}, nil
}

// ==================== Premium models ====================

type statusModel struct {
	grove.BaseModel `grove:"table:ledger_premium_status"`

	Wallet         string    `grove:"wallet,pk"`
	Tier           string    `grove:"tier"`
	TotalBurned    int64     `grove:"total_burned"`
	LifetimeBurned int64     `grove:"lifetime_burned"`
	UnlockedAt     time.Time `grove:"unlocked_at"`
	ExpiresAt      time.Time `grove:"expires_at"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toStatusModel(st *premium.Status) *statusModel {
	return &statusModel{
		Wallet:         st.Wallet,
		Tier:           string(st.Tier),
		TotalBurned:    st.TotalBurned.Units(),
		LifetimeBurned: st.LifetimeBurned.Units(),
		UnlockedAt:     st.UnlockedAt,
		ExpiresAt:      st.ExpiresAt,
		CreatedAt:      st.CreatedAt,
		UpdatedAt:      st.UpdatedAt,
	}
}

func fromStatusModel(m *statusModel) *premium.Status {
	return &premium.Status{
		Entity:         types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		Wallet:         m.Wallet,
		Tier:           premium.Tier(m.Tier),
		TotalBurned:    types.Amount(m.TotalBurned),
		LifetimeBurned: types.Amount(m.LifetimeBurned),
		UnlockedAt:     m.UnlockedAt.UTC(),
		ExpiresAt:      m.ExpiresAt.UTC(),
	}
}

type burnModel struct {
	grove.BaseModel `grove:"table:ledger_burns"`

	ID          string    `grove:"id,pk"`
	Wallet      string    `grove:"wallet"`
	Amount      int64     `grove:"amount"`
	Tier        string    `grove:"tier"`
	TotalBurned int64     `grove:"total_burned"`
	Signature   string    `grove:"signature"`
	Simulated   bool      `grove:"simulated"`
	Timestamp   time.Time `grove:"timestamp"`
}

func toBurnModel(b *premium.BurnRecord) *burnModel {
	return &burnModel{
		ID:          b.ID.String(),
		Wallet:      b.Wallet,
		Amount:      b.Amount.Units(),
		Tier:        string(b.Tier),
		TotalBurned: b.TotalBurned.Units(),
		Signature:   b.Signature,
		Simulated:   b.Simulated,
		Timestamp:   b.Timestamp,
	}
}

func fromBurnModel(m *burnModel) (*premium.BurnRecord, error) {
	burnID, err := id.ParseBurnID(m.ID)
	if err != nil {
		return nil, err
	}
	return &premium.BurnRecord{
		ID:          burnID,
		Wallet:      m.Wallet,
		Amount:      types.Amount(m.Amount),
		Tier:        premium.Tier(m.Tier),
		TotalBurned: types.Amount(m.TotalBurned),
		Signature:   m.Signature,
		Simulated:   m.Simulated,
		Timestamp:   m.Timestamp.UTC(),
	}, nil
}

// searchText is the lowercased haystack template search runs over.
func searchText(t *marketplace.Template) string {
	parts := append([]string{t.Name, t.Description}, t.Tags...)
	return strings.ToLower(strings.Join(parts, "\n"))
}
