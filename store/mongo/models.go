package mongo

import (
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

// Grove builds insert and update documents from the grove column names, so
// every bson tag below must match its grove column.

// ==================== Position models ====================

type positionModel struct {
	grove.BaseModel `grove:"table:ledger_stake_positions"`

	ID             string    `grove:"id,pk"            bson:"_id"`
	Staker         string    `grove:"staker"           bson:"staker"`
	Amount         int64     `grove:"amount"           bson:"amount"`
	LockPeriodDays int       `grove:"lock_period_days" bson:"lock_period_days"`
	Multiplier     float64   `grove:"multiplier"       bson:"multiplier"`
	StakedAt       time.Time `grove:"staked_at"        bson:"staked_at"`
	UnlocksAt      time.Time `grove:"unlocks_at"       bson:"unlocks_at"`
	LastClaimAt    time.Time `grove:"last_claim_at"    bson:"last_claim_at"`
	TotalClaimed   int64     `grove:"total_claimed"    bson:"total_claimed"`
	IsActive       bool      `grove:"is_active"        bson:"is_active"`
	Version        int64     `grove:"version"          bson:"version"`
	CreatedAt      time.Time `grove:"created_at"       bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"       bson:"updated_at"`
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

	ID            string             `grove:"id,pk"          bson:"_id"`
	Type          string             `grove:"type"           bson:"type"`
	Title         string             `grove:"title"          bson:"title"`
	Description   string             `grove:"description"    bson:"description"`
	Creator       string             `grove:"creator"        bson:"creator"`
	Status        string             `grove:"status"         bson:"status"`
	VotesFor      int64              `grove:"votes_for"      bson:"votes_for"`
	VotesAgainst  int64              `grove:"votes_against"  bson:"votes_against"`
	VoterCount    int                `grove:"voter_count"    bson:"voter_count"`
	QuorumReached bool               `grove:"quorum_reached" bson:"quorum_reached"`
	EndsAt        time.Time          `grove:"ends_at"        bson:"ends_at"`
	TemplateData  *templateDataModel `grove:"template_data"  bson:"template_data,omitempty"`
	FeatureData   *featureDataModel  `grove:"feature_data"   bson:"feature_data,omitempty"`
	CreatedAt     time.Time          `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time          `grove:"updated_at"     bson:"updated_at"`
}

type templateDataModel struct {
	Name        string `bson:"name"`
	CircuitCode string `bson:"circuit_code"`
	Category    string `bson:"category"`
}

type featureDataModel struct {
	FeatureName   string `bson:"feature_name"`
	Specification string `bson:"specification"`
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
	if d := p.TemplateData; d != nil {
		m.TemplateData = &templateDataModel{
			Name:        d.Name,
			CircuitCode: d.CircuitCode,
			Category:    d.Category,
		}
	}
	if d := p.FeatureData; d != nil {
		m.FeatureData = &featureDataModel{
			FeatureName:   d.FeatureName,
			Specification: d.Specification,
		}
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
	if d := m.TemplateData; d != nil {
		p.TemplateData = &governance.TemplateData{
			Name:        d.Name,
			CircuitCode: d.CircuitCode,
			Category:    d.Category,
		}
	}
	if d := m.FeatureData; d != nil {
		p.FeatureData = &governance.FeatureData{
			FeatureName:   d.FeatureName,
			Specification: d.Specification,
		}
	}
	return p, nil
}

// ==================== Vote models ====================

type voteModel struct {
	grove.BaseModel `grove:"table:ledger_votes"`

	ID           string    `grove:"id,pk"         bson:"_id"`
	ProposalID   string    `grove:"proposal_id"   bson:"proposal_id"`
	Voter        string    `grove:"voter"         bson:"voter"`
	Support      bool      `grove:"support"       bson:"support"`
	Weight       int64     `grove:"weight"        bson:"weight"`
	TokenBalance int64     `grove:"token_balance" bson:"token_balance"`
	Timestamp    time.Time `grove:"timestamp"     bson:"timestamp"`
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

	ID             string    `grove:"id,pk"           bson:"_id"`
	Name           string    `grove:"name"            bson:"name"`
	Description    string    `grove:"description"     bson:"description"`
	Creator        string    `grove:"creator"         bson:"creator"`
	CreatorAddress string    `grove:"creator_address" bson:"creator_address"`
	Price          int64     `grove:"price"           bson:"price"`
	Category       string    `grove:"category"        bson:"category"`
	CircuitCode    string    `grove:"circuit_code"    bson:"circuit_code"`
	Nodes          string    `grove:"nodes"           bson:"nodes"`
	Edges          string    `grove:"edges"           bson:"edges"`
	Downloads      int64     `grove:"downloads"       bson:"downloads"`
	Rating         float64   `grove:"rating"          bson:"rating"`
	RatingCount    int64     `grove:"rating_count"    bson:"rating_count"`
	Featured       bool      `grove:"featured"        bson:"featured"`
	Verified       bool      `grove:"verified"        bson:"verified"`
	Tags           []string  `grove:"tags"            bson:"tags"`
	SearchText     string    `grove:"search_text"     bson:"search_text"`
	CreatedAt      time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"      bson:"updated_at"`
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
		Nodes:          string(t.Nodes),
		Edges:          string(t.Edges),
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

	t := &marketplace.Template{
		Entity:         types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:             templateID,
		Name:           m.Name,
		Description:    m.Description,
		Creator:        m.Creator,
		CreatorAddress: m.CreatorAddress,
		Price:          types.Amount(m.Price),
		Category:       marketplace.Category(m.Category),
		CircuitCode:    m.CircuitCode,
		Downloads:      m.Downloads,
		Rating:         m.Rating,
		RatingCount:    m.RatingCount,
		Featured:       m.Featured,
		Verified:       m.Verified,
	}
	if m.Nodes != "" {
		t.Nodes = []byte(m.Nodes)
	}
	if m.Edges != "" {
		t.Edges = []byte(m.Edges)
	}
	if len(m.Tags) > 0 {
		t.Tags = m.Tags
	}
	return t, nil
}

// ==================== Purchase models ====================

type purchaseModel struct {
	grove.BaseModel `grove:"table:ledger_purchases"`

	ID                   string    `grove:"id,pk"                 bson:"_id"`
	TemplateID           string    `grove:"template_id"           bson:"template_id"`
	Buyer                string    `grove:"buyer"                 bson:"buyer"`
	Seller               string    `grove:"seller"                bson:"seller"`
	Price                int64     `grove:"price"                 bson:"price"`
	PlatformFee          int64     `grove:"platform_fee"          bson:"platform_fee"`
	CreatorRevenue       int64     `grove:"creator_revenue"       bson:"creator_revenue"`
	TransactionSignature string    `grove:"transaction_signature" bson:"transaction_signature"`
	Timestamp            time.Time `grove:"timestamp"             bson:"timestamp"`
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

// statusModel is keyed by wallet. Rev is bumped on every write so burns can
// compare-and-swap without a transaction.
type statusModel struct {
	grove.BaseModel `grove:"table:ledger_premium_status"`

	Wallet         string    `grove:"id,pk"           bson:"_id"`
	Tier           string    `grove:"tier"            bson:"tier"`
	TotalBurned    int64     `grove:"total_burned"    bson:"total_burned"`
	LifetimeBurned int64     `grove:"lifetime_burned" bson:"lifetime_burned"`
	UnlockedAt     time.Time `grove:"unlocked_at"     bson:"unlocked_at"`
	ExpiresAt      time.Time `grove:"expires_at"      bson:"expires_at"`
	Rev            int64     `grove:"rev"             bson:"rev"`
	CreatedAt      time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"      bson:"updated_at"`
}

func toStatusModel(st *premium.Status, rev int64) *statusModel {
	return &statusModel{
		Wallet:         st.Wallet,
		Tier:           string(st.Tier),
		TotalBurned:    st.TotalBurned.Units(),
		LifetimeBurned: st.LifetimeBurned.Units(),
		UnlockedAt:     st.UnlockedAt,
		ExpiresAt:      st.ExpiresAt,
		Rev:            rev,
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

	ID          string    `grove:"id,pk"        bson:"_id"`
	Wallet      string    `grove:"wallet"       bson:"wallet"`
	Amount      int64     `grove:"amount"       bson:"amount"`
	Tier        string    `grove:"tier"         bson:"tier"`
	TotalBurned int64     `grove:"total_burned" bson:"total_burned"`
	Signature   string    `grove:"signature"    bson:"signature"`
	Simulated   bool      `grove:"simulated"    bson:"simulated"`
	Timestamp   time.Time `grove:"timestamp"    bson:"timestamp"`
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
