package marketplace

import (
	"encoding/json"
	"time"

	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/types"
)

// Category groups templates in the marketplace.
type Category string

const (
	CategoryIdentity   Category = "identity"
	CategoryFinance    Category = "finance"
	CategoryVoting     Category = "voting"
	CategoryGaming     Category = "gaming"
	CategorySocial     Category = "social"
	CategoryEnterprise Category = "enterprise"
	CategoryOther      Category = "other"
)

// Template is a circuit template offered for sale.
type Template struct {
	types.Entity
	ID             id.TemplateID   `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Creator        string          `json:"creator"`
	CreatorAddress string          `json:"creator_address"`
	Price          types.Amount    `json:"price"`
	Category       Category        `json:"category"`
	CircuitCode    string          `json:"circuit_code,omitempty"`
	Nodes          json.RawMessage `json:"nodes,omitempty"`
	Edges          json.RawMessage `json:"edges,omitempty"`
	Downloads      int64           `json:"downloads"`
	Rating         float64         `json:"rating"`
	RatingCount    int64           `json:"rating_count"`
	Featured       bool            `json:"featured"`
	Verified       bool            `json:"verified"`
	Tags           []string        `json:"tags,omitempty"`
}

// Purchase records one buyer acquiring one template. Price and the split
// are copied from the template at purchase time.
type Purchase struct {
	ID                   id.PurchaseID `json:"id"`
	TemplateID           id.TemplateID `json:"template_id"`
	Buyer                string        `json:"buyer"`
	Seller               string        `json:"seller"`
	Price                types.Amount  `json:"price"`
	PlatformFee          types.Amount  `json:"platform_fee"`
	CreatorRevenue       types.Amount  `json:"creator_revenue"`
	TransactionSignature string        `json:"transaction_signature,omitempty"`
	Timestamp            time.Time     `json:"timestamp"`
}

// CreatorStats summarizes one creator's catalogue.
type CreatorStats struct {
	Creator        string       `json:"creator"`
	TotalTemplates int          `json:"total_templates"`
	TotalDownloads int64        `json:"total_downloads"`
	TotalRevenue   types.Amount `json:"total_revenue"`
	AverageRating  float64      `json:"average_rating"`
}

// Stats summarizes the whole marketplace.
type Stats struct {
	TotalTemplates int          `json:"total_templates"`
	TotalCreators  int          `json:"total_creators"`
	TotalSales     int          `json:"total_sales"`
	TotalVolume    types.Amount `json:"total_volume"`
}

// TemplateInput is what a creator submits to list a template.
type TemplateInput struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Creator        string          `json:"creator"`
	CreatorAddress string          `json:"creator_address"`
	Price          types.Amount    `json:"price"`
	Category       Category        `json:"category"`
	CircuitCode    string          `json:"circuit_code,omitempty"`
	Nodes          json.RawMessage `json:"nodes,omitempty"`
	Edges          json.RawMessage `json:"edges,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
}
