package marketplace

import (
	"context"
	"time"

	"github.com/zkrune/tokenledger/id"
)

// Store persists templates and purchases. The set of purchases for a
// template is its ownership set.
type Store interface {
	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplate(ctx context.Context, templateID id.TemplateID) (*Template, error)
	ListTemplates(ctx context.Context, opts ListOpts) ([]*Template, error)

	// RecordPurchase inserts p and increments the template's downloads
	// atomically. A second purchase of the same template by the same buyer
	// fails with ErrAlreadyOwned.
	RecordPurchase(ctx context.Context, p *Purchase) error
	GetPurchase(ctx context.Context, templateID id.TemplateID, buyer string) (*Purchase, error)
	ListPurchases(ctx context.Context, opts PurchaseListOpts) ([]*Purchase, error)

	// RateTemplate folds rating into the running average atomically and
	// stamps the template as updated at ratedAt.
	RateTemplate(ctx context.Context, templateID id.TemplateID, rating int, ratedAt time.Time) (*Template, error)
}

// ListOpts filters ListTemplates. Query matches name, description and
// tags case-insensitively.
type ListOpts struct {
	Category Category
	Creator  string
	Featured *bool
	Query    string
	Limit    int
	Offset   int
}

// PurchaseListOpts filters ListPurchases.
type PurchaseListOpts struct {
	TemplateID id.TemplateID
	Buyer      string
	Seller     string
	Limit      int
	Offset     int
}
