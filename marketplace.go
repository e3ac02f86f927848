package ledger

import (
	"context"
	"strings"

	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/types"
)

// ──────────────────────────────────────────────────
// Marketplace
// ──────────────────────────────────────────────────

// ListTemplate publishes a template. Prices below the minimum are raised
// to it and unknown categories become "other".
func (l *Ledger) ListTemplate(ctx context.Context, in marketplace.TemplateInput) (*marketplace.Template, error) {
	const op = "list_template"
	cfg := l.config.Marketplace

	creatorAddress := strings.TrimSpace(in.CreatorAddress)
	if creatorAddress == "" {
		creatorAddress = strings.TrimSpace(in.Creator)
	}

	now := l.now()
	t := &marketplace.Template{
		Entity:         types.NewEntity(now),
		ID:             id.NewTemplateID(),
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		Creator:        strings.TrimSpace(in.Creator),
		CreatorAddress: creatorAddress,
		Price:          cfg.ClampPrice(in.Price),
		Category:       cfg.NormalizeCategory(in.Category),
		CircuitCode:    in.CircuitCode,
		Nodes:          in.Nodes,
		Edges:          in.Edges,
		Tags:           in.Tags,
	}

	if err := l.store.CreateTemplate(ctx, t); err != nil {
		return nil, l.reject(ctx, op, storeError(op, err))
	}

	l.logger.Debug("template listed",
		"template_id", t.ID.String(),
		"creator", t.Creator,
		"price", t.Price.String(),
		"category", t.Category,
	)
	l.plugins.EmitTemplateListed(ctx, t)
	return t, nil
}

// GetTemplate retrieves a template by ID.
func (l *Ledger) GetTemplate(ctx context.Context, templateID id.TemplateID) (*marketplace.Template, error) {
	t, err := l.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, storeError("get_template", err)
	}
	return t, nil
}

// ListTemplates lists templates matching opts.
func (l *Ledger) ListTemplates(ctx context.Context, opts marketplace.ListOpts) ([]*marketplace.Template, error) {
	templates, err := l.store.ListTemplates(ctx, opts)
	if err != nil {
		return nil, storeError("list_templates", err)
	}
	return templates, nil
}

// PurchaseTemplate sells a template to buyer at its current price. The
// ownership check runs before the template lookup; the store enforces it
// again atomically.
func (l *Ledger) PurchaseTemplate(ctx context.Context, templateID id.TemplateID, buyer, signature string) (*marketplace.Purchase, error) {
	const op = "purchase_template"

	buyer = strings.TrimSpace(buyer)
	if buyer == "" {
		return nil, l.reject(ctx, op, ValidationError{Field: "buyer", Message: "required"})
	}

	owned, err := l.IsOwned(ctx, templateID, buyer)
	if err != nil {
		return nil, l.reject(ctx, op, err)
	}
	if owned {
		return nil, l.reject(ctx, op, ErrAlreadyOwned)
	}

	t, err := l.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, l.reject(ctx, op, storeError(op, err))
	}

	fee, revenue := l.config.Marketplace.Split(t.Price)
	p := &marketplace.Purchase{
		ID:                   id.NewPurchaseID(),
		TemplateID:           t.ID,
		Buyer:                buyer,
		Seller:               t.CreatorAddress,
		Price:                t.Price,
		PlatformFee:          fee,
		CreatorRevenue:       revenue,
		TransactionSignature: signature,
		Timestamp:            l.now(),
	}

	if err := l.store.RecordPurchase(ctx, p); err != nil {
		return nil, l.reject(ctx, op, storeError(op, err))
	}

	l.logger.Debug("template purchased",
		"template_id", t.ID.String(),
		"buyer", buyer,
		"price", p.Price.String(),
		"platform_fee", fee.String(),
	)
	l.plugins.EmitTemplatePurchased(ctx, p)
	return p, nil
}

// IsOwned reports whether buyer has purchased the template.
func (l *Ledger) IsOwned(ctx context.Context, templateID id.TemplateID, buyer string) (bool, error) {
	_, err := l.store.GetPurchase(ctx, templateID, buyer)
	switch {
	case err == nil:
		return true, nil
	case IsNotFound(err):
		return false, nil
	default:
		return false, storeError("is_owned", err)
	}
}

// OwnedTemplates lists the templates buyer has purchased.
func (l *Ledger) OwnedTemplates(ctx context.Context, buyer string) ([]*marketplace.Template, error) {
	purchases, err := l.store.ListPurchases(ctx, marketplace.PurchaseListOpts{Buyer: buyer})
	if err != nil {
		return nil, storeError("owned_templates", err)
	}

	out := make([]*marketplace.Template, 0, len(purchases))
	for _, p := range purchases {
		t, err := l.store.GetTemplate(ctx, p.TemplateID)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, storeError("owned_templates", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// RateTemplate folds an owner's 1-5 star rating into the template's
// average. Owners may rate more than once.
func (l *Ledger) RateTemplate(ctx context.Context, templateID id.TemplateID, rater string, rating int) (*marketplace.Template, error) {
	const op = "rate_template"

	if !marketplace.ValidRating(rating) {
		return nil, l.reject(ctx, op, ErrInvalidRating)
	}

	owned, err := l.IsOwned(ctx, templateID, rater)
	if err != nil {
		return nil, l.reject(ctx, op, err)
	}
	if !owned {
		return nil, l.reject(ctx, op, ErrNotOwned)
	}

	t, err := l.store.RateTemplate(ctx, templateID, rating, l.now())
	if err != nil {
		return nil, l.reject(ctx, op, storeError(op, err))
	}

	l.logger.Debug("template rated",
		"template_id", templateID.String(),
		"rater", rater,
		"rating", rating,
		"average", t.Rating,
	)
	l.plugins.EmitTemplateRated(ctx, t, rater, rating)
	return t, nil
}

// CreatorStats summarizes a creator's templates and sales.
func (l *Ledger) CreatorStats(ctx context.Context, creator string) (*marketplace.CreatorStats, error) {
	templates, err := l.store.ListTemplates(ctx, marketplace.ListOpts{Creator: creator})
	if err != nil {
		return nil, storeError("creator_stats", err)
	}

	stats := &marketplace.CreatorStats{Creator: creator, TotalTemplates: len(templates)}
	var ratingSum float64
	var rated int
	for _, t := range templates {
		stats.TotalDownloads += t.Downloads
		if t.RatingCount > 0 {
			ratingSum += t.Rating
			rated++
		}
		purchases, err := l.store.ListPurchases(ctx, marketplace.PurchaseListOpts{TemplateID: t.ID})
		if err != nil {
			return nil, storeError("creator_stats", err)
		}
		for _, p := range purchases {
			stats.TotalRevenue = stats.TotalRevenue.SaturatingAdd(p.CreatorRevenue)
		}
	}
	if rated > 0 {
		stats.AverageRating = ratingSum / float64(rated)
	}
	return stats, nil
}

// MarketplaceStats summarizes the whole marketplace.
func (l *Ledger) MarketplaceStats(ctx context.Context) (*marketplace.Stats, error) {
	templates, err := l.store.ListTemplates(ctx, marketplace.ListOpts{})
	if err != nil {
		return nil, storeError("marketplace_stats", err)
	}
	purchases, err := l.store.ListPurchases(ctx, marketplace.PurchaseListOpts{})
	if err != nil {
		return nil, storeError("marketplace_stats", err)
	}

	creators := make(map[string]struct{}, len(templates))
	for _, t := range templates {
		creators[t.Creator] = struct{}{}
	}
	stats := &marketplace.Stats{
		TotalTemplates: len(templates),
		TotalCreators:  len(creators),
		TotalSales:     len(purchases),
	}
	for _, p := range purchases {
		stats.TotalVolume = stats.TotalVolume.SaturatingAdd(p.Price)
	}
	return stats, nil
}
