// Package marketplace holds circuit templates, their purchases, and the
// fee split and rating rules applied to them.
package marketplace

import (
	"strings"

	"github.com/zkrune/tokenledger/types"
)

// Ratings are whole stars in [MinRating, MaxRating].
const (
	MinRating = 1
	MaxRating = 5
)

// Config holds the marketplace economics.
type Config struct {
	PlatformFeePct      int64        `json:"platform_fee_pct"      mapstructure:"platform_fee_pct"      yaml:"platform_fee_pct"`
	MinTemplatePrice    types.Amount `json:"min_template_price"    mapstructure:"min_template_price"    yaml:"min_template_price"`
	FeaturedListingCost types.Amount `json:"featured_listing_cost" mapstructure:"featured_listing_cost" yaml:"featured_listing_cost"`
	Categories          []Category   `json:"categories"            mapstructure:"categories"            yaml:"categories"`
}

// DefaultConfig returns the production marketplace economics.
func DefaultConfig() Config {
	return Config{
		PlatformFeePct:      5,
		MinTemplatePrice:    types.Tokens(10),
		FeaturedListingCost: types.Tokens(50),
		Categories: []Category{
			CategoryIdentity, CategoryFinance, CategoryVoting, CategoryGaming,
			CategorySocial, CategoryEnterprise, CategoryOther,
		},
	}
}

// CreatorSharePct is the percentage of each sale paid to the creator.
func (c Config) CreatorSharePct() int64 { return 100 - c.PlatformFeePct }

// Split divides price into the platform fee (rounded down) and the
// creator's revenue. The two always sum to price.
func (c Config) Split(price types.Amount) (fee, revenue types.Amount) {
	fee = price.Percent(c.PlatformFeePct)
	return fee, price.Sub(fee)
}

// ClampPrice raises price to MinTemplatePrice.
func (c Config) ClampPrice(price types.Amount) types.Amount {
	if price < c.MinTemplatePrice {
		return c.MinTemplatePrice
	}
	return price
}

// NormalizeCategory maps unknown or empty categories to CategoryOther.
func (c Config) NormalizeCategory(cat Category) Category {
	cat = Category(strings.ToLower(strings.TrimSpace(string(cat))))
	for _, known := range c.Categories {
		if cat == known {
			return cat
		}
	}
	return CategoryOther
}

// ValidRating reports whether rating is a whole-star score.
func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// ApplyRating folds rating into t's running average. Callers must already
// hold exclusive access to t.
func (t *Template) ApplyRating(rating int) {
	total := t.Rating*float64(t.RatingCount) + float64(rating)
	t.RatingCount++
	t.Rating = total / float64(t.RatingCount)
}

// Matches reports whether t matches a case-insensitive search over its
// name, description and tags.
func (t *Template) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(t.Name), q) ||
		strings.Contains(strings.ToLower(t.Description), q) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
