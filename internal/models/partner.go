package models

import "github.com/shopspring/decimal"

// Partner is a revenue-sharing company in the partner registry.
// The defaults pre-fill new partnership terms; the terms themselves are
// what the settlement engine reads.
type Partner struct {
	// ID is the unique identifier for the partner (UUID format).
	ID string `json:"id"`

	// Name is the partner company's display name.
	Name string `json:"name"`

	// Phone is an optional contact number.
	Phone string `json:"phone,omitempty"`

	// DefaultPrePct is the suggested recovery-phase percentage when this
	// partner is added to an asset.
	DefaultPrePct decimal.Decimal `json:"default_pre_pct"`

	// DefaultPostPct is the suggested profit-phase percentage.
	DefaultPostPct decimal.Decimal `json:"default_post_pct"`

	// DefaultCapital is the suggested capital contribution.
	DefaultCapital decimal.Decimal `json:"default_capital"`

	// CreatedAt is the Unix timestamp when the partner was registered.
	CreatedAt int64 `json:"created_at"`
}
