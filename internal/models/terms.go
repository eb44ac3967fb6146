package models

import "github.com/shopspring/decimal"

// PartnerShare is one partner's slice of an asset's partnership terms.
type PartnerShare struct {
	// PartnerID references the partner in the registry.
	// Unique within a PartnershipTerms.Partners slice.
	PartnerID string

	// PrePct is the partner's percentage (0-100) of rent during the
	// capital-recovery phase.
	PrePct decimal.Decimal

	// PostPct is the partner's percentage (0-100) of rent during the
	// profit-sharing phase.
	PostPct decimal.Decimal

	// CapitalContribution is the capital this partner put into the asset.
	// The asset's capital total is the sum over all partners.
	CapitalContribution decimal.Decimal
}

// PartnershipTerms is the percentage configuration governing how rent on one
// shared asset is split, per phase.
//
// Terms are only written through the validator: the recovery-side
// percentages (CompanyPrePct + CapitalPrePct + all PrePct) and the
// profit-side percentages (CompanyPostPct + all PostPct) must each sum to
// 100 within a 0.01 tolerance. The settlement engine rejects terms that do
// not reconcile; it never normalizes them.
type PartnershipTerms struct {
	// AssetID identifies the shared asset these terms apply to.
	AssetID string

	// CompanyPrePct is the operating company's percentage during recovery.
	CompanyPrePct decimal.Decimal

	// CapitalPrePct is the percentage routed to the capital pool during
	// recovery, reducing CapitalRemaining.
	CapitalPrePct decimal.Decimal

	// CompanyPostPct is the operating company's percentage once capital is
	// fully recovered.
	CompanyPostPct decimal.Decimal

	// Partners is the ordered list of partner shares.
	Partners []PartnerShare
}

// TotalCapital sums the partners' capital contributions.
func (t *PartnershipTerms) TotalCapital() decimal.Decimal {
	total := decimal.Zero
	for _, p := range t.Partners {
		total = total.Add(p.CapitalContribution)
	}
	return total
}
