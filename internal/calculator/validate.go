package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alfares/partnersplit/internal/models"
)

// TermsError reports a percentage configuration that does not reconcile to
// 100 on one side, with enough detail for the caller to surface a precise
// correction message.
type TermsError struct {
	// Side is "recovery" or "profit".
	Side string

	// Sum is the actual percentage sum on that side.
	Sum decimal.Decimal

	// Deviation is Sum - 100.
	Deviation decimal.Decimal
}

func (e *TermsError) Error() string {
	return fmt.Sprintf("%s-side percentages sum to %s, off by %s from 100",
		e.Side, e.Sum.String(), e.Deviation.String())
}

// ValidateTerms is the single gatekeeper for partnership terms: every code
// path that writes terms, and every settlement that reads them, goes through
// it. Out-of-balance configurations are rejected, never normalized.
func ValidateTerms(terms *models.PartnershipTerms) error {
	if terms == nil {
		return fmt.Errorf("terms must not be nil")
	}
	if terms.AssetID == "" {
		return fmt.Errorf("terms asset id must not be empty")
	}

	seen := make(map[string]bool, len(terms.Partners))
	for _, p := range terms.Partners {
		if p.PartnerID == "" {
			return fmt.Errorf("partner id must not be empty")
		}
		if seen[p.PartnerID] {
			return fmt.Errorf("duplicate partner id %q", p.PartnerID)
		}
		seen[p.PartnerID] = true
		if p.PrePct.IsNegative() || p.PostPct.IsNegative() {
			return fmt.Errorf("partner %q has a negative percentage", p.PartnerID)
		}
		if p.CapitalContribution.IsNegative() {
			return fmt.Errorf("partner %q has a negative capital contribution", p.PartnerID)
		}
	}
	if terms.CompanyPrePct.IsNegative() || terms.CapitalPrePct.IsNegative() || terms.CompanyPostPct.IsNegative() {
		return fmt.Errorf("company and capital percentages must not be negative")
	}

	preSum := terms.CompanyPrePct.Add(terms.CapitalPrePct)
	postSum := terms.CompanyPostPct
	for _, p := range terms.Partners {
		preSum = preSum.Add(p.PrePct)
		postSum = postSum.Add(p.PostPct)
	}

	if dev := preSum.Sub(hundred); dev.Abs().GreaterThan(tolerance) {
		return &TermsError{Side: "recovery", Sum: preSum, Deviation: dev}
	}
	if dev := postSum.Sub(hundred); dev.Abs().GreaterThan(tolerance) {
		return &TermsError{Side: "profit", Sum: postSum, Deviation: dev}
	}
	return nil
}
