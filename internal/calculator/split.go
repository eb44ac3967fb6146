// Package calculator implements the pure settlement arithmetic: terms
// validation, phase resolution, and the rent split itself. Nothing in this
// package performs I/O or mutates state, so a failed settlement can always
// be recomputed from freshly loaded state.
package calculator

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/alfares/partnersplit/internal/models"
)

// ErrInvalidAmount is returned when a rent amount is zero or negative.
var ErrInvalidAmount = errors.New("rent amount must be positive")

var (
	hundred = decimal.NewFromInt(100)

	// tolerance bounds the accepted rounding error on percentage sums and
	// on the conservation post-condition.
	tolerance = decimal.NewFromFloat(0.01)
)

// ResolvePhase derives the asset's phase from its capital balance. This is
// the only phase-decision point in the system and it is re-evaluated on
// every call: a rent that exactly exhausts the remaining capital flips the
// phase for the next settlement, not the current one.
func ResolvePhase(capitalRemaining decimal.Decimal) models.Phase {
	if capitalRemaining.IsPositive() {
		return models.PhaseRecovery
	}
	return models.PhaseProfitSharing
}

// ComputeSplit maps one rent payment to an allocation under the asset's
// current phase.
//
// The terms are validated before any arithmetic runs; invalid terms fail
// with *TermsError and nothing is partially computed. In the recovery phase
// the new capital balance is clamped at zero even when the computed
// deduction exceeds the remaining balance; the unconsumed portion of the
// deduction is not redistributed (carried over from the observed behavior
// of the system this replaces, flagged in DESIGN.md).
func ComputeSplit(terms *models.PartnershipTerms, account *models.CapitalAccount, rentAmount decimal.Decimal) (*models.Allocation, error) {
	if err := ValidateTerms(terms); err != nil {
		return nil, err
	}
	if !rentAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	phase := ResolvePhase(account.CapitalRemaining)
	alloc := &models.Allocation{
		Phase:          phase,
		PartnerAmounts: make([]models.PartnerAmount, len(terms.Partners)),
	}

	switch phase {
	case models.PhaseRecovery:
		alloc.CompanyAmount = share(rentAmount, terms.CompanyPrePct)
		for i, p := range terms.Partners {
			alloc.PartnerAmounts[i] = models.PartnerAmount{
				PartnerID: p.PartnerID,
				Amount:    share(rentAmount, p.PrePct),
			}
		}
		alloc.CapitalDeduction = share(rentAmount, terms.CapitalPrePct)
		alloc.NewCapitalRemaining = account.CapitalRemaining.Sub(alloc.CapitalDeduction)
		if alloc.NewCapitalRemaining.IsNegative() {
			alloc.NewCapitalRemaining = decimal.Zero
		}

	case models.PhaseProfitSharing:
		alloc.CompanyAmount = share(rentAmount, terms.CompanyPostPct)
		for i, p := range terms.Partners {
			alloc.PartnerAmounts[i] = models.PartnerAmount{
				PartnerID: p.PartnerID,
				Amount:    share(rentAmount, p.PostPct),
			}
		}
		alloc.CapitalDeduction = decimal.Zero
		alloc.NewCapitalRemaining = decimal.Zero
	}

	return alloc, nil
}

// share computes amount * pct/100.
func share(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// AllocatedTotal sums everything the allocation distributes: company share,
// partner shares, and the capital deduction. For a valid allocation it
// reconciles with the rent amount within the rounding tolerance.
func AllocatedTotal(alloc *models.Allocation) decimal.Decimal {
	total := alloc.CompanyAmount.Add(alloc.CapitalDeduction)
	for _, pa := range alloc.PartnerAmounts {
		total = total.Add(pa.Amount)
	}
	return total
}
