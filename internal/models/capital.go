package models

import "github.com/shopspring/decimal"

// Phase is the lifecycle stage of a shared asset. It is always derived from
// the capital balance and never persisted, so a stored flag can never drift
// from the actual balance.
type Phase string

const (
	// PhaseRecovery applies while contributed capital has not been fully
	// recouped from rental income (CapitalRemaining > 0).
	PhaseRecovery Phase = "recovery"

	// PhaseProfitSharing applies once capital is fully recovered; all income
	// is split as profit.
	PhaseProfitSharing Phase = "profit_sharing"
)

// CapitalAccount tracks the contributed capital for one shared asset.
type CapitalAccount struct {
	// AssetID identifies the shared asset.
	AssetID string

	// CapitalTotal is the total contributed capital. Fixed once the asset
	// enters partnership.
	CapitalTotal decimal.Decimal

	// CapitalRemaining is the portion not yet recovered from rent.
	// 0 <= CapitalRemaining <= CapitalTotal. Settlement only ever
	// decreases it.
	CapitalRemaining decimal.Decimal

	// Version is the optimistic-concurrency token. Every settlement commit
	// increments it; a commit against a stale version is rejected.
	Version int64
}

// RecoveredPct returns the recovery progress as a 0-100 percentage,
// rounded to the nearest whole number. A zero-capital account reports 0.
func (a *CapitalAccount) RecoveredPct() decimal.Decimal {
	if !a.CapitalTotal.IsPositive() {
		return decimal.Zero
	}
	recovered := a.CapitalTotal.Sub(a.CapitalRemaining)
	return recovered.Div(a.CapitalTotal).Mul(decimal.NewFromInt(100)).Round(0)
}
