package models

import "github.com/shopspring/decimal"

// TransactionKind classifies a ledger entry.
type TransactionKind string

const (
	// KindRentalIncome credits a beneficiary with its share of a rent payment.
	KindRentalIncome TransactionKind = "rental_income"

	// KindCapitalDeduction routes part of a rent payment to the capital pool.
	KindCapitalDeduction TransactionKind = "capital_deduction"

	// KindWithdrawal records money actually paid out to a beneficiary.
	KindWithdrawal TransactionKind = "withdrawal"
)

// CapitalPoolBeneficiary marks ledger entries belonging to the capital pool
// rather than to the company or a named partner.
const CapitalPoolBeneficiary = "capital_pool"

// Transaction is one immutable, append-only ledger entry. Entries are never
// updated or deleted; reconciliation sums them across time.
type Transaction struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string `json:"id"`

	// AssetID is the shared asset this entry settles, empty for withdrawals
	// recorded against a beneficiary directly.
	AssetID string `json:"asset_id,omitempty"`

	// Beneficiary is the recipient: the company name, a partner id, or
	// CapitalPoolBeneficiary.
	Beneficiary string `json:"beneficiary"`

	// Amount is the entry amount. Always positive.
	Amount decimal.Decimal `json:"amount"`

	// Kind classifies the entry.
	Kind TransactionKind `json:"kind"`

	// ContractRef optionally annotates which rental contract produced the
	// entry. Opaque to the engine.
	ContractRef string `json:"contract_ref,omitempty"`

	// CreatedAt is the Unix timestamp when the entry was written.
	CreatedAt int64 `json:"created_at"`
}

// RentEvent is the input to a settlement: a rent payment received on a
// shared asset. It is transient and not itself persisted.
type RentEvent struct {
	// AssetID identifies the shared asset the rent was paid on.
	AssetID string

	// Amount is the rent payment. Must be positive.
	Amount decimal.Decimal

	// ContractRef optionally names the rental contract, for the audit trail.
	ContractRef string
}

// PartnerAmount is one partner's share of a single allocation.
type PartnerAmount struct {
	PartnerID string          `json:"partner_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// Allocation is the result of splitting one rent payment. It is the output
// of the pure calculator and the unit the ledger recorder persists.
type Allocation struct {
	// Phase is the phase the split was computed under.
	Phase Phase

	// CompanyAmount is the operating company's share.
	CompanyAmount decimal.Decimal

	// PartnerAmounts are the per-partner shares, in terms order.
	PartnerAmounts []PartnerAmount

	// CapitalDeduction is the amount routed to the capital pool. The full
	// computed deduction is reported even when the balance clamps at zero.
	CapitalDeduction decimal.Decimal

	// NewCapitalRemaining is the capital balance after this settlement,
	// clamped at zero.
	NewCapitalRemaining decimal.Decimal
}

// RentalRecord is the audit-trail row written alongside a settlement,
// capturing the applied rent and the phase it was settled under.
type RentalRecord struct {
	// ID is the unique identifier for the record (UUID format).
	ID string `json:"id"`

	// AssetID is the settled asset.
	AssetID string `json:"asset_id"`

	// ContractRef optionally names the rental contract.
	ContractRef string `json:"contract_ref,omitempty"`

	// Amount is the full rent payment that was split.
	Amount decimal.Decimal `json:"amount"`

	// Phase is the phase the settlement ran under, recorded as an
	// annotation only; phase is always re-derived from the balance.
	Phase Phase `json:"phase"`

	// CreatedAt is the Unix timestamp when the settlement committed.
	CreatedAt int64 `json:"created_at"`
}

// BeneficiarySummary aggregates a beneficiary's ledger position.
type BeneficiarySummary struct {
	// Beneficiary is the company name, a partner id, or the capital pool.
	Beneficiary string

	// TotalDue is the sum of all rental-income entries.
	TotalDue decimal.Decimal

	// TotalPaid is the sum of all withdrawal entries.
	TotalPaid decimal.Decimal
}

// Outstanding returns how much the beneficiary is still owed.
func (s BeneficiarySummary) Outstanding() decimal.Decimal {
	return s.TotalDue.Sub(s.TotalPaid)
}
