// Package models defines the core domain types for the partnership
// settlement engine.
//
// # Core Types
//
//   - PartnershipTerms: per-asset percentage configuration, per phase
//   - CapitalAccount: per-asset capital total and running remaining balance
//   - Transaction: immutable append-only ledger entry
//   - RentEvent / Allocation: input and output of one settlement
//
// # Supporting Types
//
//   - Partner: the partner company registry
//   - RentalRecord: audit trail of applied rents
//   - BeneficiarySummary: aggregated ledger position per beneficiary
//
// # Design Principles
//
//  1. **Money is decimal**: all amounts and percentages are
//     shopspring/decimal values, never floats
//  2. **Phase is derived**: Phase is computed from CapitalRemaining on every
//     settlement, never stored
//  3. **Ledger is append-only**: Transactions are immutable once written;
//     balances are reconstructed by summing them
//  4. **Avoid circular references**: types reference each other by ID string
package models
