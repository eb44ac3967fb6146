// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/alfares/partnersplit/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned by CommitSettlement when the capital
// account was modified since it was loaded. The settlement was not applied;
// the caller may safely reload and recompute.
var ErrVersionConflict = errors.New("capital account version conflict")

// Store defines the interface for settlement storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// etc.) without changing the engine.
type Store interface {
	// SaveTerms persists the partnership terms for an asset, replacing any
	// previous configuration, and creates the asset's capital account from
	// the partners' contributions if one does not exist yet. Callers must
	// validate the terms first; the store does not.
	SaveTerms(ctx context.Context, terms *models.PartnershipTerms) error

	// GetTerms retrieves the terms for an asset.
	// Returns ErrNotFound if the asset has no partnership configuration.
	GetTerms(ctx context.Context, assetID string) (*models.PartnershipTerms, error)

	// GetCapitalAccount retrieves the capital account for an asset,
	// including its current version token.
	// Returns ErrNotFound if the asset has no capital account.
	GetCapitalAccount(ctx context.Context, assetID string) (*models.CapitalAccount, error)

	// RemoveFromPartnership deletes the asset's terms and capital account.
	// The ledger is kept; it is append-only history.
	RemoveFromPartnership(ctx context.Context, assetID string) error

	// CommitSettlement applies one settlement as a single atomic unit:
	// appends the ledger entries and the rental record, and writes the new
	// capital balance. The write only succeeds if the capital account still
	// has expectedVersion; otherwise nothing is applied and
	// ErrVersionConflict is returned.
	CommitSettlement(ctx context.Context, assetID string, txs []models.Transaction, record *models.RentalRecord, newRemaining decimal.Decimal, expectedVersion int64) error

	// RecordWithdrawal appends a withdrawal ledger entry for a beneficiary.
	RecordWithdrawal(ctx context.Context, tx *models.Transaction) error

	// SummarizeBeneficiary aggregates the beneficiary's ledger: total due
	// (rental income) and total paid out (withdrawals).
	SummarizeBeneficiary(ctx context.Context, beneficiary string) (*models.BeneficiarySummary, error)

	// ListTransactions returns an asset's ledger entries, newest first.
	ListTransactions(ctx context.Context, assetID string) ([]*models.Transaction, error)

	// ListRentalHistory returns an asset's applied-rent records, newest first.
	ListRentalHistory(ctx context.Context, assetID string) ([]*models.RentalRecord, error)

	// CreatePartner registers a partner company.
	// The partner.ID field will be populated by the store if empty.
	CreatePartner(ctx context.Context, partner *models.Partner) error

	// GetPartner retrieves a partner by ID.
	// Returns ErrNotFound if the partner does not exist.
	GetPartner(ctx context.Context, partnerID string) (*models.Partner, error)

	// ListPartners returns all registered partners ordered by name.
	ListPartners(ctx context.Context) ([]*models.Partner, error)

	// Close releases any resources held by the store.
	Close() error
}
