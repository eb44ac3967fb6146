package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alfares/partnersplit/internal/models"
	"github.com/alfares/partnersplit/internal/storage"
)

// CommitSettlement applies one settlement atomically: ledger entries,
// rental record, and the new capital balance. The balance update is guarded
// by the account version; if another settlement committed in between, the
// whole transaction rolls back with storage.ErrVersionConflict.
func (s *Store) CommitSettlement(ctx context.Context, assetID string, txs []models.Transaction, record *models.RentalRecord, newRemaining decimal.Decimal, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Version check first, so a conflicting settlement fails before any
	// ledger rows are written.
	res, err := tx.ExecContext(ctx,
		`UPDATE capital_accounts SET capital_remaining = ?, version = version + 1
		 WHERE asset_id = ? AND version = ?`,
		newRemaining.String(), assetID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update capital balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrVersionConflict
	}

	now := time.Now().Unix()
	for i := range txs {
		entry := &txs[i]
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		if entry.CreatedAt == 0 {
			entry.CreatedAt = now
		}
		if err := insertTransaction(ctx, tx, entry); err != nil {
			return err
		}
	}

	if record != nil {
		if record.ID == "" {
			record.ID = uuid.New().String()
		}
		if record.CreatedAt == 0 {
			record.CreatedAt = now
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rental_history (id, asset_id, contract_ref, amount, phase, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			record.ID, record.AssetID, nullable(record.ContractRef), record.Amount.String(), string(record.Phase), record.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rental record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}
	return nil
}

// RecordWithdrawal appends a single withdrawal ledger entry.
func (s *Store) RecordWithdrawal(ctx context.Context, entry *models.Transaction) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTransaction(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withdrawal: %w", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, entry *models.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, asset_id, beneficiary, amount, kind, contract_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, nullable(entry.AssetID), entry.Beneficiary, entry.Amount.String(),
		string(entry.Kind), nullable(entry.ContractRef), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// SummarizeBeneficiary sums the beneficiary's rental income and withdrawals.
// A beneficiary with no ledger entries summarizes to zero, not to an error.
func (s *Store) SummarizeBeneficiary(ctx context.Context, beneficiary string) (*models.BeneficiarySummary, error) {
	summary := &models.BeneficiarySummary{
		Beneficiary: beneficiary,
		TotalDue:    decimal.Zero,
		TotalPaid:   decimal.Zero,
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, amount FROM transactions WHERE beneficiary = ?",
		beneficiary,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize beneficiary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, raw string
		if err := rows.Scan(&kind, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		amount, err := scanDecimal(raw)
		if err != nil {
			return nil, err
		}
		switch models.TransactionKind(kind) {
		case models.KindRentalIncome:
			summary.TotalDue = summary.TotalDue.Add(amount)
		case models.KindWithdrawal:
			summary.TotalPaid = summary.TotalPaid.Add(amount)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return summary, nil
}

// ListTransactions returns an asset's ledger entries, newest first.
func (s *Store) ListTransactions(ctx context.Context, assetID string) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, asset_id, beneficiary, amount, kind, contract_ref, created_at
		 FROM transactions WHERE asset_id = ? ORDER BY created_at DESC, id`,
		assetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var entries []*models.Transaction
	for rows.Next() {
		entry := &models.Transaction{}
		var asset, contractRef sql.NullString
		var raw string
		if err := rows.Scan(&entry.ID, &asset, &entry.Beneficiary, &raw, &entry.Kind, &contractRef, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if entry.Amount, err = scanDecimal(raw); err != nil {
			return nil, err
		}
		entry.AssetID = asset.String
		entry.ContractRef = contractRef.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return entries, nil
}

// ListRentalHistory returns an asset's applied-rent records, newest first.
func (s *Store) ListRentalHistory(ctx context.Context, assetID string) ([]*models.RentalRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, asset_id, contract_ref, amount, phase, created_at
		 FROM rental_history WHERE asset_id = ? ORDER BY created_at DESC, id`,
		assetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rental history: %w", err)
	}
	defer rows.Close()

	var records []*models.RentalRecord
	for rows.Next() {
		record := &models.RentalRecord{}
		var contractRef sql.NullString
		var raw, phase string
		if err := rows.Scan(&record.ID, &record.AssetID, &contractRef, &raw, &phase, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rental record: %w", err)
		}
		if record.Amount, err = scanDecimal(raw); err != nil {
			return nil, err
		}
		record.ContractRef = contractRef.String
		record.Phase = models.Phase(phase)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rental history: %w", err)
	}

	return records, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
