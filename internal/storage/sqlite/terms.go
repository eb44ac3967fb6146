package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alfares/partnersplit/internal/models"
	"github.com/alfares/partnersplit/internal/storage"
)

// SaveTerms replaces the asset's partnership configuration in one
// transaction: terms row, partner share rows, and the capital account.
// A new asset gets an account funded with the partners' contributions; an
// existing asset keeps its recovered progress, with the remaining balance
// capped at the new total.
func (s *Store) SaveTerms(ctx context.Context, terms *models.PartnershipTerms) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO partnership_terms (asset_id, company_pre_pct, capital_pre_pct, company_post_pct)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(asset_id) DO UPDATE SET
		   company_pre_pct = excluded.company_pre_pct,
		   capital_pre_pct = excluded.capital_pre_pct,
		   company_post_pct = excluded.company_post_pct`,
		terms.AssetID, terms.CompanyPrePct.String(), terms.CapitalPrePct.String(), terms.CompanyPostPct.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert terms: %w", err)
	}

	// Partner links are replaced wholesale; the set and order come from the
	// configuration surface.
	if _, err := tx.ExecContext(ctx, "DELETE FROM partner_shares WHERE asset_id = ?", terms.AssetID); err != nil {
		return fmt.Errorf("failed to clear partner shares: %w", err)
	}
	for i, p := range terms.Partners {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO partner_shares (asset_id, partner_id, position, pre_pct, post_pct, capital_contribution)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			terms.AssetID, p.PartnerID, i, p.PrePct.String(), p.PostPct.String(), p.CapitalContribution.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert partner share: %w", err)
		}
	}

	total := terms.TotalCapital()
	var remaining string
	err = tx.QueryRowContext(ctx,
		"SELECT capital_remaining FROM capital_accounts WHERE asset_id = ?", terms.AssetID,
	).Scan(&remaining)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			"INSERT INTO capital_accounts (asset_id, capital_total, capital_remaining, version) VALUES (?, ?, ?, 0)",
			terms.AssetID, total.String(), total.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to create capital account: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read capital account: %w", err)
	default:
		rem, err := scanDecimal(remaining)
		if err != nil {
			return err
		}
		if rem.GreaterThan(total) {
			rem = total
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE capital_accounts SET capital_total = ?, capital_remaining = ? WHERE asset_id = ?",
			total.String(), rem.String(), terms.AssetID,
		)
		if err != nil {
			return fmt.Errorf("failed to update capital account: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTerms retrieves an asset's terms including its partner shares.
func (s *Store) GetTerms(ctx context.Context, assetID string) (*models.PartnershipTerms, error) {
	terms := &models.PartnershipTerms{AssetID: assetID}
	var companyPre, capitalPre, companyPost string

	err := s.db.QueryRowContext(ctx,
		"SELECT company_pre_pct, capital_pre_pct, company_post_pct FROM partnership_terms WHERE asset_id = ?",
		assetID,
	).Scan(&companyPre, &capitalPre, &companyPost)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get terms: %w", err)
	}

	if terms.CompanyPrePct, err = scanDecimal(companyPre); err != nil {
		return nil, err
	}
	if terms.CapitalPrePct, err = scanDecimal(capitalPre); err != nil {
		return nil, err
	}
	if terms.CompanyPostPct, err = scanDecimal(companyPost); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT partner_id, pre_pct, post_pct, capital_contribution
		 FROM partner_shares WHERE asset_id = ? ORDER BY position`,
		assetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner shares: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var share models.PartnerShare
		var pre, post, capital string
		if err := rows.Scan(&share.PartnerID, &pre, &post, &capital); err != nil {
			return nil, fmt.Errorf("failed to scan partner share: %w", err)
		}
		if share.PrePct, err = scanDecimal(pre); err != nil {
			return nil, err
		}
		if share.PostPct, err = scanDecimal(post); err != nil {
			return nil, err
		}
		if share.CapitalContribution, err = scanDecimal(capital); err != nil {
			return nil, err
		}
		terms.Partners = append(terms.Partners, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate partner shares: %w", err)
	}

	return terms, nil
}

// GetCapitalAccount retrieves an asset's capital account with its version.
func (s *Store) GetCapitalAccount(ctx context.Context, assetID string) (*models.CapitalAccount, error) {
	account := &models.CapitalAccount{AssetID: assetID}
	var total, remaining string

	err := s.db.QueryRowContext(ctx,
		"SELECT capital_total, capital_remaining, version FROM capital_accounts WHERE asset_id = ?",
		assetID,
	).Scan(&total, &remaining, &account.Version)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capital account: %w", err)
	}

	if account.CapitalTotal, err = scanDecimal(total); err != nil {
		return nil, err
	}
	if account.CapitalRemaining, err = scanDecimal(remaining); err != nil {
		return nil, err
	}
	return account, nil
}

// RemoveFromPartnership deletes the asset's configuration. The capital
// account stays so re-entering the partnership resumes recovery where it
// left off, and ledger entries and rental history stay as the audit trail.
func (s *Store) RemoveFromPartnership(ctx context.Context, assetID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM partnership_terms WHERE asset_id = ?", assetID)
	if err != nil {
		return fmt.Errorf("failed to delete terms: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
