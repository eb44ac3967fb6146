package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alfares/partnersplit/internal/models"
	"github.com/alfares/partnersplit/internal/storage"
)

// CreatePartner registers a partner company.
func (s *Store) CreatePartner(ctx context.Context, partner *models.Partner) error {
	if partner.ID == "" {
		partner.ID = uuid.New().String()
	}
	if partner.CreatedAt == 0 {
		partner.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO partners (id, name, phone, default_pre_pct, default_post_pct, default_capital, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		partner.ID, partner.Name, nullable(partner.Phone),
		partner.DefaultPrePct.String(), partner.DefaultPostPct.String(), partner.DefaultCapital.String(),
		partner.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert partner: %w", err)
	}
	return nil
}

// GetPartner retrieves a partner by ID.
func (s *Store) GetPartner(ctx context.Context, partnerID string) (*models.Partner, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone, default_pre_pct, default_post_pct, default_capital, created_at
		 FROM partners WHERE id = ?`,
		partnerID,
	)
	partner, err := scanPartner(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}
	return partner, nil
}

// ListPartners returns all registered partners ordered by name.
func (s *Store) ListPartners(ctx context.Context) ([]*models.Partner, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone, default_pre_pct, default_post_pct, default_capital, created_at
		 FROM partners ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	defer rows.Close()

	var partners []*models.Partner
	for rows.Next() {
		partner, err := scanPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan partner: %w", err)
		}
		partners = append(partners, partner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate partners: %w", err)
	}

	return partners, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPartner(row rowScanner) (*models.Partner, error) {
	partner := &models.Partner{}
	var phone sql.NullString
	var pre, post, capital string
	if err := row.Scan(&partner.ID, &partner.Name, &phone, &pre, &post, &capital, &partner.CreatedAt); err != nil {
		return nil, err
	}
	partner.Phone = phone.String

	var err error
	if partner.DefaultPrePct, err = scanDecimal(pre); err != nil {
		return nil, err
	}
	if partner.DefaultPostPct, err = scanDecimal(post); err != nil {
		return nil, err
	}
	if partner.DefaultCapital, err = scanDecimal(capital); err != nil {
		return nil, err
	}
	return partner, nil
}
