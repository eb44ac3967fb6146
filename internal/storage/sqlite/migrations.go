package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Amounts and percentages are stored as TEXT holding decimal strings so no
// precision is lost round-tripping through the database.
const schema = `
CREATE TABLE IF NOT EXISTS partners (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    phone TEXT,
    default_pre_pct TEXT NOT NULL,
    default_post_pct TEXT NOT NULL,
    default_capital TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS partnership_terms (
    asset_id TEXT PRIMARY KEY,
    company_pre_pct TEXT NOT NULL,
    capital_pre_pct TEXT NOT NULL,
    company_post_pct TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS partner_shares (
    asset_id TEXT NOT NULL,
    partner_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    pre_pct TEXT NOT NULL,
    post_pct TEXT NOT NULL,
    capital_contribution TEXT NOT NULL,
    PRIMARY KEY (asset_id, partner_id),
    FOREIGN KEY (asset_id) REFERENCES partnership_terms(asset_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS capital_accounts (
    asset_id TEXT PRIMARY KEY,
    capital_total TEXT NOT NULL,
    capital_remaining TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    asset_id TEXT,
    beneficiary TEXT NOT NULL,
    amount TEXT NOT NULL,
    kind TEXT NOT NULL,
    contract_ref TEXT,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rental_history (
    id TEXT PRIMARY KEY,
    asset_id TEXT NOT NULL,
    contract_ref TEXT,
    amount TEXT NOT NULL,
    phase TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_partner_shares_asset_id ON partner_shares(asset_id);
CREATE INDEX IF NOT EXISTS idx_transactions_asset_id ON transactions(asset_id);
CREATE INDEX IF NOT EXISTS idx_transactions_beneficiary ON transactions(beneficiary);
CREATE INDEX IF NOT EXISTS idx_rental_history_asset_id ON rental_history(asset_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
