package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Sriram-PR/card-directory/pkg/utils"
)

// schema is applied in order; every statement is idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS cards (
		id              INTEGER PRIMARY KEY,
		name            TEXT NOT NULL,
		description     TEXT,
		website         TEXT,
		tel             TEXT,
		email           TEXT,
		address         TEXT,
		qr_code         TEXT,
		category        TEXT,
		search_keywords TEXT,
		status          TEXT NOT NULL DEFAULT 'published',
		last_updated    TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_website ON cards (website)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_name ON cards (name)`,
	`CREATE TABLE IF NOT EXISTS error_feedback (
		feedback_id  SERIAL PRIMARY KEY,
		card_id      INTEGER REFERENCES cards(id) ON DELETE SET NULL,
		content      TEXT NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		status       TEXT NOT NULL DEFAULT 'new',
		processed_by TEXT,
		processed_at TIMESTAMPTZ,
		resolution   TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_error_feedback_submitted_at ON error_feedback (submitted_at DESC)`,
}

// Migrate creates the directory tables if they do not exist
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migration step %d: %w", utils.ErrDatabase, i+1, err)
		}
	}
	return nil
}
