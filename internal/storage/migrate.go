package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// schema creates the tables the engine reads and writes. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id         TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		title      TEXT NOT NULL DEFAULT '',
		base_price NUMERIC(12, 2) NOT NULL CHECK (base_price >= 0),
		quantity   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS bids (
		id               TEXT PRIMARY KEY,
		product_id       TEXT NOT NULL REFERENCES products (id),
		bidder_id        TEXT NOT NULL,
		amount           NUMERIC(12, 2) NOT NULL CHECK (amount > 0),
		status           TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'rejected', 'outbid')),
		rejection_reason TEXT,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS bids_one_accepted_per_lot
		ON bids (product_id) WHERE status = 'accepted'`,
	`CREATE INDEX IF NOT EXISTS bids_bidder_created_at ON bids (bidder_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS bids_product_created_at ON bids (product_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		type         TEXT NOT NULL,
		title        TEXT NOT NULL,
		message      TEXT NOT NULL,
		reference_id TEXT,
		read         BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_created_at ON notifications (user_id, created_at DESC)`,
}

// Migrate creates the schema if it does not exist.
func (p *PostgresStorage) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		_, err := p.db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	p.logger.Info("schema-migrated", zap.Int("statements", len(schema)))
	return nil
}
