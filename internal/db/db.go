// Package db implements the ledger, session, identity and payment stores on
// PostgreSQL via pgx.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// RunMigrations runs database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS user_numbers (
			number TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_user_numbers_user_id ON user_numbers(user_id);

		CREATE TABLE IF NOT EXISTS expenses (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
			description TEXT NOT NULL,
			category TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_expenses_user_id ON expenses(user_id);

		CREATE TABLE IF NOT EXISTS groups (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS group_members (
			group_id BIGINT NOT NULL REFERENCES groups(id),
			position INT NOT NULL,
			member TEXT NOT NULL,
			PRIMARY KEY (group_id, member)
		);

		CREATE TABLE IF NOT EXISTS group_expenses (
			id BIGSERIAL PRIMARY KEY,
			group_id BIGINT NOT NULL REFERENCES groups(id),
			amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
			description TEXT NOT NULL,
			category TEXT NOT NULL,
			payer TEXT NOT NULL,
			recorded_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_group_expenses_group_id ON group_expenses(group_id);

		CREATE TABLE IF NOT EXISTS budgets (
			user_id TEXT NOT NULL,
			category TEXT NOT NULL,
			cap NUMERIC(12,2) NOT NULL,
			PRIMARY KEY (user_id, category)
		);

		CREATE TABLE IF NOT EXISTS sessions (
			user_id TEXT PRIMARY KEY,
			state TEXT NOT NULL DEFAULT '',
			scratch JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			from_user TEXT NOT NULL,
			to_user TEXT NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			memo TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}
