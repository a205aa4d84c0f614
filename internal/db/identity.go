package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/adit-m/paisabot/internal/ledger"
)

// ResolveIdentity collapses a raw channel sender token to one canonical user
// id. The first number seen for a person becomes their id; alternate numbers
// linked later resolve to it. Idempotent.
func (db *DB) ResolveIdentity(ctx context.Context, raw string) (string, error) {
	number := ledger.NormalizeNumber(raw)

	var userID string
	err := db.pool.QueryRow(ctx,
		"SELECT user_id FROM user_numbers WHERE number = $1", number,
	).Scan(&userID)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	// First contact from this number: it becomes its own canonical id.
	// ON CONFLICT covers the concurrent-first-message race.
	err = db.pool.QueryRow(ctx, `
		INSERT INTO user_numbers (number, user_id) VALUES ($1, $1)
		ON CONFLICT (number) DO UPDATE SET user_id = user_numbers.user_id
		RETURNING user_id`,
		number,
	).Scan(&userID)
	return userID, err
}

// AddPhone links an alternate number to an existing identity, so messages
// from either resolve to the same account.
func (db *DB) AddPhone(ctx context.Context, userID, raw string) error {
	_, err := db.pool.Exec(ctx,
		"INSERT INTO user_numbers (number, user_id) VALUES ($1, $2) ON CONFLICT (number) DO NOTHING",
		ledger.NormalizeNumber(raw), userID,
	)
	return err
}
