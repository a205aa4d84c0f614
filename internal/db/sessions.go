package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/adit-m/paisabot/internal/dialog"
)

// Get returns the stored session, or a fresh zero session for a user we have
// never seen. Sessions are last-write-wins; retried deliveries may race and
// the newest Put stands.
func (db *DB) Get(ctx context.Context, userID string) (dialog.Session, error) {
	var state string
	var scratch []byte
	err := db.pool.QueryRow(ctx,
		"SELECT state, scratch FROM sessions WHERE user_id = $1", userID,
	).Scan(&state, &scratch)
	if errors.Is(err, pgx.ErrNoRows) {
		return dialog.Session{}, nil
	}
	if err != nil {
		return dialog.Session{}, err
	}

	s := dialog.Session{State: dialog.State(state)}
	if len(scratch) > 0 {
		if err := json.Unmarshal(scratch, &s.Scratch); err != nil {
			return dialog.Session{}, fmt.Errorf("bad scratch for %s: %w", userID, err)
		}
	}
	return s, nil
}

func (db *DB) Put(ctx context.Context, userID string, s dialog.Session) error {
	scratch := s.Scratch
	if scratch == nil {
		scratch = map[string]string{}
	}
	raw, err := json.Marshal(scratch)
	if err != nil {
		return err
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO sessions (user_id, state, scratch, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET state = EXCLUDED.state, scratch = EXCLUDED.scratch, updated_at = now()`,
		userID, string(s.State), raw,
	)
	return err
}
