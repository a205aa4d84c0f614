package db

import (
	"context"

	"github.com/adit-m/paisabot/internal/payment"
)

// RecordPayment appends an accepted settle-share payment to the audit log.
func (db *DB) RecordPayment(ctx context.Context, p *payment.Payment) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO payments (id, order_id, from_user, to_user, amount, currency, status, memo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.OrderID, p.From, p.To, p.Amount.StringFixed(2), p.Currency, p.Status, p.Memo, p.CreatedAt,
	)
	return err
}
