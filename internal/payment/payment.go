// Package payment abstracts the settlement of a member's share. The real
// gateway integration lives elsewhere; this module ships a mock that mints
// captured payments and logs them, matching the product's test mode.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/adit-m/paisabot/internal/ledger"
)

// Payment is the record of one settle-share transfer.
type Payment struct {
	ID        string
	OrderID   string
	From      string
	To        string
	Amount    decimal.Decimal
	Currency  string
	Status    string
	Memo      string
	CreatedAt time.Time
}

// Gateway initiates a transfer of amount from payer to payee. Verification of
// the money movement is not this core's job; a nil error means the gateway
// accepted the payment.
type Gateway interface {
	SettleShare(ctx context.Context, payer, payee string, amount decimal.Decimal, memo string) (*Payment, error)
}

// Recorder persists accepted payments for auditing. Optional.
type Recorder interface {
	RecordPayment(ctx context.Context, p *Payment) error
}

// MockGateway accepts every payment and stamps it captured. Ids carry a
// mock_ prefix so downstream verification can short-circuit.
type MockGateway struct {
	log      *logrus.Logger
	recorder Recorder

	now func() time.Time
}

func NewMockGateway(log *logrus.Logger, recorder Recorder) *MockGateway {
	return &MockGateway{log: log, recorder: recorder, now: time.Now}
}

func (g *MockGateway) SettleShare(ctx context.Context, payer, payee string, amount decimal.Decimal, memo string) (*Payment, error) {
	now := g.now()
	stamp := now.UTC().Format("20060102150405")
	user := ledger.NormalizeNumber(payer)
	p := &Payment{
		ID:        fmt.Sprintf("mock_pay_%s_%s", stamp, user),
		OrderID:   fmt.Sprintf("mock_order_%s_%s", stamp, uuid.NewString()[:8]),
		From:      user,
		To:        ledger.NormalizeNumber(payee),
		Amount:    amount,
		Currency:  "INR",
		Status:    "captured",
		Memo:      memo,
		CreatedAt: now,
	}
	g.log.WithFields(logrus.Fields{
		"payment": p.ID,
		"from":    p.From,
		"to":      p.To,
		"amount":  amount.StringFixed(2),
	}).Info("mock payment captured")

	if g.recorder != nil {
		if err := g.recorder.RecordPayment(ctx, p); err != nil {
			return nil, fmt.Errorf("record payment: %w", err)
		}
	}
	return p, nil
}
