package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the persistence contract the dialog machine runs against.
// Expenses are append-only; there are no update or delete operations.
type Store interface {
	// Personal scope.
	AddExpense(ctx context.Context, userID string, e Expense) error
	Expenses(ctx context.Context, userID string) ([]Expense, error)

	// Group scope.
	CreateGroup(ctx context.Context, name string, members []string) (*Group, error)
	GroupByName(ctx context.Context, name string) (*Group, error)
	GroupsFor(ctx context.Context, userID string) ([]Group, error)
	AddGroupExpense(ctx context.Context, groupName string, e Expense) error

	// Budgets: a full-replace mapping of category to monthly cap.
	SetBudget(ctx context.Context, userID string, caps map[string]decimal.Decimal) error
	Budget(ctx context.Context, userID string) (map[string]decimal.Decimal, error)

	// MonthlyUsage totals the user's spending per category for the calendar
	// month containing at: personal expenses plus an equal share of every
	// group expense in groups the user belongs to.
	MonthlyUsage(ctx context.Context, userID string, at time.Time) (map[string]decimal.Decimal, error)
}

// SameMonth reports whether t falls in the calendar month containing at.
func SameMonth(t, at time.Time) bool {
	return t.Year() == at.Year() && t.Month() == at.Month()
}
