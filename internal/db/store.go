package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/adit-m/paisabot/internal/ledger"
)

// Amounts travel as text on the wire; NUMERIC(12,2) keeps them exact in the
// database and decimal keeps them exact in the process.

func (db *DB) AddExpense(ctx context.Context, userID string, e ledger.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := db.pool.Exec(ctx,
		"INSERT INTO expenses (user_id, amount, description, category, created_at) VALUES ($1, $2, $3, $4, $5)",
		userID, e.Amount.StringFixed(2), e.Description, e.Category, e.At,
	)
	return err
}

func (db *DB) Expenses(ctx context.Context, userID string) ([]ledger.Expense, error) {
	rows, err := db.pool.Query(ctx,
		"SELECT amount::text, description, category, created_at FROM expenses WHERE user_id = $1 ORDER BY id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []ledger.Expense
	for rows.Next() {
		var amount string
		e := ledger.Expense{Payer: userID, RecordedBy: userID}
		if err := rows.Scan(&amount, &e.Description, &e.Category, &e.At); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad amount in expenses row: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (db *DB) CreateGroup(ctx context.Context, name string, members []string) (*ledger.Group, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: a group needs at least one member", ledger.ErrValidation)
	}
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, "INSERT INTO groups (name) VALUES ($1) RETURNING id", name).Scan(&id)
	if isUniqueViolation(err) {
		return nil, ledger.ErrNameTaken
	}
	if err != nil {
		return nil, err
	}
	for i, m := range members {
		if _, err := tx.Exec(ctx,
			"INSERT INTO group_members (group_id, position, member) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
			id, i, m,
		); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &ledger.Group{Name: name, Members: append([]string(nil), members...)}, nil
}

func (db *DB) GroupByName(ctx context.Context, name string) (*ledger.Group, error) {
	var id int64
	err := db.pool.QueryRow(ctx, "SELECT id FROM groups WHERE name = $1", name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return db.loadGroup(ctx, id, name)
}

func (db *DB) GroupsFor(ctx context.Context, userID string) ([]ledger.Group, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT DISTINCT g.id, g.name FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE regexp_replace(m.member, '[^0-9]', '', 'g') = $1
		ORDER BY g.id`,
		ledger.NormalizeNumber(userID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type ref struct {
		id   int64
		name string
	}
	var refs []ref
	for rows.Next() {
		var r ref
		if err := rows.Scan(&r.id, &r.name); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var groups []ledger.Group
	for _, r := range refs {
		g, err := db.loadGroup(ctx, r.id, r.name)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, nil
}

func (db *DB) AddGroupExpense(ctx context.Context, groupName string, e ledger.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	g, err := db.GroupByName(ctx, groupName)
	if err != nil {
		return err
	}
	if !g.HasMember(e.Payer) || !g.HasMember(e.RecordedBy) {
		return ledger.ErrNotMember
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO group_expenses (group_id, amount, description, category, payer, recorded_by, created_at)
		SELECT id, $2, $3, $4, $5, $6, $7 FROM groups WHERE name = $1`,
		groupName, e.Amount.StringFixed(2), e.Description, e.Category, e.Payer, e.RecordedBy, e.At,
	)
	return err
}

func (db *DB) SetBudget(ctx context.Context, userID string, caps map[string]decimal.Decimal) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Full replace: the new mapping supersedes whatever was there.
	if _, err := tx.Exec(ctx, "DELETE FROM budgets WHERE user_id = $1", userID); err != nil {
		return err
	}
	for cat, limit := range caps {
		if _, err := tx.Exec(ctx,
			"INSERT INTO budgets (user_id, category, cap) VALUES ($1, lower($2), $3)",
			userID, cat, limit.StringFixed(2),
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (db *DB) Budget(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	rows, err := db.pool.Query(ctx,
		"SELECT category, cap::text FROM budgets WHERE user_id = $1", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	caps := make(map[string]decimal.Decimal)
	for rows.Next() {
		var cat, limit string
		if err := rows.Scan(&cat, &limit); err != nil {
			return nil, err
		}
		if caps[cat], err = decimal.NewFromString(limit); err != nil {
			return nil, fmt.Errorf("bad amount in budgets row: %w", err)
		}
	}
	return caps, rows.Err()
}

func (db *DB) MonthlyUsage(ctx context.Context, userID string, at time.Time) (map[string]decimal.Decimal, error) {
	usage := make(map[string]decimal.Decimal)

	rows, err := db.pool.Query(ctx, `
		SELECT lower(category), sum(amount)::text FROM expenses
		WHERE user_id = $1 AND date_trunc('month', created_at) = date_trunc('month', $2::timestamptz)
		GROUP BY lower(category)`,
		userID, at,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cat, total string
		if err := rows.Scan(&cat, &total); err != nil {
			return nil, err
		}
		if usage[cat], err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("bad amount in usage row: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The user's equal share of every group expense this month.
	groups, err := db.GroupsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		n := decimal.NewFromInt(int64(len(g.Members)))
		for _, e := range g.Expenses {
			if ledger.SameMonth(e.At, at) {
				cat := strings.ToLower(e.Category)
				usage[cat] = usage[cat].Add(e.Amount.Div(n))
			}
		}
	}
	return usage, nil
}

func (db *DB) loadGroup(ctx context.Context, id int64, name string) (*ledger.Group, error) {
	g := &ledger.Group{Name: name}

	rows, err := db.pool.Query(ctx,
		"SELECT member FROM group_members WHERE group_id = $1 ORDER BY position", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		g.Members = append(g.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	erows, err := db.pool.Query(ctx, `
		SELECT amount::text, description, category, payer, recorded_by, created_at
		FROM group_expenses WHERE group_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer erows.Close()
	for erows.Next() {
		var amount string
		var e ledger.Expense
		if err := erows.Scan(&amount, &e.Description, &e.Category, &e.Payer, &e.RecordedBy, &e.At); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad amount in group_expenses row: %w", err)
		}
		g.Expenses = append(g.Expenses, e)
	}
	return g, erows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
