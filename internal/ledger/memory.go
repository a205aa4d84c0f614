package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore keeps everything in process memory. It backs the tests and the
// bot itself when no DATABASE_URL is configured.
type MemoryStore struct {
	mu       sync.Mutex
	expenses map[string][]Expense
	groups   []*Group
	budgets  map[string]map[string]decimal.Decimal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		expenses: make(map[string][]Expense),
		budgets:  make(map[string]map[string]decimal.Decimal),
	}
}

func (s *MemoryStore) AddExpense(_ context.Context, userID string, e Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses[userID] = append(s.expenses[userID], e)
	return nil
}

func (s *MemoryStore) Expenses(_ context.Context, userID string) ([]Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Expense, len(s.expenses[userID]))
	copy(out, s.expenses[userID])
	return out, nil
}

func (s *MemoryStore) CreateGroup(_ context.Context, name string, members []string) (*Group, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: a group needs at least one member", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.Name == name {
			return nil, ErrNameTaken
		}
	}
	g := &Group{Name: name, Members: append([]string(nil), members...)}
	s.groups = append(s.groups, g)
	return copyGroup(g), nil
}

func (s *MemoryStore) GroupByName(_ context.Context, name string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.find(name)
	if g == nil {
		return nil, ErrNotFound
	}
	return copyGroup(g), nil
}

func (s *MemoryStore) GroupsFor(_ context.Context, userID string) ([]Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Group
	for _, g := range s.groups {
		if g.HasMember(userID) {
			out = append(out, *copyGroup(g))
		}
	}
	return out, nil
}

func (s *MemoryStore) AddGroupExpense(_ context.Context, groupName string, e Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.find(groupName)
	if g == nil {
		return ErrNotFound
	}
	if !g.HasMember(e.Payer) || !g.HasMember(e.RecordedBy) {
		return ErrNotMember
	}
	g.Expenses = append(g.Expenses, e)
	return nil
}

func (s *MemoryStore) SetBudget(_ context.Context, userID string, caps map[string]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := make(map[string]decimal.Decimal, len(caps))
	for cat, limit := range caps {
		replaced[strings.ToLower(cat)] = limit
	}
	s.budgets[userID] = replaced
	return nil
}

func (s *MemoryStore) Budget(_ context.Context, userID string) (map[string]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(s.budgets[userID]))
	for cat, limit := range s.budgets[userID] {
		out[cat] = limit
	}
	return out, nil
}

func (s *MemoryStore) MonthlyUsage(_ context.Context, userID string, at time.Time) (map[string]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	usage := make(map[string]decimal.Decimal)
	for _, e := range s.expenses[userID] {
		if SameMonth(e.At, at) {
			cat := strings.ToLower(e.Category)
			usage[cat] = usage[cat].Add(e.Amount)
		}
	}
	for _, g := range s.groups {
		if !g.HasMember(userID) {
			continue
		}
		n := decimal.NewFromInt(int64(len(g.Members)))
		for _, e := range g.Expenses {
			if SameMonth(e.At, at) {
				cat := strings.ToLower(e.Category)
				usage[cat] = usage[cat].Add(e.Amount.Div(n))
			}
		}
	}
	return usage, nil
}

func (s *MemoryStore) find(name string) *Group {
	for _, g := range s.groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

func copyGroup(g *Group) *Group {
	out := &Group{Name: g.Name}
	out.Members = append(out.Members, g.Members...)
	out.Expenses = append(out.Expenses, g.Expenses...)
	return out
}
