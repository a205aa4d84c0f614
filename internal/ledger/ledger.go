package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound   = errors.New("group not found")
	ErrNameTaken  = errors.New("group name already taken")
	ErrNotMember  = errors.New("not a member of that group")
	ErrValidation = errors.New("invalid expense")
)

// Expense is a single recorded spend. Immutable once appended.
type Expense struct {
	Amount      decimal.Decimal
	Description string
	Category    string
	Payer       string // identity that disbursed the money
	RecordedBy  string // identity that typed the record; equals Payer for personal scope
	At          time.Time
}

func (e Expense) Validate() error {
	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	if strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	return nil
}

// DisplayCategory renders the free-text category label in title case.
// Categories are matched case-insensitively everywhere else.
func (e Expense) DisplayCategory() string {
	return TitleCase(e.Category)
}

// Group is a named, fixed set of members with an append-only expense list.
// Members keep their creation order; settlement iterates them in that order.
type Group struct {
	Name     string
	Members  []string
	Expenses []Expense
}

func (g *Group) HasMember(id string) bool {
	want := NormalizeNumber(id)
	for _, m := range g.Members {
		if NormalizeNumber(m) == want {
			return true
		}
	}
	return false
}

func (g *Group) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range g.Expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// NormalizeNumber collapses the channel-specific sender token variants of a
// phone number ("whatsapp:+91 98...", "+91-98...") to bare digits.
func NormalizeNumber(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "whatsapp:")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.TrimPrefix(s, "+")
}

// TitleCase uppercases the first letter of each space-separated word.
func TitleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
