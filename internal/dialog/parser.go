package dialog

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	errBadAmount  = errors.New("amount must be a positive number")
	errOddBudget  = errors.New("budget input must be category/amount pairs")
	errBadNumbers = errors.New("member numbers must start with +")
)

// parseAmount accepts a strictly positive decimal number.
func parseAmount(tok string) (decimal.Decimal, error) {
	amt, err := decimal.NewFromString(tok)
	if err != nil || !amt.IsPositive() {
		return decimal.Decimal{}, errBadAmount
	}
	return amt, nil
}

// parseBudgetPairs reads an alternating "category amount" token sequence into
// a cap mapping. A later pair for the same category wins.
func parseBudgetPairs(tokens []string) (map[string]decimal.Decimal, error) {
	if len(tokens) == 0 || len(tokens)%2 != 0 {
		return nil, errOddBudget
	}
	caps := make(map[string]decimal.Decimal, len(tokens)/2)
	for i := 0; i < len(tokens); i += 2 {
		amt, err := parseAmount(tokens[i+1])
		if err != nil {
			return nil, err
		}
		caps[strings.ToLower(tokens[i])] = amt
	}
	return caps, nil
}

// parseMembers splits a member list, requiring every token to look like an
// international number (a loose E.164 stand-in: it starts with +).
func parseMembers(text string) ([]string, error) {
	members := strings.Fields(text)
	if len(members) == 0 {
		return nil, errBadNumbers
	}
	for _, m := range members {
		if !strings.HasPrefix(m, "+") {
			return nil, errBadNumbers
		}
	}
	return members, nil
}

// verbIs matches the command verb (first token or two) case-insensitively.
func verbIs(tokens []string, verb ...string) bool {
	if len(tokens) < len(verb) {
		return false
	}
	for i, v := range verb {
		if !strings.EqualFold(tokens[i], v) {
			return false
		}
	}
	return true
}
