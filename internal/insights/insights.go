// Package insights builds the monthly spending summary text: top categories
// with percentages, the month's total, and a couple of category-specific
// money-saving suggestions.
package insights

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adit-m/paisabot/internal/ledger"
)

type categoryTotal struct {
	category string
	amount   decimal.Decimal
}

// Monthly summarizes the caller's expenses for the calendar month containing
// now. Phrasing is varied pseudo-randomly so repeated requests read less
// canned; the numbers themselves are deterministic.
func Monthly(expenses []ledger.Expense, now time.Time) string {
	totals := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, e := range expenses {
		if !ledger.SameMonth(e.At, now) {
			continue
		}
		cat := strings.ToLower(e.Category)
		totals[cat] = totals[cat].Add(e.Amount)
		total = total.Add(e.Amount)
	}
	if len(totals) == 0 {
		return "No expenses recorded for this month yet."
	}

	sorted := make([]categoryTotal, 0, len(totals))
	for cat, amt := range totals {
		sorted = append(sorted, categoryTotal{category: cat, amount: amt})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].amount.Equal(sorted[j].amount) {
			return sorted[i].amount.GreaterThan(sorted[j].amount)
		}
		return sorted[i].category < sorted[j].category
	})

	var b strings.Builder
	b.WriteString("📊 Monthly Expense Analysis\n\n")
	b.WriteString("🔍 Key Spending Patterns:\n")

	top := sorted[0]
	b.WriteString(pick(
		fmt.Sprintf("• Your highest spending is in the %s category (₹%s, %s%% of total)", top.category, top.amount.StringFixed(2), percent(top.amount, total)),
		fmt.Sprintf("• The %s category dominates your expenses at ₹%s (%s%% of total)", top.category, top.amount.StringFixed(2), percent(top.amount, total)),
		fmt.Sprintf("• %s is your biggest expense category at ₹%s (%s%% of total)", ledger.TitleCase(top.category), top.amount.StringFixed(2), percent(top.amount, total)),
	))
	b.WriteString("\n")

	if len(sorted) > 1 {
		second := sorted[1]
		b.WriteString(pick(
			fmt.Sprintf("• Second highest spending is in %s (₹%s, %s%% of total)", second.category, second.amount.StringFixed(2), percent(second.amount, total)),
			fmt.Sprintf("• %s follows with ₹%s (%s%% of total)", ledger.TitleCase(second.category), second.amount.StringFixed(2), percent(second.amount, total)),
		))
		b.WriteString("\n")
	}

	b.WriteString(pick(
		fmt.Sprintf("• You've spent a total of ₹%s this month", total.StringFixed(2)),
		fmt.Sprintf("• Your monthly expenses total ₹%s", total.StringFixed(2)),
	))
	b.WriteString("\n\n💰 Money-Saving Suggestions:\n")
	for _, s := range suggestionsFor(top.category) {
		b.WriteString(s)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func percent(part, total decimal.Decimal) string {
	return part.Div(total).Mul(decimal.NewFromInt(100)).StringFixed(1)
}

func pick(variants ...string) string {
	return variants[rand.Intn(len(variants))]
}

func suggestionsFor(category string) []string {
	pools := map[string][]string{
		"food": {
			"• Consider meal planning to reduce food expenses",
			"• Look for grocery deals and discounts",
			"• Try cooking in bulk and freezing meals",
			"• Use cashback apps for food purchases",
		},
		"transport": {
			"• Explore public transportation options",
			"• Consider carpooling or ride-sharing services",
			"• Look into monthly transit passes",
			"• Plan your trips to minimize fuel consumption",
		},
		"shopping": {
			"• Wait for sales before making purchases",
			"• Use price comparison tools before buying",
			"• Unsubscribe from promotional emails to avoid impulse buying",
			"• Look for cashback and reward programs",
		},
		"entertainment": {
			"• Look for free or low-cost entertainment options",
			"• Set a monthly entertainment budget",
			"• Find local community events and activities",
		},
	}
	pool, ok := pools[category]
	if !ok {
		pool = []string{
			"• Track every purchase to spot patterns",
			"• Set category budgets with 'set budget'",
			"• Review subscriptions you no longer use",
		}
	}
	// Two distinct suggestions from the pool.
	i := rand.Intn(len(pool))
	j := rand.Intn(len(pool) - 1)
	if j >= i {
		j++
	}
	return []string{pool[i], pool[j]}
}
