package dialog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/adit-m/paisabot/internal/ledger"
	"github.com/adit-m/paisabot/internal/settle"
)

// money renders an amount with the currency prefix: two decimals when
// fractional, bare integer for whole-rupee values.
func money(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	if d.IsInteger() {
		return sign + "₹" + d.StringFixed(0)
	}
	return sign + "₹" + d.StringFixed(2)
}

func renderExpenseList(header string, expenses []ledger.Expense, withRecorder bool) string {
	var b strings.Builder
	b.WriteString(header)
	total := decimal.Zero
	for i, e := range expenses {
		if withRecorder {
			fmt.Fprintf(&b, "%d. %s | %s | %s (by %s)\n", i+1, money(e.Amount), e.Description, e.DisplayCategory(), e.RecordedBy)
		} else {
			fmt.Fprintf(&b, "%d. %s | %s | %s\n", i+1, money(e.Amount), e.Description, e.DisplayCategory())
		}
		total = total.Add(e.Amount)
	}
	fmt.Fprintf(&b, "\n💰 Total: %s", money(total))
	return b.String()
}

func renderBalances(groupName string, bal *settle.Balances, caller string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚖️ Balances for '%s':\n", groupName)
	for _, m := range bal.Members {
		net := bal.Net[m]
		switch {
		case net.IsPositive():
			fmt.Fprintf(&b, "+%s is owed %s\n", m, money(net.Round(2)))
		case net.IsNegative():
			fmt.Fprintf(&b, "+%s owes %s\n", m, money(net.Neg().Round(2)))
		default:
			fmt.Fprintf(&b, "+%s is settled up\n", m)
		}
	}

	plan := bal.Plan()
	if len(plan) == 0 {
		b.WriteString("\n✅ Everyone is settled up.")
		return b.String()
	}
	b.WriteString("\n💸 To settle up:\n")
	for _, t := range plan {
		fmt.Fprintf(&b, "+%s → +%s: %s\n", t.Debtor, t.Creditor, money(t.Amount))
	}
	if bal.Owed(caller).IsPositive() {
		fmt.Fprintf(&b, "\nYou owe %s. Reply 'pay share %s' to settle.", money(bal.Owed(caller)), groupName)
	}
	return b.String()
}

func renderBudget(caps, usage map[string]decimal.Decimal) string {
	cats := make([]string, 0, len(caps))
	for cat := range caps {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	var b strings.Builder
	b.WriteString("💼 Your monthly budget:\n")
	for _, cat := range cats {
		spent := usage[cat]
		remaining := caps[cat].Sub(spent)
		fmt.Fprintf(&b, "%s: %s of %s spent, %s remaining\n",
			ledger.TitleCase(cat), money(spent), money(caps[cat]), money(remaining))
	}
	return strings.TrimRight(b.String(), "\n")
}
