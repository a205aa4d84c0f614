// Package settle turns a group's expense ledger into per-member net balances
// and a short list of peer-to-peer transfers that zeroes them out.
package settle

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/adit-m/paisabot/internal/ledger"
)

// ErrNoExpenses is returned for a group whose ledger is empty; there is no
// balance to show, which is different from everyone being settled at zero.
var ErrNoExpenses = errors.New("group has no expenses")

// epsilon absorbs division residue so nobody is told they owe ₹0.00.
var epsilon = decimal.New(5, -3) // 0.005

// Balances holds each member's net position. Members keeps the group's
// creation order; every iteration over balances follows it, so settlement
// plans are deterministic.
type Balances struct {
	Members []string
	Net     map[string]decimal.Decimal
}

// Transfer is one step of a settlement plan: Debtor pays Creditor Amount.
type Transfer struct {
	Debtor   string
	Creditor string
	Amount   decimal.Decimal
}

// ComputeBalances splits the whole pot equally across all members, regardless
// of which expenses each member benefited from, and nets that against what
// each member actually paid. Positive means the member is owed money.
func ComputeBalances(g *ledger.Group) (*Balances, error) {
	if len(g.Expenses) == 0 {
		return nil, ErrNoExpenses
	}

	members := make([]string, len(g.Members))
	paid := make(map[string]decimal.Decimal, len(g.Members))
	for i, m := range g.Members {
		members[i] = ledger.NormalizeNumber(m)
		paid[members[i]] = decimal.Zero
	}

	total := decimal.Zero
	for _, e := range g.Expenses {
		payer := ledger.NormalizeNumber(e.Payer)
		total = total.Add(e.Amount)
		paid[payer] = paid[payer].Add(e.Amount)
	}

	share := total.Div(decimal.NewFromInt(int64(len(members))))

	net := make(map[string]decimal.Decimal, len(members))
	for _, m := range members {
		net[m] = clampResidue(paid[m].Sub(share))
	}
	return &Balances{Members: members, Net: net}, nil
}

// Plan greedily matches debtors against creditors, both walked in member
// order. Each step pays min(remaining debt, remaining credit), so the plan
// has at most len(debtors)+len(creditors) entries and zeroes every balance.
func (b *Balances) Plan() []Transfer {
	type stake struct {
		id        string
		remaining decimal.Decimal
	}
	var debtors, creditors []stake
	for _, m := range b.Members {
		switch net := b.Net[m]; {
		case net.LessThan(epsilon.Neg()):
			debtors = append(debtors, stake{id: m, remaining: net.Neg()})
		case net.GreaterThan(epsilon):
			creditors = append(creditors, stake{id: m, remaining: net})
		}
	}

	var plan []Transfer
	j := 0
	for i := range debtors {
		for debtors[i].remaining.GreaterThan(epsilon) && j < len(creditors) {
			payment := decimal.Min(debtors[i].remaining, creditors[j].remaining)
			plan = append(plan, Transfer{
				Debtor:   debtors[i].id,
				Creditor: creditors[j].id,
				Amount:   payment.Round(2),
			})
			debtors[i].remaining = debtors[i].remaining.Sub(payment)
			creditors[j].remaining = creditors[j].remaining.Sub(payment)
			if !creditors[j].remaining.GreaterThan(epsilon) {
				j++
			}
		}
	}
	return plan
}

// Owed returns how much the member owes, zero if they are settled or owed.
func (b *Balances) Owed(member string) decimal.Decimal {
	net, ok := b.Net[ledger.NormalizeNumber(member)]
	if !ok || !net.LessThan(epsilon.Neg()) {
		return decimal.Zero
	}
	return net.Neg().Round(2)
}

// FirstCreditor returns the first member, in creation order, with a positive
// balance. Second return is false when nobody is owed anything.
func (b *Balances) FirstCreditor() (string, bool) {
	for _, m := range b.Members {
		if b.Net[m].GreaterThan(epsilon) {
			return m, true
		}
	}
	return "", false
}

func clampResidue(d decimal.Decimal) decimal.Decimal {
	if d.Abs().LessThan(epsilon) {
		return decimal.Zero
	}
	return d
}
