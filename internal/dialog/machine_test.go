package dialog

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adit-m/paisabot/internal/ledger"
	"github.com/adit-m/paisabot/internal/payment"
)

type fakeCharts struct {
	url   string
	ok    bool
	calls int
}

func (f *fakeCharts) Render(_ []ledger.Expense, _, _ string) (string, bool) {
	f.calls++
	return f.url, f.ok
}

type gatewayCall struct {
	payer, payee string
	amount       decimal.Decimal
}

type fakeGateway struct {
	calls []gatewayCall
	err   error
}

func (g *fakeGateway) SettleShare(_ context.Context, payer, payee string, amount decimal.Decimal, _ string) (*payment.Payment, error) {
	g.calls = append(g.calls, gatewayCall{payer: payer, payee: payee, amount: amount})
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Payment{ID: "mock_pay_test", Status: "captured"}, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestMachine(store ledger.Store) (*Machine, *fakeCharts, *fakeGateway) {
	charts := &fakeCharts{url: "http://localhost:3000/chart/x.png?t=tok", ok: true}
	gateway := &fakeGateway{}
	m := NewMachine(store, charts, gateway, quietLogger())
	m.now = func() time.Time { return time.Date(2025, time.March, 14, 12, 0, 0, 0, time.UTC) }
	return m, charts, gateway
}

func TestStartAlwaysPromptsScope(t *testing.T) {
	m, _, _ := newTestMachine(ledger.NewMemoryStore())

	for _, text := range []string{"hi", "add 10 x y", "", "?"} {
		s, reply := m.Handle(context.Background(), "1", Session{}, text)
		assert.Equal(t, StateAwaitingScope, s.State)
		assert.Contains(t, reply, "personal / group")
	}
}

func TestUnknownStateFallsBackToStart(t *testing.T) {
	m, _, _ := newTestMachine(ledger.NewMemoryStore())

	s, reply := m.Handle(context.Background(), "1", Session{State: State("abandoned_flow")}, "hello")
	assert.Equal(t, StateAwaitingScope, s.State)
	assert.Contains(t, reply, "personal / group")
}

func TestAwaitingScopeTransitions(t *testing.T) {
	tests := []struct {
		input string
		want  State
	}{
		{"personal", StatePersonalMenu},
		{"PERSONAL", StatePersonalMenu},
		{"group", StateGroupMenu},
		{"Group", StateGroupMenu},
		{"xyz", StateAwaitingScope},
		{"", StateAwaitingScope},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			m, _, _ := newTestMachine(ledger.NewMemoryStore())
			s, reply := m.Handle(context.Background(), "1", Session{State: StateAwaitingScope}, tc.input)
			assert.Equal(t, tc.want, s.State)
			if tc.want == StateAwaitingScope {
				assert.Contains(t, reply, "'personal' or 'group'")
			}
		})
	}
}

func TestPersonalAdd(t *testing.T) {
	store := ledger.NewMemoryStore()
	m, _, _ := newTestMachine(store)
	ctx := context.Background()

	s, reply := m.Handle(ctx, "1", Session{State: StatePersonalMenu}, "add 250 groceries food")
	assert.Equal(t, StatePersonalMenu, s.State)
	assert.Contains(t, reply, "✅ Added ₹250 under Food for 'groceries'.")

	expenses, err := store.Expenses(ctx, "1")
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.True(t, expenses[0].Amount.Equal(decimal.NewFromInt(250)))
}

func TestPersonalAddParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few tokens", "add 250 groceries"},
		{"too many tokens", "add 250 groceries food extra"},
		{"bad amount", "add abc groceries food"},
		{"zero amount", "add 0 groceries food"},
		{"negative amount", "add -5 groceries food"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := ledger.NewMemoryStore()
			m, _, _ := newTestMachine(store)

			s, reply := m.Handle(context.Background(), "1", Session{State: StatePersonalMenu}, tc.input)
			assert.Equal(t, StatePersonalMenu, s.State, "state must not change on a parse error")
			assert.Contains(t, reply, "❌")
			assert.Contains(t, reply, "add <amount> <desc> <category>")

			expenses, _ := store.Expenses(context.Background(), "1")
			assert.Empty(t, expenses)
		})
	}
}

func TestPersonalViewAllAndChart(t *testing.T) {
	store := ledger.NewMemoryStore()
	m, charts, _ := newTestMachine(store)
	ctx := context.Background()

	_, reply := m.Handle(ctx, "1", Session{State: StatePersonalMenu}, "view all")
	assert.Contains(t, reply, "📭 No personal expenses yet.")

	_, reply = m.Handle(ctx, "1", Session{State: StatePersonalMenu}, "view chart")
	assert.Contains(t, reply, "No personal data to chart")
	assert.Zero(t, charts.calls)

	m.Handle(ctx, "1", Session{State: StatePersonalMenu}, "add 100 taxi transport")
	_, reply = m.Handle(ctx, "1", Session{State: StatePersonalMenu}, "view all")
	assert.Contains(t, reply, "₹100 | taxi | Transport")
	assert.Contains(t, reply, "💰 Total: ₹100")

	_, reply = m.Handle(ctx, "1", Session{State: StatePersonalMenu}, "view chart")
	assert.Contains(t, reply, "http://localhost:3000/chart/")
	assert.Equal(t, 1, charts.calls)
}

func TestBackResetsToStart(t *testing.T) {
	m, _, _ := newTestMachine(ledger.NewMemoryStore())

	for _, state := range []State{StatePersonalMenu, StateGroupMenu} {
		s, reply := m.Handle(context.Background(), "1", Session{State: state}, "back")
		assert.Equal(t, StateStart, s.State)
		assert.Contains(t, reply, "Back to main menu")
	}
}

func TestBudgetFlow(t *testing.T) {
	store := ledger.NewMemoryStore()
	m, _, _ := newTestMachine(store)
	ctx := context.Background()

	s, reply := m.Handle(ctx, "1", Session{State: StatePersonalMenu}, "set budget")
	assert.Equal(t, StateSettingBudget, s.State)
	assert.Contains(t, reply, "pairs")

	// Odd token count is rejected without leaving the state.
	s, reply = m.Handle(ctx, "1", s, "food 100 transport")
	assert.Equal(t, StateSettingBudget, s.State)
	assert.Contains(t, reply, "❌")

	// Non-numeric amount likewise.
	s, _ = m.Handle(ctx, "1", s, "food abc")
	assert.Equal(t, StateSettingBudget, s.State)

	s, reply = m.Handle(ctx, "1", s, "food 100 transport 50")
	assert.Equal(t, StatePersonalMenu, s.State)
	assert.Contains(t, reply, "✅ Budget saved for 2 categories.")

	// Spend over the food cap this month; remainder is negative, not clamped.
	m.Handle(ctx, "1", Session{State: StatePersonalMenu}, "add 120 lunches food")
	_, reply = m.Handle(ctx, "1", Session{State: StatePersonalMenu}, "view budget")
	assert.Contains(t, reply, "Food: ₹120 of ₹100 spent, -₹20 remaining")
	assert.Contains(t, reply, "Transport: ₹0 of ₹50 spent, ₹50 remaining")
}

func TestBudgetBackDiscards(t *testing.T) {
	store := ledger.NewMemoryStore()
	m, _, _ := newTestMachine(store)
	ctx := context.Background()

	s, _ := m.Handle(ctx, "1", Session{State: StateSettingBudget}, "back")
	assert.Equal(t, StatePersonalMenu, s.State)

	caps, err := store.Budget(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, caps)
}

func TestCreateGroupFlow(t *testing.T) {
	store := ledger.NewMemoryStore()
	m, _, _ := newTestMachine(store)
	ctx := context.Background()

	s, reply := m.Handle(ctx, "1", Session{State: StateGroupMenu}, "create group")
	assert.Equal(t, StateCreatingGroupName, s.State)
	assert.Contains(t, reply, "group name")

	s, reply = m.Handle(ctx, "1", s, "Trip")
	assert.Equal(t, StateCreatingGroupMembers, s.State)
	assert.Contains(t, reply, "phone numbers")

	// Member tokens must look like international numbers.
	s, reply = m.Handle(ctx, "1", s, "+1 bogus")
	assert.Equal(t, StateCreatingGroupMembers, s.State)
	assert.Contains(t, reply, "E.164")

	s, reply = m.Handle(ctx, "1", s, "+1 +2")
	assert.Equal(t, StateGroupMenu, s.State)
	assert.Empty(t, s.Scratch)
	assert.Contains(t, reply, "✅ Group 'Trip' created with members +1, +2.")

	g, err := store.GroupByName(ctx, "Trip")
	require.NoError(t, err)
	assert.Equal(t, []string{"+1", "+2"}, g.Members)
}

func TestCreateGroupDuplicateName(t *testing.T) {
	store := ledger.NewMemoryStore()
	_, err := store.CreateGroup(context.Background(), "Trip", []string{"+1"})
	require.NoError(t, err)

	m, _, _ := newTestMachine(store)
	s, reply := m.Handle(context.Background(), "1", Session{State: StateCreatingGroupName}, "Trip")
	assert.Equal(t, StateCreatingGroupName, s.State)
	assert.Contains(t, reply, "taken")
}

func TestGroupAddExpense(t *testing.T) {
	store := ledger.NewMemoryStore()
	_, err := store.CreateGroup(context.Background(), "Trip", []string{"+1", "+2"})
	require.NoError(t, err)

	m, _, _ := newTestMachine(store)
	ctx := context.Background()

	tests := []struct {
		name  string
		user  string
		input string
		want  string
	}{
		{"wrong token count", "1", "add Trip 100 dinner food", "❌ Invalid format."},
		{"bad amount", "1", "add Trip abc dinner food +1", "❌ Invalid amount."},
		{"unknown group", "1", "add Nowhere 100 dinner food +1", "❌ No group named 'Nowhere'."},
		{"caller not member", "9", "add Trip 100 dinner food +1", "❌ You're not a member of that group."},
		{"payer not member", "1", "add Trip 100 dinner food +9", "❌ +9 isn't a member of 'Trip'."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, reply := m.Handle(ctx, tc.user, Session{State: StateGroupMenu}, tc.input)
			assert.Equal(t, StateGroupMenu, s.State)
			assert.Contains(t, reply, tc.want)
		})
	}

	_, reply := m.Handle(ctx, "1", Session{State: StateGroupMenu}, "add Trip 100 dinner food +2")
	assert.Contains(t, reply, "✅ Added ₹100 to 'Trip' under Food for 'dinner' (paid by +2).")

	g, err := store.GroupByName(ctx, "Trip")
	require.NoError(t, err)
	require.Len(t, g.Expenses, 1)
	assert.Equal(t, "+2", g.Expenses[0].Payer)
	assert.Equal(t, "1", g.Expenses[0].RecordedBy)
}

func TestViewBalancesEndToEnd(t *testing.T) {
	store := ledger.NewMemoryStore()
	ctx := context.Background()
	_, err := store.CreateGroup(ctx, "Trip", []string{"+1", "+2"})
	require.NoError(t, err)

	m, _, _ := newTestMachine(store)
	m.Handle(ctx, "1", Session{State: StateGroupMenu}, "add Trip 100 hotel stay +1")

	// The debtor sees the plan and the pay-share hint.
	_, reply := m.Handle(ctx, "2", Session{State: StateGroupMenu}, "view balances Trip")
	assert.Contains(t, reply, "+1 is owed ₹50")
	assert.Contains(t, reply, "+2 owes ₹50")
	assert.Contains(t, reply, "+2 → +1: ₹50")
	assert.Contains(t, reply, "pay share Trip")

	// The creditor gets no hint.
	_, reply = m.Handle(ctx, "1", Session{State: StateGroupMenu}, "view balances Trip")
	assert.NotContains(t, reply, "pay share Trip")
}

func TestViewBalancesEmptyGroup(t *testing.T) {
	store := ledger.NewMemoryStore()
	ctx := context.Background()
	_, err := store.CreateGroup(ctx, "Trip", []string{"+1"})
	require.NoError(t, err)

	m, _, _ := newTestMachine(store)
	_, reply := m.Handle(ctx, "1", Session{State: StateGroupMenu}, "view balances Trip")
	assert.Contains(t, reply, "📭 No expenses in group 'Trip' yet.")
}

func TestPayShare(t *testing.T) {
	store := ledger.NewMemoryStore()
	ctx := context.Background()
	_, err := store.CreateGroup(ctx, "Trip", []string{"+1", "+2"})
	require.NoError(t, err)

	m, _, gateway := newTestMachine(store)
	m.Handle(ctx, "1", Session{State: StateGroupMenu}, "add Trip 100 hotel stay +1")

	// The creditor owes nothing; the gateway must never be called.
	_, reply := m.Handle(ctx, "1", Session{State: StateGroupMenu}, "pay share Trip")
	assert.Contains(t, reply, "You don't owe anything")
	assert.Empty(t, gateway.calls)

	// The debtor pays the first creditor their full owed amount.
	_, reply = m.Handle(ctx, "2", Session{State: StateGroupMenu}, "pay share Trip")
	assert.Contains(t, reply, "✅ Paid ₹50 to +1 for 'Trip'.")
	require.Len(t, gateway.calls, 1)
	assert.Equal(t, "2", gateway.calls[0].payer)
	assert.Equal(t, "1", gateway.calls[0].payee)
	assert.True(t, gateway.calls[0].amount.Equal(decimal.NewFromInt(50)))
}

func TestPayShareGatewayFailure(t *testing.T) {
	store := ledger.NewMemoryStore()
	ctx := context.Background()
	_, err := store.CreateGroup(ctx, "Trip", []string{"+1", "+2"})
	require.NoError(t, err)

	m, _, gateway := newTestMachine(store)
	gateway.err = assert.AnError
	m.Handle(ctx, "1", Session{State: StateGroupMenu}, "add Trip 100 hotel stay +1")

	s, reply := m.Handle(ctx, "2", Session{State: StateGroupMenu}, "pay share Trip")
	assert.Equal(t, StateGroupMenu, s.State)
	assert.Contains(t, reply, "Payment didn't go through")

	// Ledger untouched by the failed delegation.
	g, err := store.GroupByName(ctx, "Trip")
	require.NoError(t, err)
	assert.Len(t, g.Expenses, 1)
}

func TestViewGroups(t *testing.T) {
	store := ledger.NewMemoryStore()
	ctx := context.Background()
	_, err := store.CreateGroup(ctx, "Trip", []string{"+1", "+2"})
	require.NoError(t, err)
	_, err = store.CreateGroup(ctx, "Flat", []string{"+2", "+3"})
	require.NoError(t, err)

	m, _, _ := newTestMachine(store)
	_, reply := m.Handle(ctx, "1", Session{State: StateGroupMenu}, "view groups")
	assert.Contains(t, reply, "Trip")
	assert.NotContains(t, reply, "Flat")

	_, reply = m.Handle(ctx, "9", Session{State: StateGroupMenu}, "view groups")
	assert.Contains(t, reply, "not in any groups")
}

func TestGroupViewChart(t *testing.T) {
	store := ledger.NewMemoryStore()
	ctx := context.Background()
	_, err := store.CreateGroup(ctx, "Trip", []string{"+1", "+2"})
	require.NoError(t, err)

	m, charts, _ := newTestMachine(store)
	_, reply := m.Handle(ctx, "1", Session{State: StateGroupMenu}, "view chart Trip")
	assert.Contains(t, reply, "No data to chart")
	assert.Zero(t, charts.calls)

	m.Handle(ctx, "1", Session{State: StateGroupMenu}, "add Trip 100 hotel stay +1")
	_, reply = m.Handle(ctx, "1", Session{State: StateGroupMenu}, "view chart Trip")
	assert.Contains(t, reply, "http://localhost:3000/chart/")
}

func TestUnrecognizedCommandsShowHelp(t *testing.T) {
	m, _, _ := newTestMachine(ledger.NewMemoryStore())
	ctx := context.Background()

	s, reply := m.Handle(ctx, "1", Session{State: StatePersonalMenu}, "what")
	assert.Equal(t, StatePersonalMenu, s.State)
	assert.Contains(t, reply, "Personal options")

	s, reply = m.Handle(ctx, "1", Session{State: StateGroupMenu}, "what")
	assert.Equal(t, StateGroupMenu, s.State)
	assert.Contains(t, reply, "Group options")
}
