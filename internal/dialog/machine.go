// Package dialog drives one user's guided conversation: it interprets a
// single inbound text against the session's current state, reads and writes
// the ledger, and always produces a reply.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adit-m/paisabot/internal/insights"
	"github.com/adit-m/paisabot/internal/ledger"
	"github.com/adit-m/paisabot/internal/payment"
	"github.com/adit-m/paisabot/internal/settle"
)

const (
	msgScopePrompt = "👋 Hello! Manage 'personal' or 'group' expenses?\nReply personal / group."
	msgScopeRetry  = "❓ Please reply 'personal' or 'group'."

	msgPersonalMenu = "🧑 Personal mode:\n" +
		"• add <amount> <desc> <category>\n" +
		"• view all\n" +
		"• view chart\n" +
		"• view insights\n" +
		"• set budget / view budget\n" +
		"Reply or 'back'."
	msgPersonalHelp = "❓ Personal options:\n" +
		"• add <amount> <desc> <category>\n" +
		"• view all\n" +
		"• view chart\n" +
		"• view insights\n" +
		"• set budget / view budget\n" +
		"• back"
	msgPersonalAddUsage = "Use: add <amount> <desc> <category>"

	msgGroupMenu = "👥 Group mode:\n" +
		"• create group\n" +
		"• view groups\n" +
		"• add <group> <amount> <desc> <category> <payer>\n" +
		"• view expenses <group>\n" +
		"• view balances <group>\n" +
		"• pay share <group>\n" +
		"• view chart <group>\n" +
		"Reply or 'back'."
	msgGroupHelp = "❓ Group options:\n" +
		"• create group\n" +
		"• view groups\n" +
		"• add <group> <amount> <desc> <category> <payer>\n" +
		"• view expenses <group>\n" +
		"• view balances <group>\n" +
		"• pay share <group>\n" +
		"• view chart <group>\n" +
		"• back"
	msgGroupAddUsage = "Use: add <group> <amount> <desc> <category> <payer>"

	msgBudgetPrompt = "💼 Send your caps as pairs, e.g.\nfood 3000 transport 1200\nOr 'back'."
	msgMembersPrompt = "👥 Now enter members' phone numbers (E.164),\n" +
		"separated by spaces (include yourself)."

	msgBack     = "🔙 Back to main menu."
	msgInternal = "⚠️ Something went wrong, please try again."
)

const scratchGroupName = "group_name"

// ChartRenderer produces a retrievable pie-chart image over a set of records
// and returns its URL. ok is false when there is nothing to chart or the
// render failed.
type ChartRenderer interface {
	Render(expenses []ledger.Expense, owner, title string) (url string, ok bool)
}

// Machine interprets one inbound message per call. It keeps no per-user data
// itself; everything it needs travels in the Session.
type Machine struct {
	store    ledger.Store
	charts   ChartRenderer
	payments payment.Gateway
	log      *logrus.Logger

	now func() time.Time
}

func NewMachine(store ledger.Store, charts ChartRenderer, payments payment.Gateway, log *logrus.Logger) *Machine {
	return &Machine{store: store, charts: charts, payments: payments, log: log, now: time.Now}
}

// Handle runs one turn. It never returns an error: every input, valid or not,
// yields a reply and a (possibly unchanged) session for the caller to persist.
func (m *Machine) Handle(ctx context.Context, userID string, s Session, raw string) (Session, string) {
	text := strings.TrimSpace(raw)
	if !s.State.known() {
		s = reset()
	}

	switch s.State {
	case StateAwaitingScope:
		return m.awaitingScope(s, text)
	case StatePersonalMenu:
		return m.personalMenu(ctx, userID, s, text)
	case StateSettingBudget:
		return m.settingBudget(ctx, userID, s, text)
	case StateGroupMenu:
		return m.groupMenu(ctx, userID, s, text)
	case StateCreatingGroupName:
		return m.creatingGroupName(ctx, s, text)
	case StateCreatingGroupMembers:
		return m.creatingGroupMembers(ctx, userID, s, text)
	default:
		// Fresh session: any first message gets the scope prompt.
		return s.with(StateAwaitingScope), msgScopePrompt
	}
}

func (m *Machine) awaitingScope(s Session, text string) (Session, string) {
	switch strings.ToLower(text) {
	case "personal":
		return s.with(StatePersonalMenu), msgPersonalMenu
	case "group":
		return s.with(StateGroupMenu), msgGroupMenu
	default:
		return s, msgScopeRetry
	}
}

func (m *Machine) personalMenu(ctx context.Context, userID string, s Session, text string) (Session, string) {
	tokens := strings.Fields(text)
	lower := strings.ToLower(text)

	switch {
	case lower == "back":
		return reset(), msgBack

	case lower == "set budget":
		return s.with(StateSettingBudget), msgBudgetPrompt

	case lower == "view budget":
		return s, m.viewBudget(ctx, userID)

	case lower == "view all":
		expenses, err := m.store.Expenses(ctx, userID)
		if err != nil {
			return s, m.internal(err, userID, "view all")
		}
		if len(expenses) == 0 {
			return s, "📭 No personal expenses yet."
		}
		return s, renderExpenseList("📋 Your Personal Expenses:\n", expenses, false)

	case lower == "view chart":
		expenses, err := m.store.Expenses(ctx, userID)
		if err != nil {
			return s, m.internal(err, userID, "view chart")
		}
		if len(expenses) == 0 {
			return s, "❌ No personal data to chart."
		}
		url, ok := m.charts.Render(expenses, userID, "Category-wise Spending")
		if !ok {
			return s, "⚠️ Couldn't generate the chart. Please try again."
		}
		return s, "📊 Your Personal Spending Chart:\n" + url

	case lower == "view insights":
		expenses, err := m.store.Expenses(ctx, userID)
		if err != nil {
			return s, m.internal(err, userID, "view insights")
		}
		return s, insights.Monthly(expenses, m.now())

	case verbIs(tokens, "add"):
		return s, m.addPersonal(ctx, userID, tokens)

	default:
		return s, msgPersonalHelp
	}
}

func (m *Machine) addPersonal(ctx context.Context, userID string, tokens []string) string {
	if len(tokens) != 4 {
		return "❌ Invalid format. " + msgPersonalAddUsage
	}
	amt, err := parseAmount(tokens[1])
	if err != nil {
		return "❌ Invalid amount. " + msgPersonalAddUsage
	}
	e := ledger.Expense{
		Amount:      amt,
		Description: tokens[2],
		Category:    tokens[3],
		Payer:       userID,
		RecordedBy:  userID,
		At:          m.now(),
	}
	if err := m.store.AddExpense(ctx, userID, e); err != nil {
		return m.internal(err, userID, "add personal")
	}
	m.log.WithFields(logrus.Fields{"user": userID, "category": e.Category}).Info("personal expense recorded")
	return fmt.Sprintf("✅ Added %s under %s for '%s'.", money(amt), e.DisplayCategory(), e.Description)
}

func (m *Machine) viewBudget(ctx context.Context, userID string) string {
	caps, err := m.store.Budget(ctx, userID)
	if err != nil {
		return m.internal(err, userID, "view budget")
	}
	if len(caps) == 0 {
		return "📭 No budget set. Reply 'set budget' to create one."
	}
	usage, err := m.store.MonthlyUsage(ctx, userID, m.now())
	if err != nil {
		return m.internal(err, userID, "view budget")
	}
	return renderBudget(caps, usage)
}

func (m *Machine) settingBudget(ctx context.Context, userID string, s Session, text string) (Session, string) {
	if strings.EqualFold(text, "back") {
		return s.with(StatePersonalMenu), msgBack
	}
	caps, err := parseBudgetPairs(strings.Fields(text))
	if err != nil {
		return s, "❌ Invalid format. Send pairs like: food 3000 transport 1200"
	}
	if err := m.store.SetBudget(ctx, userID, caps); err != nil {
		return s, m.internal(err, userID, "set budget")
	}
	m.log.WithFields(logrus.Fields{"user": userID, "categories": len(caps)}).Info("budget replaced")
	return s.with(StatePersonalMenu), fmt.Sprintf("✅ Budget saved for %d categories.", len(caps))
}

func (m *Machine) groupMenu(ctx context.Context, userID string, s Session, text string) (Session, string) {
	tokens := strings.Fields(text)
	lower := strings.ToLower(text)

	switch {
	case lower == "back":
		return reset(), msgBack

	case lower == "create group":
		return s.with(StateCreatingGroupName), "➕ Enter new group name:"

	case lower == "view groups":
		return s, m.viewGroups(ctx, userID)

	case verbIs(tokens, "view", "expenses"):
		if len(tokens) != 3 {
			return s, "❌ Invalid format. Use: view expenses <group>"
		}
		return s, m.viewGroupExpenses(ctx, userID, tokens[2])

	case verbIs(tokens, "view", "balances"):
		if len(tokens) != 3 {
			return s, "❌ Invalid format. Use: view balances <group>"
		}
		return s, m.viewBalances(ctx, userID, tokens[2])

	case verbIs(tokens, "view", "chart"):
		if len(tokens) != 3 {
			return s, "❌ Invalid format. Use: view chart <group>"
		}
		return s, m.viewGroupChart(ctx, userID, tokens[2])

	case verbIs(tokens, "pay", "share"):
		if len(tokens) != 3 {
			return s, "❌ Invalid format. Use: pay share <group>"
		}
		return s, m.payShare(ctx, userID, tokens[2])

	case verbIs(tokens, "add"):
		return s, m.addGroupExpense(ctx, userID, tokens)

	default:
		return s, msgGroupHelp
	}
}

func (m *Machine) viewGroups(ctx context.Context, userID string) string {
	groups, err := m.store.GroupsFor(ctx, userID)
	if err != nil {
		return m.internal(err, userID, "view groups")
	}
	if len(groups) == 0 {
		return "📭 You're not in any groups.\nReply 'create group' or 'back'."
	}
	var b strings.Builder
	b.WriteString("👥 Your Groups:\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "- %s (Members: %s)\n", g.Name, strings.Join(g.Members, ", "))
	}
	b.WriteString("\nTo add an expense:\nadd <group> <amount> <desc> <category> <payer>\nOr 'view balances <group>', 'back'.")
	return b.String()
}

// memberGroup loads a group and checks the caller belongs to it. The second
// return is a ready-to-send error reply when the first is nil.
func (m *Machine) memberGroup(ctx context.Context, userID, name string) (*ledger.Group, string) {
	g, err := m.store.GroupByName(ctx, name)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Sprintf("❌ No group named '%s'.", name)
	}
	if err != nil {
		return nil, m.internal(err, userID, "load group")
	}
	if !g.HasMember(userID) {
		return nil, "❌ You're not a member of that group."
	}
	return g, ""
}

func (m *Machine) addGroupExpense(ctx context.Context, userID string, tokens []string) string {
	if len(tokens) != 6 {
		return "❌ Invalid format. " + msgGroupAddUsage
	}
	groupName, payer := tokens[1], tokens[5]
	amt, err := parseAmount(tokens[2])
	if err != nil {
		return "❌ Invalid amount. " + msgGroupAddUsage
	}
	g, errReply := m.memberGroup(ctx, userID, groupName)
	if g == nil {
		return errReply
	}
	if !g.HasMember(payer) {
		return fmt.Sprintf("❌ %s isn't a member of '%s'.", payer, groupName)
	}
	e := ledger.Expense{
		Amount:      amt,
		Description: tokens[3],
		Category:    tokens[4],
		Payer:       payer,
		RecordedBy:  userID,
		At:          m.now(),
	}
	if err := m.store.AddGroupExpense(ctx, groupName, e); err != nil {
		if errors.Is(err, ledger.ErrNotMember) {
			return fmt.Sprintf("❌ %s isn't a member of '%s'.", payer, groupName)
		}
		return m.internal(err, userID, "add group expense")
	}
	m.log.WithFields(logrus.Fields{"user": userID, "group": groupName}).Info("group expense recorded")
	return fmt.Sprintf("✅ Added %s to '%s' under %s for '%s' (paid by %s).",
		money(amt), groupName, e.DisplayCategory(), e.Description, payer)
}

func (m *Machine) viewGroupExpenses(ctx context.Context, userID, name string) string {
	g, errReply := m.memberGroup(ctx, userID, name)
	if g == nil {
		return errReply
	}
	if len(g.Expenses) == 0 {
		return fmt.Sprintf("📭 No expenses in group '%s' yet.", name)
	}
	return renderExpenseList(fmt.Sprintf("📋 Expenses in group '%s':\n", name), g.Expenses, true)
}

func (m *Machine) viewBalances(ctx context.Context, userID, name string) string {
	g, errReply := m.memberGroup(ctx, userID, name)
	if g == nil {
		return errReply
	}
	bal, err := settle.ComputeBalances(g)
	if errors.Is(err, settle.ErrNoExpenses) {
		return fmt.Sprintf("📭 No expenses in group '%s' yet.", name)
	}
	if err != nil {
		return m.internal(err, userID, "compute balances")
	}
	return renderBalances(name, bal, userID)
}

func (m *Machine) payShare(ctx context.Context, userID, name string) string {
	g, errReply := m.memberGroup(ctx, userID, name)
	if g == nil {
		return errReply
	}
	bal, err := settle.ComputeBalances(g)
	if errors.Is(err, settle.ErrNoExpenses) {
		return fmt.Sprintf("📭 No expenses in group '%s' yet.", name)
	}
	if err != nil {
		return m.internal(err, userID, "compute balances")
	}
	owed := bal.Owed(userID)
	if !owed.IsPositive() {
		return fmt.Sprintf("✅ You don't owe anything in '%s'.", name)
	}
	creditor, ok := bal.FirstCreditor()
	if !ok {
		return fmt.Sprintf("✅ You don't owe anything in '%s'.", name)
	}

	memo := fmt.Sprintf("Group expense share: %s", name)
	p, err := m.payments.SettleShare(ctx, userID, creditor, owed, memo)
	if err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{"user": userID, "group": name}).Warn("settle-share payment failed")
		return "⚠️ Payment didn't go through. Nothing was charged — please try again."
	}
	m.log.WithFields(logrus.Fields{"user": userID, "group": name, "payment": p.ID}).Info("share settled")
	return fmt.Sprintf("✅ Paid %s to +%s for '%s'.\nPayment id: %s", money(owed), creditor, name, p.ID)
}

func (m *Machine) viewGroupChart(ctx context.Context, userID, name string) string {
	g, errReply := m.memberGroup(ctx, userID, name)
	if g == nil {
		return errReply
	}
	if len(g.Expenses) == 0 {
		return fmt.Sprintf("❌ No data to chart for '%s'.", name)
	}
	url, ok := m.charts.Render(g.Expenses, userID, fmt.Sprintf("Category-wise Spending: %s", name))
	if !ok {
		return "⚠️ Couldn't generate the chart. Please try again."
	}
	return fmt.Sprintf("📊 Spending Chart for '%s':\n%s", name, url)
}

func (m *Machine) creatingGroupName(ctx context.Context, s Session, text string) (Session, string) {
	name := strings.TrimSpace(text)
	if name == "" {
		return s, "➕ Enter new group name:"
	}
	_, err := m.store.GroupByName(ctx, name)
	if err == nil {
		return s, "❌ That name's taken. Enter another group name:"
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return s, m.internal(err, "", "check group name")
	}
	return s.stash(scratchGroupName, name).with(StateCreatingGroupMembers), msgMembersPrompt
}

func (m *Machine) creatingGroupMembers(ctx context.Context, userID string, s Session, text string) (Session, string) {
	name := s.Scratch[scratchGroupName]
	if name == "" {
		// Scratch lost (evicted session store); start the sub-flow over.
		return s.with(StateCreatingGroupName), "➕ Enter new group name:"
	}
	members, err := parseMembers(text)
	if err != nil {
		return s, "❌ Invalid format. Use E.164 (e.g. +123456789).\nTry again:"
	}
	g, err := m.store.CreateGroup(ctx, name, members)
	if errors.Is(err, ledger.ErrNameTaken) {
		return Session{State: StateCreatingGroupName}, "❌ That name's taken. Enter another group name:"
	}
	if err != nil {
		return s, m.internal(err, userID, "create group")
	}
	m.log.WithFields(logrus.Fields{"user": userID, "group": g.Name, "members": len(g.Members)}).Info("group created")
	return Session{State: StateGroupMenu}, fmt.Sprintf(
		"✅ Group '%s' created with members %s.\nYou can now add group expenses:\nadd <group> <amount> <desc> <category> <payer>\nOr 'view groups', 'back'.",
		g.Name, strings.Join(g.Members, ", "))
}

func (m *Machine) internal(err error, userID, op string) string {
	m.log.WithError(err).WithFields(logrus.Fields{"user": userID, "operation": op}).Error("turn failed")
	return msgInternal
}
