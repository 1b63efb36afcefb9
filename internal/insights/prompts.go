package insights

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/shopspring/decimal"
)

// maxPromptTransactions bounds how many recent transactions are listed.
const maxPromptTransactions = 50

// BuildPrompt describes the snapshot, plans and recent transactions for the model.
func BuildPrompt(in Input) string {
	var b strings.Builder

	b.WriteString("You are a personal finance assistant.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Review the user's balance, upcoming plans and recent spending.\n")
	b.WriteString("- Give 3 to 5 short, practical observations in plain text.\n")
	b.WriteString("- Do NOT use Markdown headings or code fences.\n\n")

	snap := in.Snapshot
	fmt.Fprintf(&b, "Billing period: %s to %s\n", snap.PeriodStart, snap.PeriodEnd)
	fmt.Fprintf(&b, "Current balance: %s\n", snap.CurrentBalance.StringFixed(2))
	fmt.Fprintf(&b, "Projected balance at period end: %s\n", snap.ProjectedBalance.StringFixed(2))
	fmt.Fprintf(&b, "Upcoming income: %s\n", snap.UpcomingIncome.StringFixed(2))
	fmt.Fprintf(&b, "Upcoming expenses: %s\n\n", snap.UpcomingExpenses.StringFixed(2))

	if len(in.Plans) > 0 {
		b.WriteString("Recurring plans:\n")
		plans := append([]domain.RecurringPlan(nil), in.Plans...)
		sort.Slice(plans, func(i, j int) bool { return plans[i].Description < plans[j].Description })
		for _, p := range plans {
			fmt.Fprintf(&b, "  - %s: %s %s, %s from %s\n", p.Description, p.Type, p.Amount.StringFixed(2), p.Frequency, p.StartDate)
		}
		b.WriteString("\n")
	}

	txs := append([]domain.Transaction(nil), in.Transactions...)
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })
	if len(txs) > maxPromptTransactions {
		txs = txs[:maxPromptTransactions]
	}
	if len(txs) > 0 {
		b.WriteString("Recent transactions:\n")
		for _, tx := range txs {
			fmt.Fprintf(&b, "  - %s %s %s (%s)\n", tx.Date, tx.Description, tx.SignedAmount().StringFixed(2), categoryOf(tx))
		}
		b.WriteString("\n")
		writeCategoryTotals(&b, txs)
	}

	return b.String()
}

func categoryOf(tx domain.Transaction) string {
	if tx.Category == "" {
		return "Uncategorized"
	}
	return tx.Category
}

func writeCategoryTotals(b *strings.Builder, txs []domain.Transaction) {
	totals := map[string]decimal.Decimal{}
	for _, tx := range txs {
		if tx.Type != domain.Expense {
			continue
		}
		cat := categoryOf(tx)
		totals[cat] = totals[cat].Add(tx.Amount)
	}
	if len(totals) == 0 {
		return
	}

	cats := make([]string, 0, len(totals))
	for cat := range totals {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	b.WriteString("Spending by category:\n")
	for _, cat := range cats {
		fmt.Fprintf(b, "  - %s: %s\n", cat, totals[cat].StringFixed(2))
	}
}

// cleanModelText strips code fences the model may add despite instructions.
func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
