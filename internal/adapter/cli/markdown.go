package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"
	"core-ledger/pkg/money"
)

const timeLayout = "2006-01-02 15:04"

// cell escapes the characters that would break a markdown table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func localTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}

func accountsMarkdown(accounts []domain.Account, currency string) string {
	var b strings.Builder
	b.WriteString("# Accounts\n\n")
	if len(accounts) == 0 {
		b.WriteString("No accounts yet.\n")
		return b.String()
	}
	b.WriteString("| ID | Name | Balance | Created |\n|---:|---|---:|---|\n")
	total := money.Zero()
	for _, a := range accounts {
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", a.ID, cell(a.Name), a.Balance.Display(currency), localTime(a.CreatedAt))
		total = total.Add(a.Balance)
	}
	fmt.Fprintf(&b, "\n**Total:** %s across %d accounts\n", total.Display(currency), len(accounts))
	return b.String()
}

func accountMarkdown(a *domain.Account, currency string) string {
	return fmt.Sprintf("# %s\n\n- **ID:** %d\n- **Balance:** %s\n- **Created:** %s\n",
		cell(a.Name), a.ID, a.Balance.Display(currency), localTime(a.CreatedAt))
}

// historyMarkdown shows entries from the account's point of view: money in
// is positive, money out negative.
func historyMarkdown(account *domain.Account, history []domain.Transaction, names map[int64]domain.Account, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# History of %s\n\n", cell(account.Name))
	if len(history) == 0 {
		b.WriteString("No transactions.\n")
		return b.String()
	}
	b.WriteString("| ID | Date | Kind | Counterparty | Amount | Description |\n|---:|---|---|---|---:|---|\n")
	for _, t := range history {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
			t.ID, localTime(t.CreatedAt), t.Kind, cell(counterparty(t, account.ID, names)),
			signed(t.EffectOn(account.ID), currency), cell(t.Description))
	}
	return b.String()
}

func counterparty(t domain.Transaction, self int64, names map[int64]domain.Account) string {
	var other *int64
	switch {
	case t.Kind != domain.TransactionKindTransfer:
		return ""
	case t.FromAccountID != nil && *t.FromAccountID != self:
		other = t.FromAccountID
	default:
		other = t.ToAccountID
	}
	if a, ok := names[*other]; ok {
		return a.Name
	}
	return fmt.Sprintf("#%d (deleted)", *other)
}

func signed(m money.Money, currency string) string {
	if m.IsNegative() {
		return "-" + m.Abs().Display(currency)
	}
	return "+" + m.Display(currency)
}

func receiptMarkdown(r *ports.Receipt, currency string) string {
	var b strings.Builder
	t := r.Transaction
	fmt.Fprintf(&b, "## %s #%d committed\n\n", t.Kind, t.ID)
	fmt.Fprintf(&b, "- **Amount:** %s\n", t.Amount.Display(currency))
	if t.Description != "" {
		fmt.Fprintf(&b, "- **Description:** %s\n", t.Description)
	}
	fmt.Fprintf(&b, "- **At:** %s\n\n", localTime(t.CreatedAt))
	b.WriteString("| Account | Balance |\n|---|---:|\n")
	for _, a := range r.Accounts {
		fmt.Fprintf(&b, "| %s | %s |\n", cell(a.Name), a.Balance.Display(currency))
	}
	return b.String()
}

func dashboardMarkdown(d *domain.Dashboard, k *domain.KPIs, monthly []domain.MonthlySummary) string {
	cur := d.Currency
	var b strings.Builder
	b.WriteString("# Ledger report\n\n")
	fmt.Fprintf(&b, "Generated %s\n\n", localTime(d.GeneratedAt))

	b.WriteString("## Key figures\n\n| Figure | Value |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Total balance | %s |\n", d.TotalBalance.Display(cur))
	fmt.Fprintf(&b, "| Accounts | %d |\n", d.TotalAccounts)
	fmt.Fprintf(&b, "| Transactions | %d |\n", k.TotalTransactions)
	fmt.Fprintf(&b, "| Today | %d |\n", d.TransactionsToday)
	fmt.Fprintf(&b, "| This month | %d |\n", d.TransactionsThisMonth)
	fmt.Fprintf(&b, "| Average balance | %s |\n", k.AverageBalance.Display(cur))
	fmt.Fprintf(&b, "| Average transaction | %s |\n\n", k.AverageTransactionAmount.Display(cur))

	if len(d.CountsByKind) > 0 {
		kinds := make([]string, 0, len(d.CountsByKind))
		for kind := range d.CountsByKind {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)
		b.WriteString("## By kind\n\n| Kind | Count |\n|---|---:|\n")
		for _, kind := range kinds {
			fmt.Fprintf(&b, "| %s | %d |\n", kind, d.CountsByKind[domain.TransactionKind(kind)])
		}
		b.WriteString("\n")
	}

	if len(monthly) > 0 {
		b.WriteString("## Monthly summary\n\n| Month | Kind | Count | Sum | Avg | Min | Max |\n|---|---|---:|---:|---:|---:|---:|\n")
		for _, s := range monthly {
			fmt.Fprintf(&b, "| %s | %s | %d | %s | %s | %s | %s |\n", s.Month, s.Kind, s.Count,
				s.Sum.Display(cur), s.Avg.Display(cur), s.Min.Display(cur), s.Max.Display(cur))
		}
		b.WriteString("\n")
	}

	if len(d.RecentTransactions) > 0 {
		b.WriteString("## Recent transactions\n\n| ID | Date | Kind | From | To | Amount |\n|---:|---|---|---|---|---:|\n")
		for _, v := range d.RecentTransactions {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n", v.ID, localTime(v.CreatedAt), v.Kind,
				cell(v.FromAccountName), cell(v.ToAccountName), v.Amount.Display(cur))
		}
	}
	return b.String()
}

func reconciliationMarkdown(r *domain.Reconciliation, currency string) string {
	var b strings.Builder
	b.WriteString("# Integrity check\n\n")
	if r.Consistent {
		b.WriteString("Every stored balance matches the transaction log.\n\n")
	} else {
		b.WriteString("**Stored balances diverge from the transaction log.**\n\n")
	}
	if len(r.Accounts) == 0 {
		return b.String()
	}
	b.WriteString("| ID | Name | Stored | From log | Difference | OK |\n|---:|---|---:|---:|---:|---|\n")
	for _, a := range r.Accounts {
		ok := "yes"
		if !a.Consistent {
			ok = "**no**"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n", a.AccountID, cell(a.Name),
			a.Stored.Display(currency), a.Derived.Display(currency), a.Difference.Display(currency), ok)
	}
	return b.String()
}

func simulationMarkdown(r *ports.SimulationResult) string {
	var b strings.Builder
	b.WriteString("# Simulation\n\n")
	fmt.Fprintf(&b, "- **Requested:** %d\n- **Committed:** %d\n", r.Requested, r.Committed)
	if len(r.Rejected) > 0 {
		codes := make([]string, 0, len(r.Rejected))
		for code := range r.Rejected {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		b.WriteString("\n| Rejected with | Count |\n|---|---:|\n")
		for _, code := range codes {
			fmt.Fprintf(&b, "| %s | %d |\n", code, r.Rejected[code])
		}
	}
	return b.String()
}
