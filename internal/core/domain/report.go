package domain

import (
	"time"

	"core-ledger/pkg/money"
)

// TransactionView is a log entry with the names of the accounts it touches.
// A name is empty when the account has since been deleted.
type TransactionView struct {
	Transaction
	FromAccountName string `json:"from_account_name,omitempty"`
	ToAccountName   string `json:"to_account_name,omitempty"`
}

// Dashboard is the overview shown by the API and the CLI report.
type Dashboard struct {
	Currency              string                  `json:"currency"`
	TotalBalance          money.Money             `json:"total_balance"`
	TotalAccounts         int                     `json:"total_accounts"`
	TransactionsToday     int                     `json:"transactions_today"`
	TransactionsThisMonth int                     `json:"transactions_this_month"`
	CountsByKind          map[TransactionKind]int `json:"counts_by_kind"`
	RecentTransactions    []TransactionView       `json:"recent_transactions"`
	Accounts              []Account               `json:"accounts"`
	GeneratedAt           time.Time               `json:"generated_at"`
}

// MonthlySummary aggregates one kind of entry over one calendar month.
type MonthlySummary struct {
	Month string          `json:"month"` // YYYY-MM
	Kind  TransactionKind `json:"kind"`
	Count int             `json:"count"`
	Sum   money.Money     `json:"sum"`
	Avg   money.Money     `json:"avg"`
	Min   money.Money     `json:"min"`
	Max   money.Money     `json:"max"`
}

// CashflowDay is money entering (deposits) and leaving (withdrawals) the
// ledger on one day. Transfers move money between accounts and are ignored.
type CashflowDay struct {
	Date    string      `json:"date"` // YYYY-MM-DD
	Inflow  money.Money `json:"inflow"`
	Outflow money.Money `json:"outflow"`
	Net     money.Money `json:"net"`
	Count   int         `json:"count"`
}

// KPIs are ledger-wide indicators.
type KPIs struct {
	TotalAccounts            int         `json:"total_accounts"`
	TotalBalance             money.Money `json:"total_balance"`
	TotalTransactions        int         `json:"total_transactions"`
	TransactionsToday        int         `json:"transactions_today"`
	TransactionsThisMonth    int         `json:"transactions_this_month"`
	AverageBalance           money.Money `json:"average_balance"`
	AverageTransactionAmount money.Money `json:"average_transaction_amount"`
}

// AccountReconciliation compares a stored balance with the one derived from
// the transaction log alone.
type AccountReconciliation struct {
	AccountID  int64       `json:"account_id"`
	Name       string      `json:"name"`
	Stored     money.Money `json:"stored"`
	Derived    money.Money `json:"derived"`
	Difference money.Money `json:"difference"`
	Consistent bool        `json:"consistent"`
}

// Reconciliation is the result of checking every live account.
type Reconciliation struct {
	Accounts   []AccountReconciliation `json:"accounts"`
	Consistent bool                    `json:"consistent"`
	CheckedAt  time.Time               `json:"checked_at"`
}
