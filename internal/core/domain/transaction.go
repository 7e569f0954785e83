package domain

import (
	"time"

	"core-ledger/pkg/money"
)

// TransactionKind represents the kind of money movement.
type TransactionKind string

const (
	TransactionKindDeposit    TransactionKind = "DEPOSIT"
	TransactionKindWithdrawal TransactionKind = "WITHDRAWAL"
	TransactionKindTransfer   TransactionKind = "TRANSFER"
)

// Valid reports whether k is one of the three known kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionKindDeposit, TransactionKindWithdrawal, TransactionKindTransfer:
		return true
	}
	return false
}

// HistoryOrder selects the order of an account history.
type HistoryOrder string

const (
	OrderNewestFirst   HistoryOrder = "desc"
	OrderChronological HistoryOrder = "asc"
)

// ParseHistoryOrder maps a query value to an order, defaulting to newest first.
func ParseHistoryOrder(s string) (HistoryOrder, bool) {
	switch s {
	case "", "desc", "newest":
		return OrderNewestFirst, true
	case "asc", "chronological", "oldest":
		return OrderChronological, true
	}
	return "", false
}

// Transaction is an immutable ledger entry. Deposits carry only ToAccountID,
// withdrawals only FromAccountID, transfers both.
type Transaction struct {
	ID            int64           `json:"id"`
	FromAccountID *int64          `json:"from_account_id,omitempty"`
	ToAccountID   *int64          `json:"to_account_id,omitempty"`
	Amount        money.Money     `json:"amount"`
	Kind          TransactionKind `json:"kind"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Involves reports whether the entry references the account on either side.
func (t *Transaction) Involves(accountID int64) bool {
	return isID(t.FromAccountID, accountID) || isID(t.ToAccountID, accountID)
}

// EffectOn returns the signed change this entry applies to the account's
// balance: +amount as destination, -amount as source, zero otherwise.
func (t *Transaction) EffectOn(accountID int64) money.Money {
	switch {
	case isID(t.ToAccountID, accountID):
		return t.Amount
	case isID(t.FromAccountID, accountID):
		return t.Amount.Neg()
	}
	return money.Zero()
}

// ID returns a pointer to id, for building optional account references.
func ID(id int64) *int64 {
	return &id
}

func isID(ref *int64, id int64) bool {
	return ref != nil && *ref == id
}
