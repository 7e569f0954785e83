// Package guard holds the ledger's integrity predicates.
//
// The same functions run in the engine before a unit of work commits and in
// the memory store when it commits or loads a snapshot; the PostgreSQL schema
// carries equivalent named CHECK constraints. Every predicate returns an
// *apperror.AppError so callers can surface it unchanged.
package guard

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"core-ledger/internal/core/domain"
	"core-ledger/pkg/apperror"
	"core-ledger/pkg/money"
)

// MaxNameLength bounds account names in runes.
const MaxNameLength = 100

// NormalizeName trims name and rejects empty or over-long labels.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.Validation("Account name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", apperror.Validation("Account name is too long")
	}
	return name, nil
}

// NormalizeDescription trims desc, drops control characters and enforces
// maxLen runes. maxLen <= 0 disables the length check.
func NormalizeDescription(desc string, maxLen int) (string, error) {
	desc = strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, desc))
	if maxLen > 0 && utf8.RuneCountInString(desc) > maxLen {
		return "", apperror.Validation("Description is too long")
	}
	return desc, nil
}

// CheckAmount rejects zero and negative transaction amounts.
func CheckAmount(amount money.Money) error {
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount("Amount must be positive")
	}
	return nil
}

// CheckInitialBalance rejects a negative opening balance.
func CheckInitialBalance(balance money.Money) error {
	if balance.IsNegative() {
		return apperror.ErrInvalidAmount("Initial balance cannot be negative")
	}
	return nil
}

// CheckBalance rejects a negative resulting balance.
func CheckBalance(balance money.Money) error {
	if balance.IsNegative() {
		return apperror.ErrInsufficientFunds()
	}
	return nil
}

// CheckTransfer rejects a transfer whose source and destination coincide.
func CheckTransfer(fromID, toID int64) error {
	if fromID == toID {
		return apperror.ErrSelfTransfer()
	}
	return nil
}

// CheckDeletable rejects deleting an account that still holds funds.
func CheckDeletable(a *domain.Account) error {
	if !a.Balance.IsZero() {
		return apperror.ErrAccountNotEmpty()
	}
	return nil
}

// CheckAccount validates a whole account record.
func CheckAccount(a *domain.Account) error {
	if strings.TrimSpace(a.Name) == "" {
		return apperror.Validation("Account name cannot be empty")
	}
	return CheckBalance(a.Balance)
}

// CheckTransaction validates a whole log entry: kind, positive amount and
// the account references each kind requires.
func CheckTransaction(t *domain.Transaction) error {
	if !t.Kind.Valid() {
		return apperror.Validation("Invalid transaction kind: " + string(t.Kind))
	}
	if err := CheckAmount(t.Amount); err != nil {
		return err
	}

	switch t.Kind {
	case domain.TransactionKindDeposit:
		if t.FromAccountID != nil || t.ToAccountID == nil {
			return apperror.Validation("Deposit must reference only a destination account")
		}
	case domain.TransactionKindWithdrawal:
		if t.FromAccountID == nil || t.ToAccountID != nil {
			return apperror.Validation("Withdrawal must reference only a source account")
		}
	case domain.TransactionKindTransfer:
		if t.FromAccountID == nil || t.ToAccountID == nil {
			return apperror.Validation("Transfer must reference both accounts")
		}
		return CheckTransfer(*t.FromAccountID, *t.ToAccountID)
	}
	return nil
}
