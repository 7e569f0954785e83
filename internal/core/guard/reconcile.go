package guard

import (
	"fmt"
	"time"

	"core-ledger/internal/core/domain"
	"core-ledger/pkg/apperror"
	"core-ledger/pkg/money"
)

// Reconcile recomputes every account balance from the log alone, in the
// order given, and compares it with the stored one.
func Reconcile(accounts []domain.Account, log []domain.Transaction) *domain.Reconciliation {
	derived := make(map[int64]money.Money, len(accounts))
	for i := range log {
		t := &log[i]
		if t.FromAccountID != nil {
			derived[*t.FromAccountID] = derived[*t.FromAccountID].Add(t.EffectOn(*t.FromAccountID))
		}
		if t.ToAccountID != nil {
			derived[*t.ToAccountID] = derived[*t.ToAccountID].Add(t.EffectOn(*t.ToAccountID))
		}
	}

	result := &domain.Reconciliation{
		Accounts:   make([]domain.AccountReconciliation, 0, len(accounts)),
		Consistent: true,
		CheckedAt:  time.Now().UTC(),
	}
	for _, a := range accounts {
		d := derived[a.ID]
		row := domain.AccountReconciliation{
			AccountID:  a.ID,
			Name:       a.Name,
			Stored:     a.Balance,
			Derived:    d,
			Difference: a.Balance.Sub(d),
			Consistent: a.Balance.Equal(d),
		}
		if !row.Consistent {
			result.Consistent = false
		}
		result.Accounts = append(result.Accounts, row)
	}
	return result
}

// CheckLedger validates a whole persisted state: every account, every log
// entry, and that stored balances match the log.
func CheckLedger(accounts []domain.Account, log []domain.Transaction) error {
	for i := range accounts {
		if err := CheckAccount(&accounts[i]); err != nil {
			return fmt.Errorf("account %d: %w", accounts[i].ID, err)
		}
	}
	var lastID int64
	for i := range log {
		if err := CheckTransaction(&log[i]); err != nil {
			return fmt.Errorf("transaction %d: %w", log[i].ID, err)
		}
		if log[i].ID <= lastID {
			return fmt.Errorf("transaction %d: %w", log[i].ID, apperror.Validation("Transaction ids must be strictly increasing"))
		}
		lastID = log[i].ID
	}
	rec := Reconcile(accounts, log)
	if !rec.Consistent {
		for _, row := range rec.Accounts {
			if !row.Consistent {
				return fmt.Errorf("account %d: %w", row.AccountID,
					apperror.Validation(fmt.Sprintf("Stored balance %s does not match log-derived %s", row.Stored, row.Derived)))
			}
		}
	}
	return nil
}
