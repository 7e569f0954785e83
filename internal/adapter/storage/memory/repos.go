package memory

import (
	"context"
	"time"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"
	"core-ledger/pkg/money"

	"github.com/jackc/pgx/v5"
)

// --- Accounts ---

// AccountRepo implements ports.AccountRepository on a Store.
type AccountRepo struct {
	store *Store
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(store *Store) *AccountRepo {
	return &AccountRepo{store: store}
}

// GetByID returns a committed account, or nil, nil.
func (r *AccountRepo) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	st, err := r.store.committed()
	if err != nil {
		return nil, err
	}
	a, ok := st.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// GetByName returns the committed account named name, or nil, nil.
func (r *AccountRepo) GetByName(_ context.Context, name string) (*domain.Account, error) {
	st, err := r.store.committed()
	if err != nil {
		return nil, err
	}
	for _, a := range st.accounts {
		if a.Name == name {
			return &a, nil
		}
	}
	return nil, nil
}

// List returns committed accounts in creation order.
func (r *AccountRepo) List(_ context.Context) ([]domain.Account, error) {
	st, err := r.store.committed()
	if err != nil {
		return nil, err
	}
	return st.accountList(), nil
}

// Create stages a new account, assigning its ID and CreatedAt.
func (r *AccountRepo) Create(_ context.Context, tx pgx.Tx, account *domain.Account) error {
	t, err := asTx(r.store, tx)
	if err != nil {
		return err
	}
	account.ID = t.nextAccountID
	account.CreatedAt = time.Now().UTC()
	t.nextAccountID++
	t.accounts[account.ID] = *account
	return nil
}

// GetByIDForUpdate reads the account as staged in tx. The Store admits one
// unit of work at a time, so the row is already exclusively held.
func (r *AccountRepo) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id int64) (*domain.Account, error) {
	t, err := asTx(r.store, tx)
	if err != nil {
		return nil, err
	}
	a, ok := t.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// NameExists reports whether a live account already uses name.
func (r *AccountRepo) NameExists(_ context.Context, tx pgx.Tx, name string) (bool, error) {
	t, err := asTx(r.store, tx)
	if err != nil {
		return false, err
	}
	for _, a := range t.accounts {
		if a.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// UpdateBalance stages a new balance.
func (r *AccountRepo) UpdateBalance(_ context.Context, tx pgx.Tx, id int64, balance money.Money) error {
	t, err := asTx(r.store, tx)
	if err != nil {
		return err
	}
	a, ok := t.accounts[id]
	if !ok {
		return ports.ErrNotFound
	}
	a.Balance = balance
	t.accounts[id] = a
	return nil
}

// Delete stages the removal of an account.
func (r *AccountRepo) Delete(_ context.Context, tx pgx.Tx, id int64) error {
	t, err := asTx(r.store, tx)
	if err != nil {
		return err
	}
	a, ok := t.accounts[id]
	if !ok {
		return ports.ErrNotFound
	}
	delete(t.accounts, id)
	t.deleted[id] = a
	return nil
}

// --- Transactions ---

// TransactionRepo implements ports.TransactionRepository on a Store.
type TransactionRepo struct {
	store *Store
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(store *Store) *TransactionRepo {
	return &TransactionRepo{store: store}
}

// Append stages a log entry, assigning its ID and CreatedAt.
func (r *TransactionRepo) Append(_ context.Context, tx pgx.Tx, transaction *domain.Transaction) error {
	t, err := asTx(r.store, tx)
	if err != nil {
		return err
	}
	transaction.ID = t.nextTxID
	transaction.CreatedAt = time.Now().UTC()
	t.nextTxID++
	t.appended = append(t.appended, *transaction)
	return nil
}

// ListByAccount returns the committed entries touching accountID.
func (r *TransactionRepo) ListByAccount(_ context.Context, accountID int64, order domain.HistoryOrder) ([]domain.Transaction, error) {
	st, err := r.store.committed()
	if err != nil {
		return nil, err
	}
	result := make([]domain.Transaction, 0)
	for i := range st.transactions {
		if st.transactions[i].Involves(accountID) {
			result = append(result, st.transactions[i])
		}
	}
	if order != domain.OrderChronological {
		reverse(result)
	}
	return result, nil
}

// ListAll returns a copy of the committed log in id order.
func (r *TransactionRepo) ListAll(_ context.Context) ([]domain.Transaction, error) {
	st, err := r.store.committed()
	if err != nil {
		return nil, err
	}
	return append([]domain.Transaction(nil), st.transactions...), nil
}

// ListRecent returns at most limit entries, newest first.
func (r *TransactionRepo) ListRecent(_ context.Context, limit int) ([]domain.Transaction, error) {
	st, err := r.store.committed()
	if err != nil {
		return nil, err
	}
	n := len(st.transactions)
	if limit <= 0 || limit > n {
		limit = n
	}
	result := append([]domain.Transaction(nil), st.transactions[n-limit:]...)
	reverse(result)
	return result, nil
}

func reverse(ts []domain.Transaction) {
	for i, j := 0, len(ts)-1; i < j; i, j = i+1, j-1 {
		ts[i], ts[j] = ts[j], ts[i]
	}
}
