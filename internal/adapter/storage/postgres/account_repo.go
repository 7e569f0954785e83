package postgres

import (
	"context"
	"errors"
	"fmt"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"
	"core-ledger/pkg/money"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, name, balance, created_at`

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts an account and reads back its generated id and timestamp.
func (r *AccountRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	query := `INSERT INTO accounts (name, balance) VALUES ($1, $2) RETURNING id, created_at`

	err := tx.QueryRow(ctx, query, a.Name, a.Balance).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return classify(fmt.Errorf("insert account: %w", err))
	}
	return nil
}

// GetByID fetches an account (without locking).
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by id: %w", err)
	}
	return a, nil
}

// GetByName fetches the live account with exactly this name.
func (r *AccountRepo) GetByName(ctx context.Context, name string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE name = $1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by name: %w", err)
	}
	return a, nil
}

// GetByIDForUpdate fetches an account with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	a, err := scanAccount(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(fmt.Errorf("get account for update: %w", err))
	}
	return a, nil
}

// NameExists reports whether a live account already uses name.
func (r *AccountRepo) NameExists(ctx context.Context, tx pgx.Tx, name string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check account name: %w", err)
	}
	return exists, nil
}

// List returns all accounts in creation order.
func (r *AccountRepo) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}
	return accounts, nil
}

// UpdateBalance sets an account's balance within a transaction. The
// accounts_balance_non_negative constraint rejects a negative value.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id int64, balance money.Money) error {
	tag, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, balance, id)
	if err != nil {
		return classify(fmt.Errorf("update account balance: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", id, ports.ErrNotFound)
	}
	return nil
}

// Delete removes an account. The accounts_delete_requires_zero_balance
// trigger rejects the delete while funds remain.
func (r *AccountRepo) Delete(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return classify(fmt.Errorf("delete account: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", id, ports.ErrNotFound)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	if err := row.Scan(&a.ID, &a.Name, &a.Balance, &a.CreatedAt); err != nil {
		return nil, err
	}
	return a, nil
}
