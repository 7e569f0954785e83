package ports

import (
	"context"
	"errors"

	"core-ledger/internal/core/domain"
	"core-ledger/pkg/money"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned by repository mutations whose target row is gone.
// Lookups return nil, nil instead.
var ErrNotFound = errors.New("record not found")

// AccountReader is the read-only view of accounts used by reporting and export.
type AccountReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	// GetByName matches the name exactly among live accounts.
	GetByName(ctx context.Context, name string) (*domain.Account, error)
	// List returns live accounts in creation order.
	List(ctx context.Context) ([]domain.Account, error)
}

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx run inside the engine's unit of work.
type AccountRepository interface {
	AccountReader
	// Create assigns ID and CreatedAt.
	Create(ctx context.Context, tx pgx.Tx, account *domain.Account) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Account, error)
	NameExists(ctx context.Context, tx pgx.Tx, name string) (bool, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id int64, balance money.Money) error
	Delete(ctx context.Context, tx pgx.Tx, id int64) error
}

// TransactionReader is the read-only view of the transaction log.
type TransactionReader interface {
	ListByAccount(ctx context.Context, accountID int64, order domain.HistoryOrder) ([]domain.Transaction, error)
	// ListAll returns every entry in canonical (id) order.
	ListAll(ctx context.Context) ([]domain.Transaction, error)
	// ListRecent returns at most limit entries, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.Transaction, error)
}

// TransactionRepository is the append-only transaction log.
type TransactionRepository interface {
	TransactionReader
	// Append assigns ID and CreatedAt.
	Append(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
}

// AuditRepository persists audit trail entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListRecent(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

// DBTransactor opens a unit of work.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
