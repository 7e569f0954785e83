package postgres

import (
	"context"
	"fmt"

	"core-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, from_account_id, to_account_id, amount, kind, description, created_at`

// TransactionRepo implements ports.TransactionRepository. The table is
// append-only: a trigger rejects UPDATE and DELETE.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Append inserts a log entry within a database transaction.
func (r *TransactionRepo) Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (from_account_id, to_account_id, amount, kind, description)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`

	err := tx.QueryRow(ctx, query,
		t.FromAccountID, t.ToAccountID, t.Amount, string(t.Kind), t.Description,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return classify(fmt.Errorf("insert transaction: %w", err))
	}
	return nil
}

// ListByAccount returns the entries that touch accountID.
func (r *TransactionRepo) ListByAccount(ctx context.Context, accountID int64, order domain.HistoryOrder) ([]domain.Transaction, error) {
	direction := "DESC"
	if order == domain.OrderChronological {
		direction = "ASC"
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY id ` + direction

	return r.query(ctx, "list transactions by account", query, accountID)
}

// ListAll returns the whole log in id order.
func (r *TransactionRepo) ListAll(ctx context.Context) ([]domain.Transaction, error) {
	return r.query(ctx, "list transactions", `SELECT `+transactionColumns+` FROM transactions ORDER BY id`)
}

// ListRecent returns at most limit entries, newest first.
func (r *TransactionRepo) ListRecent(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		return r.query(ctx, "list recent transactions", `SELECT `+transactionColumns+` FROM transactions ORDER BY id DESC`)
	}
	return r.query(ctx, "list recent transactions",
		`SELECT `+transactionColumns+` FROM transactions ORDER BY id DESC LIMIT $1`, limit)
}

func (r *TransactionRepo) query(ctx context.Context, op, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0)
	for rows.Next() {
		var t domain.Transaction
		var kind string
		if err := rows.Scan(
			&t.ID, &t.FromAccountID, &t.ToAccountID, &t.Amount,
			&kind, &t.Description, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		t.Kind = domain.TransactionKind(kind)
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}
