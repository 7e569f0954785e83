package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor using pgxpool.Pool.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin starts a new database transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("begin: %w", err))
	}
	return &ledgerTx{Tx: tx}, nil
}

// ledgerTx maps commit-time failures (serialization, deadlock, deferred
// constraints) to ledger errors.
type ledgerTx struct {
	pgx.Tx
}

func (t *ledgerTx) Commit(ctx context.Context) error {
	if err := t.Tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}
