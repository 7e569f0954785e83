package memory

import (
	"context"
	"errors"
	"fmt"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/guard"
	"core-ledger/pkg/apperror"
	"core-ledger/pkg/money"

	"github.com/jackc/pgx/v5"
)

var errTxClosed = errors.New("memory: unit of work already closed")

// Tx is a staged unit of work. It satisfies pgx.Tx so the engine can treat
// every store alike, but only Commit and Rollback are implemented; the
// repositories in this package recognise it and stage their writes on it.
type Tx struct {
	pgx.Tx

	store       *Store
	base        *state
	baseVersion uint64

	accounts      map[int64]domain.Account
	deleted       map[int64]domain.Account
	appended      []domain.Transaction
	nextAccountID int64
	nextTxID      int64
	closed        bool
}

func newTx(s *Store, base *state, version uint64) *Tx {
	accounts := make(map[int64]domain.Account, len(base.accounts))
	for id, a := range base.accounts {
		accounts[id] = a
	}
	return &Tx{
		store:         s,
		base:          base,
		baseVersion:   version,
		accounts:      accounts,
		deleted:       make(map[int64]domain.Account),
		nextAccountID: base.nextAccountID,
		nextTxID:      base.nextTxID,
	}
}

// Commit validates the staged state, persists it and publishes it to
// readers. Nothing is visible before Commit returns nil.
func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return errTxClosed
	}
	defer t.close()

	if err := ctx.Err(); err != nil {
		return apperror.ErrStorage(err)
	}
	if err := t.validate(); err != nil {
		return err
	}

	next := &state{
		accounts:      t.accounts,
		transactions:  appendTransactions(t.base.transactions, t.appended),
		nextAccountID: t.nextAccountID,
		nextTxID:      t.nextTxID,
	}

	s := t.store
	s.mu.RLock()
	stale := s.version != t.baseVersion
	s.mu.RUnlock()
	if stale {
		return apperror.ErrStorage(errors.New("memory: snapshot changed during unit of work"))
	}

	var stamp fileStamp
	if s.path != "" {
		var err error
		if stamp, err = s.save(next); err != nil {
			return apperror.ErrStorage(err)
		}
	}

	s.mu.Lock()
	s.state = next
	s.version++
	if s.path != "" {
		s.stamp = stamp
	}
	s.mu.Unlock()
	return nil
}

// Rollback discards the staged state. It is safe to call after Commit.
func (t *Tx) Rollback(_ context.Context) error {
	if t.closed {
		return nil
	}
	t.close()
	return nil
}

func (t *Tx) close() {
	t.closed = true
	t.store.release()
}

// validate runs the guard over everything the unit of work touched and
// checks that each touched balance moved by exactly the sum of its new log
// entries.
func (t *Tx) validate() error {
	effects := make(map[int64]money.Money)
	for i := range t.appended {
		entry := &t.appended[i]
		if err := guard.CheckTransaction(entry); err != nil {
			return err
		}
		if entry.FromAccountID != nil {
			id := *entry.FromAccountID
			effects[id] = effects[id].Add(entry.EffectOn(id))
		}
		if entry.ToAccountID != nil {
			id := *entry.ToAccountID
			effects[id] = effects[id].Add(entry.EffectOn(id))
		}
	}

	for id, acct := range t.deleted {
		if err := guard.CheckDeletable(&acct); err != nil {
			return err
		}
		if _, ok := effects[id]; ok {
			return apperror.Validation(fmt.Sprintf("Account %d deleted in the same unit of work that moved funds", id))
		}
	}

	for id, acct := range t.accounts {
		before, existed := t.base.accounts[id]
		if existed && before.Balance.Equal(acct.Balance) && before.Name == acct.Name {
			if e, moved := effects[id]; moved && !e.IsZero() {
				return apperror.Validation(fmt.Sprintf("Account %d balance does not reflect its log entries", id))
			}
			continue
		}
		if err := guard.CheckAccount(&acct); err != nil {
			return err
		}
		var previous money.Money
		if existed {
			previous = before.Balance
		}
		if !acct.Balance.Sub(previous).Equal(effects[id]) {
			return apperror.Validation(fmt.Sprintf("Account %d balance does not reflect its log entries", id))
		}
	}

	for id := range effects {
		if _, ok := t.accounts[id]; !ok {
			return apperror.ErrNotFound("Account")
		}
	}
	return nil
}

// appendTransactions may write past len(base) in base's backing array.
// Readers of older states only index below their own length, and there is
// a single writer, so the shared array is never read and written at the
// same index.
func appendTransactions(base, added []domain.Transaction) []domain.Transaction {
	if len(added) == 0 {
		return base
	}
	return append(base, added...)
}

// asTx unwraps a unit of work opened by this package.
func asTx(s *Store, tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil || t.store != s {
		return nil, fmt.Errorf("memory: unit of work %T was not opened by this store", tx)
	}
	if t.closed {
		return nil, errTxClosed
	}
	return t, nil
}
