package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"core-ledger/internal/adapter/storage/memory"
	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/guard"
	"core-ledger/internal/core/ports"
	"core-ledger/pkg/apperror"
	"core-ledger/pkg/money"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLedger struct {
	svc      *LedgerServiceImpl
	accounts *memory.AccountRepo
	txns     *memory.TransactionRepo
}

func newMemoryLedger(t *testing.T) *memoryLedger {
	t.Helper()
	store := memory.NewVolatile()
	accounts := memory.NewAccountRepo(store)
	txns := memory.NewTransactionRepo(store)
	return &memoryLedger{
		svc: NewLedgerService(accounts, txns, store, LedgerOptions{
			Money:          money.DefaultContext(),
			MaxDescription: 255,
		}, zerolog.Nop()),
		accounts: accounts,
		txns:     txns,
	}
}

func (l *memoryLedger) create(t *testing.T, name, balance string) *domain.Account {
	t.Helper()
	a, err := l.svc.CreateAccount(context.Background(), ports.CreateAccountRequest{Name: name, InitialBalance: balance})
	require.NoError(t, err)
	return a
}

func (l *memoryLedger) assertReconciled(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	accounts, err := l.accounts.List(ctx)
	require.NoError(t, err)
	log, err := l.txns.ListAll(ctx)
	require.NoError(t, err)

	for _, a := range accounts {
		assert.False(t, a.Balance.IsNegative(), "account %d negative", a.ID)
	}
	rec := guard.Reconcile(accounts, log)
	assert.True(t, rec.Consistent, "stored balances diverge from the log: %+v", rec.Accounts)
}

func TestLedger_TransferScenario(t *testing.T) {
	l := newMemoryLedger(t)
	ctx := context.Background()

	a := l.create(t, "A", "1000.00")
	b := l.create(t, "B", "0.00")
	before, err := l.txns.ListAll(ctx)
	require.NoError(t, err)

	_, err = l.svc.Transfer(ctx, ports.TransferRequest{FromAccountID: a.ID, ToAccountID: b.ID, Amount: "300.00"})
	require.NoError(t, err)

	gotA, _ := l.svc.GetAccount(ctx, a.ID)
	gotB, _ := l.svc.GetAccount(ctx, b.ID)
	assert.Equal(t, "700.00", gotA.Balance.String())
	assert.Equal(t, "300.00", gotB.Balance.String())

	after, err := l.txns.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)
	last := after[len(after)-1]
	assert.Equal(t, domain.TransactionKindTransfer, last.Kind)
	assert.Equal(t, a.ID, *last.FromAccountID)
	assert.Equal(t, b.ID, *last.ToAccountID)
	assert.Equal(t, "300.00", last.Amount.String())

	l.assertReconciled(t)
}

func TestLedger_OverdraftLeavesNoTrace(t *testing.T) {
	l := newMemoryLedger(t)
	ctx := context.Background()

	c := l.create(t, "C", "50.00")
	before, _ := l.txns.ListAll(ctx)

	_, err := l.svc.Withdraw(ctx, ports.MovementRequest{AccountID: c.ID, Amount: "75.00"})
	assert.True(t, apperror.IsKind(err, apperror.KindInsufficientFunds))

	got, _ := l.svc.GetAccount(ctx, c.ID)
	assert.Equal(t, "50.00", got.Balance.String())
	after, _ := l.txns.ListAll(ctx)
	assert.Len(t, after, len(before))
}

func TestLedger_SelfTransferLeavesNoTrace(t *testing.T) {
	l := newMemoryLedger(t)
	ctx := context.Background()

	a := l.create(t, "A", "10.00")
	_, err := l.svc.Transfer(ctx, ports.TransferRequest{FromAccountID: a.ID, ToAccountID: a.ID, Amount: "1"})
	assert.True(t, apperror.IsKind(err, apperror.KindSelfTransfer))

	history, err := l.svc.GetHistory(ctx, a.ID, domain.OrderNewestFirst)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLedger_DeleteLifecycle(t *testing.T) {
	l := newMemoryLedger(t)
	ctx := context.Background()

	a := l.create(t, "A", "5.00")
	err := l.svc.DeleteAccount(ctx, a.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindAccountNotEmpty))

	_, err = l.svc.Withdraw(ctx, ports.MovementRequest{AccountID: a.ID, Amount: "5.00"})
	require.NoError(t, err)
	require.NoError(t, l.svc.DeleteAccount(ctx, a.ID))

	_, err = l.svc.GetAccount(ctx, a.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	_, err = l.svc.GetHistory(ctx, a.ID, domain.OrderNewestFirst)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	// Historical entries stay in the log.
	log, _ := l.txns.ListAll(ctx)
	assert.Len(t, log, 2)

	_, err = l.svc.GetAccountByName(ctx, "A")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	// The name is free again.
	again := l.create(t, "A", "0")
	assert.Greater(t, again.ID, a.ID)
	byName, err := l.svc.GetAccountByName(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, again.ID, byName.ID)
}

func TestLedger_RepeatedSmallDepositsAreExact(t *testing.T) {
	l := newMemoryLedger(t)
	ctx := context.Background()

	acct := l.create(t, "Jar", "0")
	for i := 0; i < 10000; i++ {
		_, err := l.svc.Deposit(ctx, ports.MovementRequest{AccountID: acct.ID, Amount: "0.10"})
		require.NoError(t, err)
	}

	got, err := l.svc.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", got.Balance.String())
	l.assertReconciled(t)
}

func TestLedger_RandomOperationsPreserveInvariants(t *testing.T) {
	l := newMemoryLedger(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	ids := make([]int64, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, l.create(t, fmt.Sprintf("acct-%d", i), fmt.Sprintf("%d.00", rng.Intn(500))).ID)
	}

	for i := 0; i < 2000; i++ {
		amount := fmt.Sprintf("%d.%02d", rng.Intn(200), rng.Intn(100))
		from, to := ids[rng.Intn(len(ids))], ids[rng.Intn(len(ids))]

		var err error
		switch rng.Intn(3) {
		case 0:
			_, err = l.svc.Deposit(ctx, ports.MovementRequest{AccountID: to, Amount: amount})
		case 1:
			_, err = l.svc.Withdraw(ctx, ports.MovementRequest{AccountID: from, Amount: amount})
		default:
			_, err = l.svc.Transfer(ctx, ports.TransferRequest{FromAccountID: from, ToAccountID: to, Amount: amount})
		}
		if err != nil {
			kind := apperror.KindOf(err)
			assert.Contains(t, []apperror.Kind{
				apperror.KindInsufficientFunds, apperror.KindSelfTransfer, apperror.KindInvalidInput,
			}, kind, "unexpected failure: %v", err)
		}
	}

	l.assertReconciled(t)
}

func TestLedger_ConcurrentTransfersNeverObservedHalfApplied(t *testing.T) {
	l := newMemoryLedger(t)
	ctx := context.Background()

	a := l.create(t, "A", "1000.00")
	b := l.create(t, "B", "1000.00")
	total := money.RequireFromString("2000.00")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				from, to := a.ID, b.ID
				if (w+i)%2 == 0 {
					from, to = to, from
				}
				_, _ = l.svc.Transfer(ctx, ports.TransferRequest{FromAccountID: from, ToAccountID: to, Amount: "1.00"})
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		accounts, err := l.svc.ListAccounts(ctx)
		require.NoError(t, err)
		sum := money.Zero()
		for _, acct := range accounts {
			sum = sum.Add(acct.Balance)
		}
		require.True(t, sum.Equal(total), "observed total %s", sum)

		select {
		case <-done:
			l.assertReconciled(t)
			return
		default:
		}
	}
}
