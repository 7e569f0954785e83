package service

import (
	"context"
	"errors"
	"fmt"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/guard"
	"core-ledger/internal/core/ports"
	"core-ledger/pkg/apperror"
	"core-ledger/pkg/money"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerOptions configures a LedgerServiceImpl. Lock and Events are optional.
type LedgerOptions struct {
	Money          money.Context
	MaxDescription int
	Lock           ports.WriterLock
	Events         ports.EventPublisher
}

// LedgerServiceImpl implements ports.LedgerService. Every mutation is one
// unit of work: accounts are locked, the guard checks the resulting state,
// the balance update and its log entry are written, then the whole thing
// commits or rolls back.
type LedgerServiceImpl struct {
	accounts   ports.AccountRepository
	txns       ports.TransactionRepository
	transactor ports.DBTransactor
	lock       ports.WriterLock
	events     ports.EventPublisher
	money      money.Context
	maxDesc    int
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	accounts ports.AccountRepository,
	txns ports.TransactionRepository,
	transactor ports.DBTransactor,
	opts LedgerOptions,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		accounts:   accounts,
		txns:       txns,
		transactor: transactor,
		lock:       opts.Lock,
		events:     opts.Events,
		money:      opts.Money,
		maxDesc:    opts.MaxDescription,
		log:        log,
	}
}

// MoneyContext returns the precision and currency the engine works in.
func (s *LedgerServiceImpl) MoneyContext() money.Context {
	return s.money
}

// CreateAccount opens an account. A positive initial balance is recorded as
// a DEPOSIT in the same unit of work so the log alone explains it.
func (s *LedgerServiceImpl) CreateAccount(ctx context.Context, req ports.CreateAccountRequest) (*domain.Account, error) {
	name, err := guard.NormalizeName(req.Name)
	if err != nil {
		return nil, err
	}
	initial := s.money.Zero()
	if req.InitialBalance != "" {
		if initial, err = s.parseMoney(req.InitialBalance); err != nil {
			return nil, err
		}
	}
	if err := guard.CheckInitialBalance(initial); err != nil {
		return nil, err
	}

	account := &domain.Account{Name: name, Balance: initial}
	var genesis *domain.Transaction

	err = s.write(ctx, func(ctx context.Context) error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		taken, err := s.accounts.NameExists(ctx, dbTx, name)
		if err != nil {
			return storageError(err)
		}
		if taken {
			return apperror.ErrAccountNameTaken(name)
		}
		if err := guard.CheckAccount(account); err != nil {
			return err
		}
		if err := s.accounts.Create(ctx, dbTx, account); err != nil {
			return storageError(err)
		}

		if initial.IsPositive() {
			genesis = &domain.Transaction{
				ToAccountID: domain.ID(account.ID),
				Amount:      initial,
				Kind:        domain.TransactionKindDeposit,
				Description: fmt.Sprintf("Initial deposit for account '%s'", name),
			}
			if err := s.append(ctx, dbTx, genesis); err != nil {
				return err
			}
		}

		return commit(ctx, dbTx)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("account_id", account.ID).
		Str("name", account.Name).
		Str("balance", account.Balance.String()).
		Msg("account created")

	s.publish(ctx, domain.NewEvent(domain.EventAccountCreated, nil, *account))
	if genesis != nil {
		s.publish(ctx, domain.NewEvent(domain.EventTransactionCreated, genesis, *account))
	}
	return account, nil
}

// Deposit credits an account.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, req ports.MovementRequest) (*ports.Receipt, error) {
	return s.move(ctx, req, domain.TransactionKindDeposit)
}

// Withdraw debits an account, failing with InsufficientFunds rather than
// letting the balance go negative.
func (s *LedgerServiceImpl) Withdraw(ctx context.Context, req ports.MovementRequest) (*ports.Receipt, error) {
	return s.move(ctx, req, domain.TransactionKindWithdrawal)
}

func (s *LedgerServiceImpl) move(ctx context.Context, req ports.MovementRequest, kind domain.TransactionKind) (*ports.Receipt, error) {
	amount, err := s.parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	desc, err := guard.NormalizeDescription(req.Description, s.maxDesc)
	if err != nil {
		return nil, err
	}

	var receipt *ports.Receipt
	err = s.write(ctx, func(ctx context.Context) error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		account, err := s.lockAccount(ctx, dbTx, req.AccountID)
		if err != nil {
			return err
		}

		entry := &domain.Transaction{Amount: amount, Kind: kind, Description: desc}
		if kind == domain.TransactionKindDeposit {
			account.Balance = account.Balance.Add(amount)
			entry.ToAccountID = domain.ID(account.ID)
			if entry.Description == "" {
				entry.Description = "Deposit to " + account.Name
			}
		} else {
			account.Balance = account.Balance.Sub(amount)
			entry.FromAccountID = domain.ID(account.ID)
			if entry.Description == "" {
				entry.Description = "Withdrawal from " + account.Name
			}
		}

		if err := guard.CheckBalance(account.Balance); err != nil {
			return err
		}
		if err := s.updateBalance(ctx, dbTx, account); err != nil {
			return err
		}
		if err := s.append(ctx, dbTx, entry); err != nil {
			return err
		}
		if err := commit(ctx, dbTx); err != nil {
			return err
		}

		receipt = &ports.Receipt{Transaction: *entry, Accounts: []domain.Account{*account}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("kind", string(kind)).
		Int64("tx_id", receipt.Transaction.ID).
		Int64("account_id", req.AccountID).
		Str("amount", amount.String()).
		Msg("transaction committed")

	s.publish(ctx, domain.NewEvent(domain.EventTransactionCreated, &receipt.Transaction, receipt.Accounts...))
	return receipt, nil
}

// Transfer moves money between two accounts. The debit, the credit and the
// single TRANSFER entry commit together or not at all.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.Receipt, error) {
	if err := guard.CheckTransfer(req.FromAccountID, req.ToAccountID); err != nil {
		return nil, err
	}
	amount, err := s.parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	desc, err := guard.NormalizeDescription(req.Description, s.maxDesc)
	if err != nil {
		return nil, err
	}

	var receipt *ports.Receipt
	err = s.write(ctx, func(ctx context.Context) error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		// Lock in ascending id order so two opposing transfers cannot deadlock.
		firstID, secondID := req.FromAccountID, req.ToAccountID
		if secondID < firstID {
			firstID, secondID = secondID, firstID
		}
		first, err := s.lockAccount(ctx, dbTx, firstID)
		if err != nil {
			return err
		}
		second, err := s.lockAccount(ctx, dbTx, secondID)
		if err != nil {
			return err
		}
		from, to := first, second
		if from.ID != req.FromAccountID {
			from, to = second, first
		}

		from.Balance = from.Balance.Sub(amount)
		to.Balance = to.Balance.Add(amount)
		if err := guard.CheckBalance(from.Balance); err != nil {
			return err
		}

		if desc == "" {
			desc = fmt.Sprintf("Transfer from %s to %s", from.Name, to.Name)
		}
		entry := &domain.Transaction{
			FromAccountID: domain.ID(from.ID),
			ToAccountID:   domain.ID(to.ID),
			Amount:        amount,
			Kind:          domain.TransactionKindTransfer,
			Description:   desc,
		}

		if err := s.updateBalance(ctx, dbTx, from); err != nil {
			return err
		}
		if err := s.updateBalance(ctx, dbTx, to); err != nil {
			return err
		}
		if err := s.append(ctx, dbTx, entry); err != nil {
			return err
		}
		if err := commit(ctx, dbTx); err != nil {
			return err
		}

		receipt = &ports.Receipt{Transaction: *entry, Accounts: []domain.Account{*from, *to}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("tx_id", receipt.Transaction.ID).
		Int64("from_account_id", req.FromAccountID).
		Int64("to_account_id", req.ToAccountID).
		Str("amount", amount.String()).
		Msg("transfer committed")

	s.publish(ctx, domain.NewEvent(domain.EventTransactionCreated, &receipt.Transaction, receipt.Accounts...))
	return receipt, nil
}

// DeleteAccount removes an account whose balance is exactly zero. Its log
// entries are kept.
func (s *LedgerServiceImpl) DeleteAccount(ctx context.Context, accountID int64) error {
	var deleted *domain.Account
	err := s.write(ctx, func(ctx context.Context) error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		account, err := s.lockAccount(ctx, dbTx, accountID)
		if err != nil {
			return err
		}
		if err := guard.CheckDeletable(account); err != nil {
			return err
		}
		if err := s.accounts.Delete(ctx, dbTx, accountID); err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				return apperror.ErrNotFound("Account")
			}
			return storageError(err)
		}
		if err := commit(ctx, dbTx); err != nil {
			return err
		}
		deleted = account
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Int64("account_id", accountID).Msg("account deleted")
	s.publish(ctx, domain.NewEvent(domain.EventAccountDeleted, nil, *deleted))
	return nil
}

// GetAccount returns one account.
func (s *LedgerServiceImpl) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, storageError(err)
	}
	if account == nil {
		return nil, apperror.ErrNotFound("Account")
	}
	return account, nil
}

// GetAccountByName looks a live account up by its exact name.
func (s *LedgerServiceImpl) GetAccountByName(ctx context.Context, name string) (*domain.Account, error) {
	name, err := guard.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetByName(ctx, name)
	if err != nil {
		return nil, storageError(err)
	}
	if account == nil {
		return nil, apperror.ErrNotFound("Account")
	}
	return account, nil
}

// ListAccounts returns live accounts in creation order.
func (s *LedgerServiceImpl) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return accounts, nil
}

// GetHistory returns the log entries that touch a live account.
func (s *LedgerServiceImpl) GetHistory(ctx context.Context, accountID int64, order domain.HistoryOrder) ([]domain.Transaction, error) {
	if order == "" {
		order = domain.OrderNewestFirst
	}
	if _, ok := domain.ParseHistoryOrder(string(order)); !ok {
		return nil, apperror.Validation("Invalid history order: " + string(order))
	}
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	history, err := s.txns.ListByAccount(ctx, accountID, order)
	if err != nil {
		return nil, storageError(err)
	}
	return history, nil
}

func (s *LedgerServiceImpl) write(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.lock == nil {
		return fn(ctx)
	}
	return s.lock.WithLock(ctx, fn)
}

func (s *LedgerServiceImpl) lockAccount(ctx context.Context, dbTx pgx.Tx, id int64) (*domain.Account, error) {
	account, err := s.accounts.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, storageError(err)
	}
	if account == nil {
		return nil, apperror.ErrNotFound("Account")
	}
	return account, nil
}

func (s *LedgerServiceImpl) updateBalance(ctx context.Context, dbTx pgx.Tx, account *domain.Account) error {
	if err := guard.CheckAccount(account); err != nil {
		return err
	}
	if err := s.accounts.UpdateBalance(ctx, dbTx, account.ID, account.Balance); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return apperror.ErrNotFound("Account")
		}
		return storageError(err)
	}
	return nil
}

func (s *LedgerServiceImpl) append(ctx context.Context, dbTx pgx.Tx, entry *domain.Transaction) error {
	if err := guard.CheckTransaction(entry); err != nil {
		return err
	}
	if err := s.txns.Append(ctx, dbTx, entry); err != nil {
		return storageError(err)
	}
	return nil
}

func (s *LedgerServiceImpl) parseMoney(raw string) (money.Money, error) {
	amount, err := s.money.Parse(raw)
	if err != nil {
		if errors.Is(err, money.ErrOutOfRange) {
			return money.Money{}, apperror.ErrInvalidAmount("Amount is out of range")
		}
		return money.Money{}, apperror.ErrInvalidAmount("Amount must be a decimal number")
	}
	return amount, nil
}

// parseAmount rounds first, so an input that rounds to zero is rejected.
func (s *LedgerServiceImpl) parseAmount(raw string) (money.Money, error) {
	amount, err := s.parseMoney(raw)
	if err != nil {
		return money.Money{}, err
	}
	if err := guard.CheckAmount(amount); err != nil {
		return money.Money{}, err
	}
	return amount, nil
}

func (s *LedgerServiceImpl) publish(ctx context.Context, event domain.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", string(event.Type)).Msg("failed to publish ledger event")
	}
}

func commit(ctx context.Context, dbTx pgx.Tx) error {
	if err := dbTx.Commit(ctx); err != nil {
		return storageError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// storageError passes through errors a store already classified (constraint
// violations, lock timeouts) and marks anything else as a retryable fault.
func storageError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.ErrStorage(err)
}
