package ports

import (
	"context"
	"time"

	"core-ledger/internal/core/domain"
)

// --- Service Ports (Business Logic) ---

// LedgerService is the ledger engine. It is the only component that mutates
// accounts and the transaction log.
type LedgerService interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*domain.Account, error)
	Deposit(ctx context.Context, req MovementRequest) (*Receipt, error)
	Withdraw(ctx context.Context, req MovementRequest) (*Receipt, error)
	Transfer(ctx context.Context, req TransferRequest) (*Receipt, error)
	DeleteAccount(ctx context.Context, accountID int64) error
	GetAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	GetAccountByName(ctx context.Context, name string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	GetHistory(ctx context.Context, accountID int64, order domain.HistoryOrder) ([]domain.Transaction, error)
}

// CreateAccountRequest holds input for account creation. An empty
// InitialBalance means zero.
type CreateAccountRequest struct {
	Name           string
	InitialBalance string
}

// MovementRequest holds input for a deposit or withdrawal.
type MovementRequest struct {
	AccountID   int64
	Amount      string
	Description string
}

// TransferRequest holds input for a transfer between two accounts.
type TransferRequest struct {
	FromAccountID int64
	ToAccountID   int64
	Amount        string
	Description   string
}

// Receipt is the committed log entry with the post-commit state of every
// account it touched.
type Receipt struct {
	Transaction domain.Transaction `json:"transaction"`
	Accounts    []domain.Account   `json:"accounts"`
}

// ReportingService computes read-only aggregates from the account and
// transaction readers.
type ReportingService interface {
	Dashboard(ctx context.Context) (*domain.Dashboard, error)
	MonthlySummary(ctx context.Context) ([]domain.MonthlySummary, error)
	Cashflow(ctx context.Context) ([]domain.CashflowDay, error)
	KPIs(ctx context.Context) (*domain.KPIs, error)
	Reconcile(ctx context.Context) (*domain.Reconciliation, error)
	Accounts(ctx context.Context) ([]domain.Account, error)
	// RecentTransactions returns at most limit entries, newest first.
	RecentTransactions(ctx context.Context, limit int) ([]domain.TransactionView, error)
	// TransactionLog returns every entry in canonical order.
	TransactionLog(ctx context.Context) ([]domain.TransactionView, error)
}

// Simulator drives random activity through the ledger engine.
type Simulator interface {
	Run(ctx context.Context, n int) (*SimulationResult, error)
}

// SimulationResult counts what a simulation run did.
type SimulationResult struct {
	Requested int            `json:"requested"`
	Committed int            `json:"committed"`
	Rejected  map[string]int `json:"rejected"` // by error code
	Receipts  []Receipt      `json:"receipts"`
}

// EventPublisher delivers committed-change events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// WriterLock serializes writers across processes sharing one store.
type WriterLock interface {
	WithLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditService records API mutation attempts.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
	Recent(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

// SignatureService signs outgoing webhook payloads.
type SignatureService interface {
	Sign(secretKey string, payload string) string
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject string, scopes []string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

const (
	ScopeRead  = "ledger:read"
	ScopeWrite = "ledger:write"
)

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
	Scopes  []string
}

// HasScope reports whether the token grants scope. Write implies read.
func (c *TokenClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope || (scope == ScopeRead && s == ScopeWrite) {
			return true
		}
	}
	return false
}

// IdempotencyCache stores replies keyed by Idempotency-Key.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Acquire marks key as in flight. It returns false when another request
	// already holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}
