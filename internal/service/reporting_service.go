package service

import (
	"context"
	"sort"
	"time"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/guard"
	"core-ledger/internal/core/ports"
	"core-ledger/pkg/money"

	"github.com/shopspring/decimal"
)

// dashboardRecentLimit is how many entries the dashboard lists.
const dashboardRecentLimit = 10

// ReportingServiceImpl implements ports.ReportingService. It only reads.
type ReportingServiceImpl struct {
	accounts ports.AccountReader
	txns     ports.TransactionReader
	money    money.Context
	now      func() time.Time
}

// NewReportingService creates a new reporting service.
func NewReportingService(accounts ports.AccountReader, txns ports.TransactionReader, mc money.Context) *ReportingServiceImpl {
	return &ReportingServiceImpl{
		accounts: accounts,
		txns:     txns,
		money:    mc,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Accounts returns every live account in creation order.
func (s *ReportingServiceImpl) Accounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return accounts, nil
}

// RecentTransactions returns at most limit entries, newest first.
func (s *ReportingServiceImpl) RecentTransactions(ctx context.Context, limit int) ([]domain.TransactionView, error) {
	accounts, err := s.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	txns, err := s.txns.ListRecent(ctx, limit)
	if err != nil {
		return nil, storageError(err)
	}
	return views(txns, domain.AccountsByID(accounts)), nil
}

// TransactionLog returns every entry in id order with account names.
func (s *ReportingServiceImpl) TransactionLog(ctx context.Context) ([]domain.TransactionView, error) {
	accounts, log, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return views(log, domain.AccountsByID(accounts)), nil
}

// Dashboard summarizes the ledger.
func (s *ReportingServiceImpl) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	accounts, log, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	today, month := countRecent(log, now)

	byKind := map[domain.TransactionKind]int{
		domain.TransactionKindDeposit:    0,
		domain.TransactionKindWithdrawal: 0,
		domain.TransactionKindTransfer:   0,
	}
	for i := range log {
		byKind[log[i].Kind]++
	}

	start := len(log) - dashboardRecentLimit
	if start < 0 {
		start = 0
	}
	recent := views(log[start:], domain.AccountsByID(accounts))
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	return &domain.Dashboard{
		Currency:              s.money.Currency,
		TotalBalance:          s.totalBalance(accounts),
		TotalAccounts:         len(accounts),
		TransactionsToday:     today,
		TransactionsThisMonth: month,
		CountsByKind:          byKind,
		RecentTransactions:    recent,
		Accounts:              accounts,
		GeneratedAt:           now,
	}, nil
}

// MonthlySummary aggregates entries per calendar month and kind, ordered
// by month then kind.
func (s *ReportingServiceImpl) MonthlySummary(ctx context.Context) ([]domain.MonthlySummary, error) {
	log, err := s.txns.ListAll(ctx)
	if err != nil {
		return nil, storageError(err)
	}

	type key struct {
		month string
		kind  domain.TransactionKind
	}
	groups := make(map[key]*domain.MonthlySummary)
	for i := range log {
		t := &log[i]
		k := key{month: t.CreatedAt.UTC().Format("2006-01"), kind: t.Kind}
		g, ok := groups[k]
		if !ok {
			g = &domain.MonthlySummary{Month: k.month, Kind: k.kind, Sum: s.money.Zero(), Min: t.Amount, Max: t.Amount}
			groups[k] = g
		}
		g.Count++
		g.Sum = g.Sum.Add(t.Amount)
		if t.Amount.LessThan(g.Min) {
			g.Min = t.Amount
		}
		if t.Amount.GreaterThan(g.Max) {
			g.Max = t.Amount
		}
	}

	result := make([]domain.MonthlySummary, 0, len(groups))
	for _, g := range groups {
		g.Avg = s.average(g.Sum, g.Count)
		result = append(result, *g)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Month != result[j].Month {
			return result[i].Month < result[j].Month
		}
		return result[i].Kind < result[j].Kind
	})
	return result, nil
}

// Cashflow reports money entering and leaving the ledger per day. Days with
// only transfers are omitted.
func (s *ReportingServiceImpl) Cashflow(ctx context.Context) ([]domain.CashflowDay, error) {
	log, err := s.txns.ListAll(ctx)
	if err != nil {
		return nil, storageError(err)
	}

	days := make(map[string]*domain.CashflowDay)
	for i := range log {
		t := &log[i]
		if t.Kind == domain.TransactionKindTransfer {
			continue
		}
		date := t.CreatedAt.UTC().Format("2006-01-02")
		d, ok := days[date]
		if !ok {
			d = &domain.CashflowDay{Date: date, Inflow: s.money.Zero(), Outflow: s.money.Zero()}
			days[date] = d
		}
		if t.Kind == domain.TransactionKindDeposit {
			d.Inflow = d.Inflow.Add(t.Amount)
		} else {
			d.Outflow = d.Outflow.Add(t.Amount)
		}
		d.Count++
	}

	result := make([]domain.CashflowDay, 0, len(days))
	for _, d := range days {
		d.Net = d.Inflow.Sub(d.Outflow)
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

// KPIs computes ledger-wide indicators.
func (s *ReportingServiceImpl) KPIs(ctx context.Context) (*domain.KPIs, error) {
	accounts, log, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	today, month := countRecent(log, s.now())

	total := s.totalBalance(accounts)
	volume := s.money.Zero()
	for i := range log {
		volume = volume.Add(log[i].Amount)
	}

	return &domain.KPIs{
		TotalAccounts:            len(accounts),
		TotalBalance:             total,
		TotalTransactions:        len(log),
		TransactionsToday:        today,
		TransactionsThisMonth:    month,
		AverageBalance:           s.average(total, len(accounts)),
		AverageTransactionAmount: s.average(volume, len(log)),
	}, nil
}

// Reconcile compares every stored balance with the log-derived one.
func (s *ReportingServiceImpl) Reconcile(ctx context.Context) (*domain.Reconciliation, error) {
	accounts, log, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return guard.Reconcile(accounts, log), nil
}

func (s *ReportingServiceImpl) load(ctx context.Context) ([]domain.Account, []domain.Transaction, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, nil, storageError(err)
	}
	log, err := s.txns.ListAll(ctx)
	if err != nil {
		return nil, nil, storageError(err)
	}
	return accounts, log, nil
}

func (s *ReportingServiceImpl) totalBalance(accounts []domain.Account) money.Money {
	total := s.money.Zero()
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// average divides at full precision and rounds once, to the ledger precision.
func (s *ReportingServiceImpl) average(sum money.Money, n int) money.Money {
	if n == 0 {
		return s.money.Zero()
	}
	return s.money.Round(money.New(sum.Decimal().Div(decimal.NewFromInt(int64(n)))))
}

func countRecent(log []domain.Transaction, now time.Time) (today, month int) {
	y, m, d := now.Date()
	for i := range log {
		ty, tm, td := log[i].CreatedAt.In(now.Location()).Date()
		if ty == y && tm == m {
			month++
			if td == d {
				today++
			}
		}
	}
	return today, month
}

func views(txns []domain.Transaction, byID map[int64]domain.Account) []domain.TransactionView {
	result := make([]domain.TransactionView, 0, len(txns))
	for _, t := range txns {
		v := domain.TransactionView{Transaction: t}
		if t.FromAccountID != nil {
			v.FromAccountName = byID[*t.FromAccountID].Name
		}
		if t.ToAccountID != nil {
			v.ToAccountName = byID[*t.ToAccountID].Name
		}
		result = append(result, v)
	}
	return result
}
