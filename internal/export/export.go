// Package export writes the ledger as CSV tables for spreadsheet and BI
// tools. It reads through the reporting service only.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// File names written by Export.
const (
	AccountsFile       = "accounts.csv"
	TransactionsFile   = "transactions.csv"
	MonthlySummaryFile = "monthly_summary.csv"
	CashflowFile       = "cashflow.csv"
	KPIsFile           = "kpis.csv"
)

// utf8BOM makes spreadsheet tools detect UTF-8 in account names.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Exporter writes CSV tables computed by a ReportingService.
type Exporter struct {
	reporting ports.ReportingService
	bom       bool
	log       zerolog.Logger
}

// New creates an Exporter. With bom set every file starts with a UTF-8
// byte order mark.
func New(reporting ports.ReportingService, bom bool, log zerolog.Logger) *Exporter {
	return &Exporter{reporting: reporting, bom: bom, log: log}
}

// FileResult is one written table.
type FileResult struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// Export writes every table into dir, creating it if needed. Each file is
// written to a temporary name and renamed, so readers never see a partial
// table.
func (e *Exporter) Export(ctx context.Context, dir string) ([]FileResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create %s: %w", dir, err)
	}

	accounts, err := e.reporting.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("export accounts: %w", err)
	}
	log, err := e.reporting.TransactionLog(ctx)
	if err != nil {
		return nil, fmt.Errorf("export transactions: %w", err)
	}
	monthly, err := e.reporting.MonthlySummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("export monthly summary: %w", err)
	}
	cashflow, err := e.reporting.Cashflow(ctx)
	if err != nil {
		return nil, fmt.Errorf("export cashflow: %w", err)
	}
	kpis, err := e.reporting.KPIs(ctx)
	if err != nil {
		return nil, fmt.Errorf("export kpis: %w", err)
	}

	tables := []struct {
		name  string
		rows  int
		write func(io.Writer) error
	}{
		{AccountsFile, len(accounts), func(w io.Writer) error { return WriteAccounts(w, accounts) }},
		{TransactionsFile, len(log), func(w io.Writer) error { return WriteTransactions(w, log) }},
		{MonthlySummaryFile, len(monthly), func(w io.Writer) error { return WriteMonthlySummary(w, monthly) }},
		{CashflowFile, len(cashflow), func(w io.Writer) error { return WriteCashflow(w, cashflow) }},
		{KPIsFile, 1, func(w io.Writer) error { return WriteKPIs(w, kpis) }},
	}

	results := make([]FileResult, 0, len(tables))
	for _, t := range tables {
		path := filepath.Join(dir, t.name)
		if err := e.writeFile(path, t.write); err != nil {
			return results, err
		}
		results = append(results, FileResult{Name: t.name, Path: path, Rows: t.rows})
		e.log.Debug().Str("file", path).Int("rows", t.rows).Msg("table exported")
	}
	e.log.Info().Str("dir", dir).Int("files", len(results)).Msg("ledger exported")
	return results, nil
}

func (e *Exporter) writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if e.bom {
		if _, err := tmp.Write(utf8BOM); err != nil {
			tmp.Close()
			return fmt.Errorf("export %s: %w", path, err)
		}
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

// WriteAccounts writes id, name, balance, created_at.
func WriteAccounts(w io.Writer, accounts []domain.Account) error {
	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, []string{
			strconv.FormatInt(a.ID, 10),
			a.Name,
			a.Balance.String(),
			timestamp(a.CreatedAt),
		})
	}
	return writeTable(w, []string{"id", "name", "balance", "created_at"}, rows)
}

// WriteTransactions writes the log in canonical order. Account columns are
// empty on the side an entry does not touch; names are empty for accounts
// deleted since.
func WriteTransactions(w io.Writer, log []domain.TransactionView) error {
	rows := make([][]string, 0, len(log))
	for _, v := range log {
		rows = append(rows, []string{
			strconv.FormatInt(v.ID, 10),
			timestamp(v.CreatedAt),
			string(v.Kind),
			optionalID(v.FromAccountID),
			v.FromAccountName,
			optionalID(v.ToAccountID),
			v.ToAccountName,
			v.Amount.String(),
			v.Description,
		})
	}
	return writeTable(w, []string{
		"id", "created_at", "kind",
		"from_account_id", "from_account_name", "to_account_id", "to_account_name",
		"amount", "description",
	}, rows)
}

// WriteMonthlySummary writes one row per month and kind.
func WriteMonthlySummary(w io.Writer, summary []domain.MonthlySummary) error {
	rows := make([][]string, 0, len(summary))
	for _, s := range summary {
		rows = append(rows, []string{
			s.Month,
			string(s.Kind),
			strconv.Itoa(s.Count),
			s.Sum.String(),
			s.Avg.String(),
			s.Min.String(),
			s.Max.String(),
		})
	}
	return writeTable(w, []string{"month", "kind", "count", "sum", "avg", "min", "max"}, rows)
}

// WriteCashflow writes one row per day.
func WriteCashflow(w io.Writer, days []domain.CashflowDay) error {
	rows := make([][]string, 0, len(days))
	for _, d := range days {
		rows = append(rows, []string{
			d.Date,
			d.Inflow.String(),
			d.Outflow.String(),
			d.Net.String(),
			strconv.Itoa(d.Count),
		})
	}
	return writeTable(w, []string{"date", "inflow", "outflow", "net", "count"}, rows)
}

// WriteKPIs writes a single row.
func WriteKPIs(w io.Writer, k *domain.KPIs) error {
	return writeTable(w, []string{
		"total_accounts", "total_balance", "total_transactions",
		"transactions_today", "transactions_this_month",
		"average_balance", "average_transaction_amount",
	}, [][]string{{
		strconv.Itoa(k.TotalAccounts),
		k.TotalBalance.String(),
		strconv.Itoa(k.TotalTransactions),
		strconv.Itoa(k.TransactionsToday),
		strconv.Itoa(k.TransactionsThisMonth),
		k.AverageBalance.String(),
		k.AverageTransactionAmount.String(),
	}})
}

func writeTable(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
