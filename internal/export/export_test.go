package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports/mocks"
	"core-ledger/pkg/money"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var at = time.Date(2026, time.March, 15, 9, 30, 0, 0, time.UTC)

func m(s string) money.Money { return money.RequireFromString(s) }

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw = bytes.TrimPrefix(raw, utf8BOM)
	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	return rows
}

func expectReports(r *mocks.MockReportingService) {
	ctx := gomock.Any()
	r.EXPECT().Accounts(ctx).Return([]domain.Account{
		{ID: 1, Name: "Checking, main", Balance: m("700.00"), CreatedAt: at},
		{ID: 2, Name: "Savings", Balance: m("300.00"), CreatedAt: at},
	}, nil)
	r.EXPECT().TransactionLog(ctx).Return([]domain.TransactionView{
		{Transaction: domain.Transaction{ID: 1, Kind: domain.TransactionKindDeposit, ToAccountID: domain.ID(1), Amount: m("1000.00"), Description: "Initial deposit", CreatedAt: at}, ToAccountName: "Checking, main"},
		{Transaction: domain.Transaction{ID: 2, Kind: domain.TransactionKindTransfer, FromAccountID: domain.ID(1), ToAccountID: domain.ID(2), Amount: m("300.00"), CreatedAt: at}, FromAccountName: "Checking, main", ToAccountName: "Savings"},
	}, nil)
	r.EXPECT().MonthlySummary(ctx).Return([]domain.MonthlySummary{
		{Month: "2026-03", Kind: domain.TransactionKindDeposit, Count: 1, Sum: m("1000.00"), Avg: m("1000.00"), Min: m("1000.00"), Max: m("1000.00")},
	}, nil)
	r.EXPECT().Cashflow(ctx).Return([]domain.CashflowDay{
		{Date: "2026-03-15", Inflow: m("1000.00"), Outflow: m("0.00"), Net: m("1000.00"), Count: 2},
	}, nil)
	r.EXPECT().KPIs(ctx).Return(&domain.KPIs{
		TotalAccounts: 2, TotalBalance: m("1000.00"), TotalTransactions: 2,
		TransactionsToday: 2, TransactionsThisMonth: 2,
		AverageBalance: m("500.00"), AverageTransactionAmount: m("650.00"),
	}, nil)
}

func TestExporter_WritesAllTables(t *testing.T) {
	ctrl := gomock.NewController(t)
	reporting := mocks.NewMockReportingService(ctrl)
	expectReports(reporting)

	dir := filepath.Join(t.TempDir(), "out")
	files, err := New(reporting, false, zerolog.Nop()).Export(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, files, 5)

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
		assert.FileExists(t, f.Path)
	}
	assert.Equal(t, []string{AccountsFile, TransactionsFile, MonthlySummaryFile, CashflowFile, KPIsFile}, names)
	assert.Equal(t, 2, files[0].Rows)

	accounts := readCSV(t, filepath.Join(dir, AccountsFile))
	require.Len(t, accounts, 3)
	assert.Equal(t, []string{"id", "name", "balance", "created_at"}, accounts[0])
	assert.Equal(t, []string{"1", "Checking, main", "700.00", "2026-03-15T09:30:00Z"}, accounts[1])

	txns := readCSV(t, filepath.Join(dir, TransactionsFile))
	require.Len(t, txns, 3)
	assert.Equal(t, []string{"1", "2026-03-15T09:30:00Z", "DEPOSIT", "", "", "1", "Checking, main", "1000.00", "Initial deposit"}, txns[1])
	assert.Equal(t, "Savings", txns[2][6])

	kpis := readCSV(t, filepath.Join(dir, KPIsFile))
	require.Len(t, kpis, 2)
	assert.Equal(t, []string{"2", "1000.00", "2", "2", "2", "500.00", "650.00"}, kpis[1])

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	assert.Empty(t, leftovers)
}

func TestExporter_BOM(t *testing.T) {
	ctrl := gomock.NewController(t)
	reporting := mocks.NewMockReportingService(ctrl)
	expectReports(reporting)

	dir := t.TempDir()
	_, err := New(reporting, true, zerolog.Nop()).Export(context.Background(), dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, CashflowFile))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, utf8BOM))
}

func TestExporter_ReportingFailureWritesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	reporting := mocks.NewMockReportingService(ctrl)
	reporting.EXPECT().Accounts(gomock.Any()).Return([]domain.Account{}, nil)
	reporting.EXPECT().TransactionLog(gomock.Any()).Return(nil, errors.New("disk on fire"))

	dir := t.TempDir()
	_, err := New(reporting, false, zerolog.Nop()).Export(context.Background(), dir)
	assert.ErrorContains(t, err, "disk on fire")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteMonthlySummary_EmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMonthlySummary(&buf, nil))
	assert.Equal(t, "month,kind,count,sum,avg,min,max\n", buf.String())
}
