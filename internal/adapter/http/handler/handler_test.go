package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"
	"core-ledger/internal/core/ports/mocks"
	"core-ledger/pkg/apperror"
	"core-ledger/pkg/money"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var createdAt = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type testAPI struct {
	ledger    *mocks.MockLedgerService
	reporting *mocks.MockReportingService
	sim       *mocks.MockSimulator
	router    *gin.Engine
}

func newTestAPI(t *testing.T, customize ...func(*RouterDeps)) *testAPI {
	t.Helper()
	ctrl := gomock.NewController(t)
	api := &testAPI{
		ledger:    mocks.NewMockLedgerService(ctrl),
		reporting: mocks.NewMockReportingService(ctrl),
		sim:       mocks.NewMockSimulator(ctrl),
	}
	deps := RouterDeps{
		LedgerSvc:    api.ledger,
		ReportingSvc: api.reporting,
		Simulator:    api.sim,
		Currency:     "USD",
		Mode:         gin.TestMode,
		Logger:       zerolog.Nop(),
	}
	for _, fn := range customize {
		fn(&deps)
	}
	api.router = SetupRouter(deps)
	return api
}

func (a *testAPI) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "no data in %s", w.Body.String())
	return data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func acct(id int64, name, balance string) domain.Account {
	return domain.Account{ID: id, Name: name, Balance: money.RequireFromString(balance), CreatedAt: createdAt}
}

// --- Accounts ---

func TestCreateAccount_Success(t *testing.T) {
	api := newTestAPI(t)
	a := acct(1, "Checking", "100.00")
	api.ledger.EXPECT().CreateAccount(gomock.Any(), ports.CreateAccountRequest{
		Name:           "Checking",
		InitialBalance: "100.00",
	}).Return(&a, nil)

	w := api.do(http.MethodPost, "/api/v1/accounts", `{"name":"  Checking ","initial_balance":"100.00"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/v1/accounts/1", w.Header().Get("Location"))
	data := decodeData(t, w)
	assert.Equal(t, "Checking", data["name"])
	assert.Equal(t, "100.00", data["balance"])
	assert.Equal(t, "$100.00", data["balance_display"])
}

func TestCreateAccount_AcceptsNumericBalance(t *testing.T) {
	api := newTestAPI(t)
	a := acct(2, "Cash", "12.50")
	api.ledger.EXPECT().CreateAccount(gomock.Any(), ports.CreateAccountRequest{Name: "Cash", InitialBalance: "12.50"}).Return(&a, nil)

	w := api.do(http.MethodPost, "/api/v1/accounts", `{"name":"Cash","initial_balance":12.50}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateAccount_ValidationError(t *testing.T) {
	api := newTestAPI(t)

	for _, body := range []string{`{}`, `{"name":"   "}`, `not json`} {
		w := api.do(http.MethodPost, "/api/v1/accounts", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "LED_001", errorCode(t, w))
	}
}

func TestCreateAccount_NameTaken(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().CreateAccount(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrAccountNameTaken("Checking"))

	w := api.do(http.MethodPost, "/api/v1/accounts", `{"name":"Checking"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "LED_007", errorCode(t, w))
}

func TestListAccounts(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().ListAccounts(gomock.Any()).Return([]domain.Account{acct(1, "A", "1.00"), acct(2, "B", "2.00")}, nil)

	w := api.do(http.MethodGet, "/api/v1/accounts", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(2), data["count"])
	items := data["items"].([]interface{})
	assert.Equal(t, "B", items[1].(map[string]interface{})["name"])
}

func TestListAccounts_ByName(t *testing.T) {
	api := newTestAPI(t)
	a := acct(4, "Holiday fund", "80.00")
	api.ledger.EXPECT().GetAccountByName(gomock.Any(), "Holiday fund").Return(&a, nil)
	api.ledger.EXPECT().GetAccountByName(gomock.Any(), "Nope").Return(nil, apperror.ErrNotFound("Account"))

	w := api.do(http.MethodGet, "/api/v1/accounts?name=Holiday+fund", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(4), data["id"])
	assert.Equal(t, "Holiday fund", data["name"])

	w = api.do(http.MethodGet, "/api/v1/accounts?name=Nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "LED_003", errorCode(t, w))
}

func TestGetAccount(t *testing.T) {
	api := newTestAPI(t)
	a := acct(7, "Savings", "0.00")
	api.ledger.EXPECT().GetAccount(gomock.Any(), int64(7)).Return(&a, nil)
	api.ledger.EXPECT().GetAccount(gomock.Any(), int64(8)).Return(nil, apperror.ErrNotFound("Account"))

	w := api.do(http.MethodGet, "/api/v1/accounts/7", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(7), decodeData(t, w)["id"])

	w = api.do(http.MethodGet, "/api/v1/accounts/8", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "LED_003", errorCode(t, w))

	for _, bad := range []string{"abc", "0", "-3"} {
		w = api.do(http.MethodGet, "/api/v1/accounts/"+bad, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestDeleteAccount(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().DeleteAccount(gomock.Any(), int64(3)).Return(nil)
	api.ledger.EXPECT().DeleteAccount(gomock.Any(), int64(4)).Return(apperror.ErrAccountNotEmpty())

	w := api.do(http.MethodDelete, "/api/v1/accounts/3", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(http.MethodDelete, "/api/v1/accounts/4", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "LED_005", errorCode(t, w))
}

func TestHistory_Order(t *testing.T) {
	api := newTestAPI(t)
	entries := []domain.Transaction{{
		ID: 1, ToAccountID: domain.ID(5), Amount: money.RequireFromString("10.00"),
		Kind: domain.TransactionKindDeposit, Description: "Deposit to A", CreatedAt: createdAt,
	}}
	api.ledger.EXPECT().GetHistory(gomock.Any(), int64(5), domain.OrderNewestFirst).Return(entries, nil)
	api.ledger.EXPECT().GetHistory(gomock.Any(), int64(5), domain.OrderChronological).Return(entries, nil)

	w := api.do(http.MethodGet, "/api/v1/accounts/5/transactions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	items := decodeData(t, w)["items"].([]interface{})
	first := items[0].(map[string]interface{})
	assert.Equal(t, "DEPOSIT", first["kind"])
	assert.Equal(t, "10.00", first["amount"])
	assert.NotContains(t, first, "from_account_id")

	w = api.do(http.MethodGet, "/api/v1/accounts/5/transactions?order=asc", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/api/v1/accounts/5/transactions?order=sideways", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Movements ---

func receipt(kind domain.TransactionKind, amount string, accounts ...domain.Account) *ports.Receipt {
	return &ports.Receipt{
		Transaction: domain.Transaction{ID: 9, Amount: money.RequireFromString(amount), Kind: kind, CreatedAt: createdAt},
		Accounts:    accounts,
	}
}

func TestDeposit_Success(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().Deposit(gomock.Any(), ports.MovementRequest{AccountID: 1, Amount: "12.5", Description: "Salary"}).
		Return(receipt(domain.TransactionKindDeposit, "12.50", acct(1, "A", "112.50")), nil)

	w := api.do(http.MethodPost, "/api/v1/accounts/1/deposit", `{"amount":12.5,"description":"Salary"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	tx := data["transaction"].(map[string]interface{})
	assert.Equal(t, "12.50", tx["amount"])
	accounts := data["accounts"].([]interface{})
	assert.Equal(t, "112.50", accounts[0].(map[string]interface{})["balance"])
}

func TestDeposit_InvalidAmount(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInvalidAmount("Amount must be positive"))

	w := api.do(http.MethodPost, "/api/v1/accounts/1/deposit", `{"amount":"-5"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "LED_002", errorCode(t, w))

	w = api.do(http.MethodPost, "/api/v1/accounts/1/deposit", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "LED_001", errorCode(t, w))
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().Withdraw(gomock.Any(), ports.MovementRequest{AccountID: 3, Amount: "75.00"}).
		Return(nil, apperror.ErrInsufficientFunds())

	w := api.do(http.MethodPost, "/api/v1/accounts/3/withdraw", `{"amount":"75.00"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "LED_004", errorCode(t, w))
}

func TestTransfer(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().Transfer(gomock.Any(), ports.TransferRequest{FromAccountID: 1, ToAccountID: 2, Amount: "300.00"}).
		Return(receipt(domain.TransactionKindTransfer, "300.00", acct(1, "A", "700.00"), acct(2, "B", "300.00")), nil)
	api.ledger.EXPECT().Transfer(gomock.Any(), ports.TransferRequest{FromAccountID: 1, ToAccountID: 1, Amount: "1"}).
		Return(nil, apperror.ErrSelfTransfer())

	w := api.do(http.MethodPost, "/api/v1/transfers", `{"from_account_id":1,"to_account_id":2,"amount":"300.00"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, decodeData(t, w)["accounts"], 2)

	w = api.do(http.MethodPost, "/api/v1/transfers", `{"from_account_id":1,"to_account_id":1,"amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "LED_006", errorCode(t, w))
}

func TestStorageFaultIsRetryable(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrStorage(errors.New("fsync failed")))

	w := api.do(http.MethodPost, "/api/v1/accounts/1/deposit", `{"amount":"1"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SYS_001", resp["error_code"])
	assert.Equal(t, true, resp["retryable"])
	assert.NotContains(t, w.Body.String(), "fsync")
}

// --- Reports ---

func TestTransactions_Limit(t *testing.T) {
	api := newTestAPI(t)
	api.reporting.EXPECT().RecentTransactions(gomock.Any(), 50).Return(nil, nil)
	api.reporting.EXPECT().RecentTransactions(gomock.Any(), 500).Return(nil, nil)
	api.reporting.EXPECT().RecentTransactions(gomock.Any(), 3).Return([]domain.TransactionView{{
		Transaction:     domain.Transaction{ID: 4, FromAccountID: domain.ID(1), Amount: money.RequireFromString("2.00"), Kind: domain.TransactionKindWithdrawal},
		FromAccountName: "A",
	}}, nil)

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/transactions", "").Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/transactions?limit=100000", "").Code)

	w := api.do(http.MethodGet, "/api/v1/transactions?limit=3", "")
	items := decodeData(t, w)["items"].([]interface{})
	assert.Equal(t, "A", items[0].(map[string]interface{})["from_account_name"])
}

func TestReports(t *testing.T) {
	api := newTestAPI(t)
	api.reporting.EXPECT().Dashboard(gomock.Any()).Return(&domain.Dashboard{
		Currency: "USD", TotalBalance: money.RequireFromString("1000.00"), TotalAccounts: 2,
	}, nil)
	api.reporting.EXPECT().MonthlySummary(gomock.Any()).Return([]domain.MonthlySummary{{Month: "2026-03", Kind: domain.TransactionKindDeposit, Count: 1}}, nil)
	api.reporting.EXPECT().Cashflow(gomock.Any()).Return([]domain.CashflowDay{}, nil)
	api.reporting.EXPECT().KPIs(gomock.Any()).Return(&domain.KPIs{TotalTransactions: 12}, nil)
	api.reporting.EXPECT().Reconcile(gomock.Any()).Return(&domain.Reconciliation{Consistent: true}, nil)

	w := api.do(http.MethodGet, "/api/v1/reports/dashboard", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1000.00", decodeData(t, w)["total_balance"])

	w = api.do(http.MethodGet, "/api/v1/reports/monthly", "")
	assert.Equal(t, float64(1), decodeData(t, w)["count"])

	w = api.do(http.MethodGet, "/api/v1/reports/cashflow", "")
	assert.Equal(t, float64(0), decodeData(t, w)["count"])

	w = api.do(http.MethodGet, "/api/v1/reports/kpis", "")
	assert.Equal(t, float64(12), decodeData(t, w)["total_transactions"])

	w = api.do(http.MethodGet, "/api/v1/reports/reconciliation", "")
	assert.Equal(t, true, decodeData(t, w)["consistent"])
}

// --- Simulation ---

func TestSimulate(t *testing.T) {
	api := newTestAPI(t)
	api.sim.EXPECT().Run(gomock.Any(), 10).Return(&ports.SimulationResult{Requested: 10, Committed: 9, Rejected: map[string]int{"LED_004": 1}}, nil)
	api.sim.EXPECT().Run(gomock.Any(), 3).Return(&ports.SimulationResult{Requested: 3, Committed: 3}, nil)
	api.sim.EXPECT().Run(gomock.Any(), 5).Return(nil, apperror.Validation("Need at least 2 accounts for simulation"))

	w := api.do(http.MethodPost, "/api/v1/simulate", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(9), data["committed"])

	w = api.do(http.MethodPost, "/api/v1/simulate", `{"count":3}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPost, "/api/v1/simulate", `{"count":5000}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/v1/simulate", `{"count":5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Auth ---

func TestAuth_ScopesGuardRoutes(t *testing.T) {
	var tokenSvc *mocks.MockTokenService
	api := newTestAPI(t, func(d *RouterDeps) {
		tokenSvc = mocks.NewMockTokenService(gomock.NewController(t))
		d.TokenSvc = tokenSvc
	})
	tokenSvc.EXPECT().Validate("reader").Return(&ports.TokenClaims{Subject: "me", Scopes: []string{ports.ScopeRead}}, nil).AnyTimes()
	tokenSvc.EXPECT().Validate("writer").Return(&ports.TokenClaims{Subject: "me", Scopes: []string{ports.ScopeWrite}}, nil).AnyTimes()

	a := acct(1, "A", "0.00")
	api.ledger.EXPECT().ListAccounts(gomock.Any()).Return(nil, nil)
	api.ledger.EXPECT().CreateAccount(gomock.Any(), gomock.Any()).Return(&a, nil)

	w := api.do(http.MethodGet, "/api/v1/accounts", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodGet, "/api/v1/accounts", "", "Authorization", "Bearer reader")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPost, "/api/v1/accounts", `{"name":"A"}`, "Authorization", "Bearer reader")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "AUTH_002", errorCode(t, w))

	w = api.do(http.MethodPost, "/api/v1/accounts", `{"name":"A"}`, "Authorization", "Bearer writer")
	assert.Equal(t, http.StatusCreated, w.Code)

	// Health and docs stay public.
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health", "").Code)
}

// --- Health & docs ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockHealthChecker(ctrl)
	store.EXPECT().Name().Return("snapshot").AnyTimes()
	store.EXPECT().Ping(gomock.Any()).Return(nil)
	cache := mocks.NewMockHealthChecker(ctrl)
	cache.EXPECT().Name().Return("redis").AnyTimes()
	cache.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	api := newTestAPI(t, func(d *RouterDeps) { d.HealthCheckers = []ports.HealthChecker{store, cache} })
	w := api.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "healthy", resp.Dependencies["snapshot"].Status)
	assert.Equal(t, "connection refused", resp.Dependencies["redis"].Error)
}

func TestHealthCheck_NoDependencies(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck()(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
}

func TestSwagger(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/swagger/spec", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Core Ledger API")

	w = api.do(http.MethodGet, "/swagger", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestRouter_SetsRequestIDAndSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().ListAccounts(gomock.Any()).Return(nil, nil)

	w := api.do(http.MethodGet, "/api/v1/accounts", "")

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, w.Header().Get("X-Request-ID"), resp["request_id"])
}
