package dto

import (
	"encoding/json"
	"testing"
	"time"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"
	"core-ledger/pkg/money"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := CreateAccountRequest{Name: "  Checking  ", InitialBalance: " 10.00 "}
	SanitizeStruct(&req)

	assert.Equal(t, "Checking", req.Name)
	assert.Equal(t, Amount("10.00"), req.InitialBalance)
}

func TestSanitizeStruct_KeepsMarkup(t *testing.T) {
	req := MovementRequest{Amount: "1", Description: " Tom & Jerry's <gift> "}
	SanitizeStruct(&req)

	assert.Equal(t, "Tom & Jerry's <gift>", req.Description)
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	s := "  spaced  "
	v := struct{ Note *string }{Note: &s}
	SanitizeStruct(&v)
	assert.Equal(t, "spaced", *v.Note)

	v.Note = nil
	SanitizeStruct(&v)
	assert.Nil(t, v.Note)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Amount decoding ---

func TestAmount_AcceptsStringAndNumber(t *testing.T) {
	var req TransferRequest
	require.NoError(t, json.Unmarshal([]byte(`{"from_account_id":1,"to_account_id":2,"amount":"300.00"}`), &req))
	assert.Equal(t, Amount("300.00"), req.Amount)

	require.NoError(t, json.Unmarshal([]byte(`{"amount":12.5}`), &req))
	assert.Equal(t, Amount("12.5"), req.Amount)

	// Numbers keep their literal digits.
	require.NoError(t, json.Unmarshal([]byte(`{"amount":0.10}`), &req))
	assert.Equal(t, Amount("0.10"), req.Amount)
}

func TestAmount_RejectsOtherTypes(t *testing.T) {
	var req MovementRequest
	assert.Error(t, json.Unmarshal([]byte(`{"amount":true}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"amount":{"v":1}}`), &req))
}

// --- Custom validators ---

func TestValidators(t *testing.T) {
	tests := []struct {
		name  string
		req   interface{}
		valid bool
	}{
		{"account ok", &CreateAccountRequest{Name: "Checking"}, true},
		{"blank name", &CreateAccountRequest{Name: "   "}, false},
		{"missing name", &CreateAccountRequest{}, false},
		{"movement ok", &MovementRequest{Amount: "1.00", Description: "Rent"}, true},
		{"movement missing amount", &MovementRequest{}, false},
		{"newline in description", &MovementRequest{Amount: "1", Description: "a\nb"}, false},
		{"transfer missing target", &TransferRequest{FromAccountID: 1, Amount: "1"}, false},
		{"simulate default", &SimulateRequest{}, true},
		{"simulate too large", &SimulateRequest{Count: 5000}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(tt.req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// --- Mapping ---

func TestNewReceiptResponse(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	receipt := &ports.Receipt{
		Transaction: domain.Transaction{
			ID: 7, FromAccountID: domain.ID(1), ToAccountID: domain.ID(2),
			Amount: money.RequireFromString("300.00"), Kind: domain.TransactionKindTransfer,
			Description: "Transfer from A to B", CreatedAt: at,
		},
		Accounts: []domain.Account{
			{ID: 1, Name: "A", Balance: money.RequireFromString("700.00"), CreatedAt: at},
			{ID: 2, Name: "B", Balance: money.RequireFromString("1300.00"), CreatedAt: at},
		},
	}

	resp := NewReceiptResponse(receipt, "USD")
	assert.Equal(t, int64(7), resp.Transaction.ID)
	assert.Equal(t, "TRANSFER", resp.Transaction.Kind)
	assert.Equal(t, "2026-03-01T09:30:00Z", resp.Transaction.CreatedAt)
	require.Len(t, resp.Accounts, 2)
	assert.Equal(t, "$1,300.00", resp.Accounts[1].BalanceDisplay)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"amount":"300.00"`)
}

func TestNewTransactionViewResponses_CarriesNames(t *testing.T) {
	views := []domain.TransactionView{{
		Transaction:   domain.Transaction{ID: 1, ToAccountID: domain.ID(3), Amount: money.RequireFromString("5"), Kind: domain.TransactionKindDeposit},
		ToAccountName: "Cash",
	}}
	resp := NewTransactionViewResponses(views)
	require.Len(t, resp, 1)
	assert.Equal(t, "Cash", resp[0].ToAccountName)
	assert.Empty(t, resp[0].FromAccountName)
}
