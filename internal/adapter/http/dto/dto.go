package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"
	"core-ledger/pkg/money"
)

// --- Amounts ---

// Amount is a decimal amount as sent by clients. Both "12.34" and 12.34 are
// accepted; the engine parses and rounds it.
type Amount string

// UnmarshalJSON accepts a JSON string or number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a decimal string or number")
	}
	*a = Amount(n.String())
	return nil
}

// --- Requests ---

type CreateAccountRequest struct {
	Name           string `json:"name" binding:"required,notblank,max=100"`
	InitialBalance Amount `json:"initial_balance"`
}

// MovementRequest is the body of a deposit or withdrawal. The account comes
// from the path.
type MovementRequest struct {
	Amount      Amount `json:"amount" binding:"required"`
	Description string `json:"description" binding:"omitempty,printable"`
}

type TransferRequest struct {
	FromAccountID int64  `json:"from_account_id" binding:"required"`
	ToAccountID   int64  `json:"to_account_id" binding:"required"`
	Amount        Amount `json:"amount" binding:"required"`
	Description   string `json:"description" binding:"omitempty,printable"`
}

type SimulateRequest struct {
	Count int `json:"count" binding:"omitempty,min=1,max=1000"`
}

// --- Responses ---

type AccountResponse struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Balance        money.Money `json:"balance"`
	BalanceDisplay string      `json:"balance_display"`
	CreatedAt      string      `json:"created_at"`
}

type TransactionResponse struct {
	ID              int64       `json:"id"`
	Kind            string      `json:"kind"`
	FromAccountID   *int64      `json:"from_account_id,omitempty"`
	ToAccountID     *int64      `json:"to_account_id,omitempty"`
	FromAccountName string      `json:"from_account_name,omitempty"`
	ToAccountName   string      `json:"to_account_name,omitempty"`
	Amount          money.Money `json:"amount"`
	Description     string      `json:"description"`
	CreatedAt       string      `json:"created_at"`
}

// ReceiptResponse is returned by every committed deposit, withdrawal and
// transfer.
type ReceiptResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Accounts    []AccountResponse   `json:"accounts"`
}

type SimulationResponse struct {
	Requested int               `json:"requested"`
	Committed int               `json:"committed"`
	Rejected  map[string]int    `json:"rejected"`
	Receipts  []ReceiptResponse `json:"receipts"`
}

type TokenResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"`
}

// --- Mapping ---

func NewAccountResponse(a *domain.Account, currency string) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		Name:           a.Name,
		Balance:        a.Balance,
		BalanceDisplay: a.Balance.Display(currency),
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func NewAccountResponses(accounts []domain.Account, currency string) []AccountResponse {
	out := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, NewAccountResponse(&accounts[i], currency))
	}
	return out
}

func NewTransactionResponse(tx *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            tx.ID,
		Kind:          string(tx.Kind),
		FromAccountID: tx.FromAccountID,
		ToAccountID:   tx.ToAccountID,
		Amount:        tx.Amount,
		Description:   tx.Description,
		CreatedAt:     tx.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func NewTransactionResponses(txns []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, NewTransactionResponse(&txns[i]))
	}
	return out
}

// NewTransactionViewResponses maps log entries that carry account names.
func NewTransactionViewResponses(views []domain.TransactionView) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(views))
	for i := range views {
		resp := NewTransactionResponse(&views[i].Transaction)
		resp.FromAccountName = views[i].FromAccountName
		resp.ToAccountName = views[i].ToAccountName
		out = append(out, resp)
	}
	return out
}

func NewReceiptResponse(r *ports.Receipt, currency string) ReceiptResponse {
	return ReceiptResponse{
		Transaction: NewTransactionResponse(&r.Transaction),
		Accounts:    NewAccountResponses(r.Accounts, currency),
	}
}

func NewSimulationResponse(r *ports.SimulationResult, currency string) SimulationResponse {
	receipts := make([]ReceiptResponse, 0, len(r.Receipts))
	for i := range r.Receipts {
		receipts = append(receipts, NewReceiptResponse(&r.Receipts[i], currency))
	}
	return SimulationResponse{
		Requested: r.Requested,
		Committed: r.Committed,
		Rejected:  r.Rejected,
		Receipts:  receipts,
	}
}
