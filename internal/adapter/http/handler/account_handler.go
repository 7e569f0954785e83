package handler

import (
	"context"
	"net/http"
	"strconv"

	"core-ledger/internal/adapter/http/dto"
	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"
	"core-ledger/pkg/apperror"
	"core-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves accounts and the movements on a single account.
type AccountHandler struct {
	ledger   ports.LedgerService
	currency string
}

// NewAccountHandler creates a new AccountHandler. currency is used for the
// display form of balances.
func NewAccountHandler(ledger ports.LedgerService, currency string) *AccountHandler {
	return &AccountHandler{ledger: ledger, currency: currency}
}

// List handles GET /api/v1/accounts. With ?name= it returns that single
// account instead.
func (h *AccountHandler) List(c *gin.Context) {
	if name, ok := c.GetQuery("name"); ok {
		account, err := h.ledger.GetAccountByName(c.Request.Context(), name)
		if err != nil {
			fail(c, err)
			return
		}
		response.OK(c, dto.NewAccountResponse(account, h.currency))
		return
	}

	accounts, err := h.ledger.ListAccounts(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.List(c, dto.NewAccountResponses(accounts, h.currency), len(accounts))
}

// Create handles POST /api/v1/accounts.
func (h *AccountHandler) Create(c *gin.Context) {
	var req dto.CreateAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.ledger.CreateAccount(c.Request.Context(), ports.CreateAccountRequest{
		Name:           req.Name,
		InitialBalance: string(req.InitialBalance),
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.Header("Location", c.Request.URL.Path+"/"+strconv.FormatInt(account.ID, 10))
	response.Created(c, dto.NewAccountResponse(account, h.currency))
}

// Get handles GET /api/v1/accounts/:id.
func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	account, err := h.ledger.GetAccount(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, dto.NewAccountResponse(account, h.currency))
}

// Delete handles DELETE /api/v1/accounts/:id. Only empty accounts can be
// deleted; their history stays in the log.
func (h *AccountHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.ledger.DeleteAccount(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// History handles GET /api/v1/accounts/:id/transactions?order=asc|desc.
func (h *AccountHandler) History(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, valid := domain.ParseHistoryOrder(c.Query("order"))
	if !valid {
		fail(c, apperror.Validation("order must be asc or desc"))
		return
	}

	txns, err := h.ledger.GetHistory(c.Request.Context(), id, order)
	if err != nil {
		fail(c, err)
		return
	}
	response.List(c, dto.NewTransactionResponses(txns), len(txns))
}

// Deposit handles POST /api/v1/accounts/:id/deposit.
func (h *AccountHandler) Deposit(c *gin.Context) {
	h.move(c, h.ledger.Deposit)
}

// Withdraw handles POST /api/v1/accounts/:id/withdraw.
func (h *AccountHandler) Withdraw(c *gin.Context) {
	h.move(c, h.ledger.Withdraw)
}

func (h *AccountHandler) move(c *gin.Context, op func(ctx context.Context, req ports.MovementRequest) (*ports.Receipt, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.MovementRequest
	if !bindJSON(c, &req) {
		return
	}

	receipt, err := op(c.Request.Context(), ports.MovementRequest{
		AccountID:   id,
		Amount:      string(req.Amount),
		Description: req.Description,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, dto.NewReceiptResponse(receipt, h.currency))
}
