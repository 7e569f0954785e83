package handler

import (
	"core-ledger/internal/adapter/http/dto"
	"core-ledger/internal/core/ports"
	"core-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransferHandler serves transfers between two accounts.
type TransferHandler struct {
	ledger   ports.LedgerService
	currency string
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(ledger ports.LedgerService, currency string) *TransferHandler {
	return &TransferHandler{ledger: ledger, currency: currency}
}

// Transfer handles POST /api/v1/transfers.
func (h *TransferHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !bindJSON(c, &req) {
		return
	}

	receipt, err := h.ledger.Transfer(c.Request.Context(), ports.TransferRequest{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        string(req.Amount),
		Description:   req.Description,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, dto.NewReceiptResponse(receipt, h.currency))
}
