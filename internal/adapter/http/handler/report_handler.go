package handler

import (
	"core-ledger/internal/adapter/http/dto"
	"core-ledger/internal/core/ports"
	"core-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 500
)

// ReportHandler serves read-only aggregates. Nothing here touches the write
// path.
type ReportHandler struct {
	reporting ports.ReportingService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reporting ports.ReportingService) *ReportHandler {
	return &ReportHandler{reporting: reporting}
}

// Transactions handles GET /api/v1/transactions?limit=N, newest first.
func (h *ReportHandler) Transactions(c *gin.Context) {
	limit := queryLimit(c, defaultTransactionLimit, maxTransactionLimit)
	views, err := h.reporting.RecentTransactions(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.List(c, dto.NewTransactionViewResponses(views), len(views))
}

// Dashboard handles GET /api/v1/reports/dashboard.
func (h *ReportHandler) Dashboard(c *gin.Context) {
	d, err := h.reporting.Dashboard(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, d)
}

// Monthly handles GET /api/v1/reports/monthly.
func (h *ReportHandler) Monthly(c *gin.Context) {
	rows, err := h.reporting.MonthlySummary(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.List(c, rows, len(rows))
}

// Cashflow handles GET /api/v1/reports/cashflow.
func (h *ReportHandler) Cashflow(c *gin.Context) {
	days, err := h.reporting.Cashflow(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.List(c, days, len(days))
}

// KPIs handles GET /api/v1/reports/kpis.
func (h *ReportHandler) KPIs(c *gin.Context) {
	kpis, err := h.reporting.KPIs(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, kpis)
}

// Reconciliation handles GET /api/v1/reports/reconciliation. An inconsistent
// ledger is still a 200: the report itself is the answer.
func (h *ReportHandler) Reconciliation(c *gin.Context) {
	rec, err := h.reporting.Reconcile(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, rec)
}
