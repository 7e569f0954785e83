package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records every request that attempted a ledger mutation, whatever
// its outcome. Routes are matched on their registered pattern.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		details := map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}
		if len(c.Errors) > 0 {
			details["errors"] = c.Errors.String()
		}
		raw, _ := json.Marshal(details)

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Subject:      c.GetString(CtxSubject),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			Outcome:      c.Writer.Status(),
			Details:      string(raw),
			IPAddress:    c.ClientIP(),
			RequestID:    c.GetString(CtxRequestID),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapPathToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/api/v1/accounts" && method == http.MethodPost:
		return domain.AuditActionCreateAccount, "account"
	case route == "/api/v1/accounts/:id" && method == http.MethodDelete:
		return domain.AuditActionDeleteAccount, "account"
	case route == "/api/v1/accounts/:id/deposit" && method == http.MethodPost:
		return domain.AuditActionDeposit, "transaction"
	case route == "/api/v1/accounts/:id/withdraw" && method == http.MethodPost:
		return domain.AuditActionWithdraw, "transaction"
	case route == "/api/v1/transfers" && method == http.MethodPost:
		return domain.AuditActionTransfer, "transaction"
	case route == "/api/v1/simulate" && method == http.MethodPost:
		return domain.AuditActionSimulate, "simulation"
	}
	return "", ""
}
