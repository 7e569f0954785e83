package handler

import (
	"context"
	"net/http"
	"time"

	"core-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
	CheckedAt    string                      `json:"checked_at"`
}

// HealthCheck handles GET /health. It pings the ledger store and, when
// configured, Redis; any failure reports the service as degraded.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{
			Status:       "healthy",
			Dependencies: make(map[string]dependencyStatus, len(checkers)),
			CheckedAt:    time.Now().UTC().Format(time.RFC3339),
		}
		httpCode := http.StatusOK

		for _, checker := range checkers {
			if err := checker.Ping(ctx); err != nil {
				resp.Dependencies[checker.Name()] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
				resp.Status = "degraded"
				httpCode = http.StatusServiceUnavailable
				continue
			}
			resp.Dependencies[checker.Name()] = dependencyStatus{Status: "healthy"}
		}

		c.JSON(httpCode, resp)
	}
}
