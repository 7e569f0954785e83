package middleware

import (
	"fmt"
	"strconv"
	"time"

	"core-ledger/internal/core/ports"
	"core-ledger/pkg/apperror"
	"core-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Rate limit groups.
const (
	GroupRead     = "read"
	GroupWrite    = "write"
	GroupSimulate = "simulate"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// RateLimitRules derives per-group limits from the configured read allowance.
// Writes get a quarter of it and simulations, which fan out into many
// writes, a twentieth. A non-positive allowance disables limiting.
func RateLimitRules(requests int64, window time.Duration) map[string]RateLimitRule {
	if requests <= 0 || window <= 0 {
		return nil
	}
	return map[string]RateLimitRule{
		GroupRead:     {Limit: requests, Window: window},
		GroupWrite:    {Limit: max(requests/4, 1), Window: window},
		GroupSimulate: {Limit: max(requests/20, 1), Window: window},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
func RateLimiter(store ports.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys the limit by token subject, falling back to the
// client address when the API is open.
func extractIdentifier(c *gin.Context) string {
	if subject := c.GetString(CtxSubject); subject != "" {
		return "sub:" + subject
	}
	return "ip:" + c.ClientIP()
}
