package handler

import (
	"time"

	"core-ledger/internal/adapter/http/middleware"
	"core-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc    ports.LedgerService
	ReportingSvc ports.ReportingService
	Simulator    ports.Simulator
	Events       EventSource
	Currency     string

	TokenSvc         ports.TokenService     // nil = API open, no scopes checked
	RateLimitStore   ports.RateLimitStore   // nil = rate limiting disabled
	RateLimitRules   map[string]middleware.RateLimitRule
	IdempotencyCache ports.IdempotencyCache // nil = Idempotency-Key ignored
	AuditSvc         ports.AuditService     // nil = audit logging disabled
	HealthCheckers   []ports.HealthChecker
	KeepAlive        time.Duration // SSE keep-alive interval
	Mode             string        // gin mode; defaults to release
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	var noop gin.HandlerFunc = func(c *gin.Context) { c.Next() }

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return noop
		}
		rule, ok := deps.RateLimitRules[group]
		if !ok {
			return noop
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	idem := noop
	if deps.IdempotencyCache != nil {
		idem = middleware.Idempotency(deps.IdempotencyCache, deps.Logger)
	}

	reads := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return []gin.HandlerFunc{middleware.RequireScope(ports.ScopeRead), rl(middleware.GroupRead), h}
	}
	// Write routes need the write scope, then rate limiting, then replay.
	writes := func(group string, h gin.HandlerFunc) []gin.HandlerFunc {
		return []gin.HandlerFunc{middleware.RequireScope(ports.ScopeWrite), rl(group), idem, h}
	}

	v1 := r.Group("/api/v1")
	if deps.TokenSvc != nil {
		v1.Use(middleware.JWTAuth(deps.TokenSvc, deps.Logger))
	}

	accountHandler := NewAccountHandler(deps.LedgerSvc, deps.Currency)
	accounts := v1.Group("/accounts")
	{
		accounts.GET("", reads(accountHandler.List)...)
		accounts.POST("", writes(middleware.GroupWrite, accountHandler.Create)...)
		accounts.GET("/:id", reads(accountHandler.Get)...)
		accounts.DELETE("/:id", writes(middleware.GroupWrite, accountHandler.Delete)...)
		accounts.GET("/:id/transactions", reads(accountHandler.History)...)
		accounts.POST("/:id/deposit", writes(middleware.GroupWrite, accountHandler.Deposit)...)
		accounts.POST("/:id/withdraw", writes(middleware.GroupWrite, accountHandler.Withdraw)...)
	}

	transferHandler := NewTransferHandler(deps.LedgerSvc, deps.Currency)
	v1.POST("/transfers", writes(middleware.GroupWrite, transferHandler.Transfer)...)

	reportHandler := NewReportHandler(deps.ReportingSvc)
	v1.GET("/transactions", reads(reportHandler.Transactions)...)
	reports := v1.Group("/reports")
	{
		reports.GET("/dashboard", reads(reportHandler.Dashboard)...)
		reports.GET("/monthly", reads(reportHandler.Monthly)...)
		reports.GET("/cashflow", reads(reportHandler.Cashflow)...)
		reports.GET("/kpis", reads(reportHandler.KPIs)...)
		reports.GET("/reconciliation", reads(reportHandler.Reconciliation)...)
	}

	if deps.Events != nil {
		eventHandler := NewEventHandler(deps.Events, deps.KeepAlive)
		v1.GET("/events", reads(eventHandler.Stream)...)
	}

	if deps.Simulator != nil {
		simulateHandler := NewSimulateHandler(deps.Simulator, deps.Currency)
		v1.POST("/simulate", writes(middleware.GroupSimulate, simulateHandler.Run)...)
	}

	return r
}

