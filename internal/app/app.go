// Package app wires configuration into a running ledger: storage, optional
// Redis, event sinks, services and the HTTP router. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"core-ledger/config"
	"core-ledger/internal/adapter/events"
	httpHandler "core-ledger/internal/adapter/http/handler"
	"core-ledger/internal/adapter/http/middleware"
	"core-ledger/internal/adapter/storage/memory"
	pgStorage "core-ledger/internal/adapter/storage/postgres"
	redisStorage "core-ledger/internal/adapter/storage/redis"
	"core-ledger/internal/core/ports"
	"core-ledger/internal/export"
	"core-ledger/internal/service"
	"core-ledger/pkg/logger"
	"core-ledger/pkg/money"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// auditCapacity bounds the in-memory audit ring used with the file driver.
const auditCapacity = 1000

// App is a fully wired ledger. Optional components are nil when disabled.
type App struct {
	Config *config.Config
	Log    zerolog.Logger
	Money  money.Context

	Ledger    ports.LedgerService
	Reporting ports.ReportingService
	Simulator ports.Simulator
	Exporter  *export.Exporter
	Hub       *events.Hub

	Tokens           ports.TokenService
	Audit            ports.AuditService
	IdempotencyCache ports.IdempotencyCache
	RateLimitStore   ports.RateLimitStore
	HealthCheckers   []ports.HealthChecker

	closers []func() error
}

type storage struct {
	accounts   ports.AccountRepository
	txns       ports.TransactionRepository
	transactor ports.DBTransactor
	audit      ports.AuditRepository
	health     ports.HealthChecker
}

// New builds an App from cfg. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	mc, err := cfg.Ledger.MoneyContext()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log, Money: mc}
	if err := a.build(ctx); err != nil {
		a.Close() //nolint:errcheck
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, log := a.Config, a.Log

	st, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	a.HealthCheckers = append(a.HealthCheckers, st.health)

	var lock ports.WriterLock
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		a.IdempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		a.RateLimitStore = redisStorage.NewRateLimitStore(rdb)
		a.HealthCheckers = append(a.HealthCheckers, redisStorage.NewHealthCheck(rdb))
		lock = redisStorage.NewWriterLock(rdb, redisStorage.DefaultWriterLockOptions(), logger.Component(log, "writer-lock"))
	}

	sinks, err := a.openEventSinks()
	if err != nil {
		return err
	}

	ledger := service.NewLedgerService(st.accounts, st.txns, st.transactor, service.LedgerOptions{
		Money:          a.Money,
		MaxDescription: cfg.Ledger.MaxDescription,
		Lock:           lock,
		Events:         events.NewFanout(sinks...),
	}, logger.Component(log, "ledger"))
	a.Ledger = ledger

	a.Reporting = service.NewReportingService(st.accounts, st.txns, a.Money)
	a.Simulator = service.NewSimulator(ledger, time.Now().UnixNano(), logger.Component(log, "simulator"))
	a.Exporter = export.New(a.Reporting, true, logger.Component(log, "export"))

	audit := service.NewAuditService(st.audit, logger.Component(log, "audit"))
	a.Audit = audit
	a.closers = append(a.closers, func() error { audit.Wait(); return nil })

	if cfg.Auth.Enabled() {
		a.Tokens = service.NewJWTTokenService(cfg.Auth.JWTSecret, cfg.Auth.Expiry, cfg.Auth.Issuer)
	}

	// The hub closes first so open event streams end before the sinks go.
	a.closers = append(a.closers, a.Hub.Close)
	return nil
}

func (a *App) openStorage(ctx context.Context) (*storage, error) {
	cfg, log := a.Config, a.Log

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if cfg.Storage.AutoMigrate {
			if err := pgStorage.Migrate(cfg.Database.MigrateURL(), logger.Component(log, "migrate")); err != nil {
				return nil, err
			}
		}
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		return &storage{
			accounts:   pgStorage.NewAccountRepo(pool),
			txns:       pgStorage.NewTransactionRepo(pool),
			transactor: pgStorage.NewTransactor(pool),
			audit:      pgStorage.NewAuditRepository(pool),
			health:     pgStorage.NewHealthCheck(pool),
		}, nil

	default:
		store, err := memory.Open(cfg.Storage.Path, logger.Component(log, "store"))
		if err != nil {
			return nil, fmt.Errorf("open ledger file: %w", err)
		}
		if store.Path() != "" {
			log.Info().Str("path", store.Path()).Msg("ledger file opened")
		} else {
			log.Warn().Msg("no storage path set, ledger is kept in memory only")
		}
		return &storage{
			accounts:   memory.NewAccountRepo(store),
			txns:       memory.NewTransactionRepo(store),
			transactor: store,
			audit:      memory.NewAuditRepository(auditCapacity),
			health:     memory.NewHealthCheck(store),
		}, nil
	}
}

// openEventSinks returns the in-process hub plus whichever of AMQP and the
// webhook are configured.
func (a *App) openEventSinks() ([]ports.EventPublisher, error) {
	cfg, log := a.Config, a.Log

	a.Hub = events.NewHub(logger.Component(log, "events"))
	sinks := []ports.EventPublisher{a.Hub}

	if cfg.AMQP.URL != "" {
		pub, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, logger.Component(log, "amqp"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		sinks = append(sinks, pub)
	}

	if cfg.Webhook.URL != "" {
		notifier := service.NewWebhookNotifier(service.WebhookOptions{
			URL:         cfg.Webhook.URL,
			Secret:      cfg.Webhook.Secret,
			MaxFailures: cfg.Webhook.MaxFailures,
			OpenTimeout: cfg.Webhook.OpenTimeout,
		}, service.NewHMACSignatureService(), &http.Client{Timeout: cfg.Webhook.Timeout}, logger.Component(log, "webhook"))
		a.closers = append(a.closers, notifier.Close)
		sinks = append(sinks, notifier)
		log.Info().Str("url", cfg.Webhook.URL).Msg("webhook delivery enabled")
	}
	return sinks, nil
}

// Router builds the HTTP API on top of the App.
func (a *App) Router() *gin.Engine {
	return httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:        a.Ledger,
		ReportingSvc:     a.Reporting,
		Simulator:        a.Simulator,
		Events:           a.Hub,
		Currency:         a.Money.Currency,
		TokenSvc:         a.Tokens,
		RateLimitStore:   a.RateLimitStore,
		RateLimitRules:   middleware.RateLimitRules(a.Config.RateLimit.Requests, a.Config.RateLimit.Window),
		IdempotencyCache: a.IdempotencyCache,
		AuditSvc:         a.Audit,
		HealthCheckers:   a.HealthCheckers,
		Mode:             a.Config.Server.Mode,
		Logger:           logger.Component(a.Log, "http"),
	})
}

// Close releases everything New opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
