package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"core-ledger/pkg/money"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	AMQP      AMQPConfig      `mapstructure:"amqp"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the ledger backend. With the file driver an empty
// Path keeps the ledger in memory only.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"` // file, postgres
	Path        string `mapstructure:"path"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return d.url("postgres")
}

// MigrateURL returns the connection string in the form golang-migrate's
// pgx/v5 driver expects.
func (d DatabaseConfig) MigrateURL() string {
	return d.url("pgx5")
}

func (d DatabaseConfig) url(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuthConfig configures bearer tokens for the HTTP API. An empty JWTSecret
// leaves the API open.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Expiry    time.Duration `mapstructure:"expiry"`
	Issuer    string        `mapstructure:"issuer"`
}

// Enabled reports whether the API requires tokens.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

type LedgerConfig struct {
	Currency       string `mapstructure:"currency"`
	Places         int32  `mapstructure:"places"`
	Rounding       string `mapstructure:"rounding"` // half_up, half_even, down
	MaxDescription int    `mapstructure:"max_description"`
}

// MoneyContext builds the arithmetic context the engine runs with.
func (l LedgerConfig) MoneyContext() (money.Context, error) {
	rounding, err := money.ParseRounding(l.Rounding)
	if err != nil {
		return money.Context{}, err
	}
	return money.NewContext(l.Currency, l.Places, rounding)
}

// WebhookConfig configures signed event delivery. An empty URL disables it.
type WebhookConfig struct {
	URL         string        `mapstructure:"url"`
	Secret      string        `mapstructure:"secret"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxFailures uint32        `mapstructure:"max_failures"` // consecutive failures before the breaker opens
	OpenTimeout time.Duration `mapstructure:"open_timeout"` // time the breaker stays open
}

// AMQPConfig configures the event exchange. An empty URL disables it.
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type RateLimitConfig struct {
	Requests int64         `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Validate rejects settings the application cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverFile, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", DriverFile, DriverPostgres, c.Storage.Driver))
	}
	if _, err := c.Ledger.MoneyContext(); err != nil {
		errs = append(errs, fmt.Errorf("ledger: %w", err))
	}
	if c.Ledger.MaxDescription < 0 {
		errs = append(errs, errors.New("ledger.max_description cannot be negative"))
	}
	if c.Webhook.URL != "" && c.Webhook.Secret == "" {
		errs = append(errs, errors.New("webhook.secret is required when webhook.url is set"))
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.window must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: LEDGER_.
// Nested keys use underscore: LEDGER_STORAGE_DRIVER, LEDGER_AUTH_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.path", "ledger.json")
	v.SetDefault("storage.auto_migrate", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "core_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.expiry", "24h")
	v.SetDefault("auth.issuer", "core-ledger")
	v.SetDefault("ledger.currency", "USD")
	v.SetDefault("ledger.places", 2)
	v.SetDefault("ledger.rounding", "half_up")
	v.SetDefault("ledger.max_description", 255)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("webhook.max_failures", 5)
	v.SetDefault("webhook.open_timeout", "30s")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "ledger.events")
	v.SetDefault("ratelimit.requests", 120)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: LEDGER_STORAGE_DRIVER -> storage.driver
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
