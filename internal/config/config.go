// Package config loads portal configuration from the environment.
//
// Values are read with envdecode after an optional .env file has been loaded
// with godotenv. Slice values use ';' as separator.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	Env         string `env:"APP_ENV,default=development"`
	CatalogPath string `env:"CATALOG_PATH"`

	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Supabase  SupabaseConfig
	Auth      AuthConfig
	Pricing   PricingConfig
	Checkout  CheckoutConfig
	Scheduler SchedulerConfig
	Proxy     ProxyConfig
	Logging   LoggingConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `env:"HTTP_HOST,default=0.0.0.0"`
	Port            int           `env:"HTTP_PORT,default=8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT,default=10s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitRPS    int           `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST,default=40"`
	// JSONL file receiving admin writes. Empty keeps the audit in memory only.
	AuditLogPath string `env:"ADMIN_AUDIT_LOG"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures Postgres. An empty DSN selects the in-memory store.
type DatabaseConfig struct {
	Driver          string `env:"DATABASE_DRIVER,default=postgres"`
	DSN             string `env:"DATABASE_URL"`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS,default=20"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime int    `env:"DATABASE_CONN_MAX_LIFETIME,default=300"` // seconds
	AutoMigrate     bool   `env:"DATABASE_AUTO_MIGRATE,default=false"`
}

// RedisConfig configures the cart store. An empty Addr keeps carts in memory.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,default=0"`
	CartTTL  time.Duration `env:"CART_TTL,default=168h"`
}

// SupabaseConfig configures the Supabase project.
type SupabaseConfig struct {
	URL        string `env:"SUPABASE_URL"`
	AnonKey    string `env:"SUPABASE_ANON_KEY"`
	ServiceKey string `env:"SUPABASE_SERVICE_KEY"`
	JWTSecret  string `env:"SUPABASE_JWT_SECRET"`
	// Edge function invoked after checkout. Empty disables notifications.
	OrderEmailFunction string `env:"SUPABASE_ORDER_EMAIL_FUNCTION,default=send-order-confirmation"`
}

// AuthConfig configures request authentication.
type AuthConfig struct {
	// Emails granted the admin role when their profile is first created.
	AdminEmails []string `env:"ADMIN_EMAILS"`
}

// PricingConfig holds the discount table. Amounts are in cêntimos.
type PricingConfig struct {
	HostingYearRate    float64 `env:"PRICING_HOSTING_YEAR_RATE,default=0.05"`
	EmailMultiYearRate float64 `env:"PRICING_EMAIL_MULTIYEAR_RATE,default=0.10"`
	Tier1Threshold     int64   `env:"PRICING_TIER1_THRESHOLD,default=5000000"`
	Tier1Rate          float64 `env:"PRICING_TIER1_RATE,default=0.05"`
	Tier2Threshold     int64   `env:"PRICING_TIER2_THRESHOLD,default=10000000"`
	Tier2Rate          float64 `env:"PRICING_TIER2_RATE,default=0.10"`
}

// CheckoutConfig configures order materialization.
type CheckoutConfig struct {
	InvoiceDueDays int `env:"INVOICE_DUE_DAYS,default=7"`
}

// SchedulerConfig configures background jobs. Specs use robfig/cron syntax.
type SchedulerConfig struct {
	Enabled       bool   `env:"SCHEDULER_ENABLED,default=true"`
	SweepSpec     string `env:"SCHEDULER_SWEEP_SPEC,default=@every 1h"`
	CartPurgeSpec string `env:"SCHEDULER_CART_PURGE_SPEC,default=@every 15m"`
}

// ProxyConfig configures the admin SQL proxy. An empty hash disables it.
type ProxyConfig struct {
	TokenHash string        `env:"SQL_PROXY_TOKEN_HASH"`
	Timeout   time.Duration `env:"SQL_PROXY_TIMEOUT,default=5s"`
	MaxRows   int           `env:"SQL_PROXY_MAX_ROWS,default=500"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=json"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=angohost"`
}

// Load reads .env files (when present) and decodes the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Auth.AdminEmails = trimAll(c.Auth.AdminEmails, true)
	c.Server.AllowedOrigins = trimAll(c.Server.AllowedOrigins, false)
	c.Supabase.URL = strings.TrimRight(c.Supabase.URL, "/")
}

func trimAll(in []string, lower bool) []string {
	out := in[:0]
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if lower {
			v = strings.ToLower(v)
		}
		out = append(out, v)
	}
	return out
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT out of range: %d", c.Server.Port))
	}
	p := c.Pricing
	if p.Tier1Threshold <= 0 || p.Tier2Threshold <= p.Tier1Threshold {
		errs = append(errs, errors.New("pricing tiers must satisfy 0 < PRICING_TIER1_THRESHOLD < PRICING_TIER2_THRESHOLD"))
	}
	for name, rate := range map[string]float64{
		"PRICING_HOSTING_YEAR_RATE":    p.HostingYearRate,
		"PRICING_EMAIL_MULTIYEAR_RATE": p.EmailMultiYearRate,
		"PRICING_TIER1_RATE":           p.Tier1Rate,
		"PRICING_TIER2_RATE":           p.Tier2Rate,
	} {
		if rate < 0 || rate >= 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0,1): %v", name, rate))
		}
	}
	if c.Checkout.InvoiceDueDays <= 0 {
		errs = append(errs, errors.New("INVOICE_DUE_DAYS must be positive"))
	}
	if c.Supabase.JWTSecret == "" && c.Supabase.URL == "" && c.IsProduction() {
		errs = append(errs, errors.New("SUPABASE_JWT_SECRET or SUPABASE_URL is required in production"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// UsesPostgres reports whether a database DSN is configured.
func (c *Config) UsesPostgres() bool {
	return c.Database.DSN != ""
}
