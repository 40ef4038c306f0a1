// Package runtime builds the portal from configuration and runs its HTTP
// server.
package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	goredis "github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	app "github.com/angohost/portal/internal/app"
	"github.com/angohost/portal/internal/app/domain/catalog"
	"github.com/angohost/portal/internal/app/httpapi"
	"github.com/angohost/portal/internal/app/pricing"
	checkoutsvc "github.com/angohost/portal/internal/app/services/checkout"
	"github.com/angohost/portal/internal/app/sqlproxy"
	"github.com/angohost/portal/internal/app/storage/postgres"
	redisstore "github.com/angohost/portal/internal/app/storage/redis"
	"github.com/angohost/portal/internal/config"
	"github.com/angohost/portal/internal/middleware"
	"github.com/angohost/portal/internal/platform/migrations"
	"github.com/angohost/portal/internal/supabase"
	"github.com/angohost/portal/pkg/logger"
)

const (
	rateLimitCleanupInterval = 5 * time.Minute
	supabaseTimeout          = 10 * time.Second
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	app     *app.Application
	handler http.Handler
	server  *http.Server
	limiter *middleware.RateLimiter

	db    *sql.DB
	redis *goredis.Client
	audit *os.File
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg config.LoggingConfig) *logger.Logger {
	return logger.New(logger.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		FilePrefix: cfg.FilePrefix,
		Component:  "angohost",
	})
}

// NewApplication constructs the portal. Without a database DSN the
// in-memory store is used, and without a Redis address carts are kept in
// memory as well.
func NewApplication(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = NewLogger(cfg.Logging)
	}
	a := &Application{cfg: cfg, log: log}
	if err := a.build(ctx); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *Application) build(ctx context.Context) error {
	cfg := a.cfg

	var stores app.Stores
	if cfg.UsesPostgres() {
		db, err := OpenDatabase(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.db = db
		if cfg.Database.AutoMigrate {
			if err := migrations.Apply(ctx, db); err != nil {
				return err
			}
			a.log.Info("database migrations applied")
		}
		stores.Store = postgres.New(db)
	} else {
		a.log.Warn("DATABASE_URL not set; using in-memory store")
	}

	if cfg.Redis.Addr != "" {
		client, err := redisstore.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		a.redis = client
		stores.Carts = redisstore.NewCartStore(client, cfg.Redis.CartTTL)
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		cat = loaded
	}
	rules := RulesFromConfig(cfg.Pricing)

	var sb *supabase.Client
	if client, err := supabase.New(cfg.Supabase, supabaseTimeout); err == nil {
		sb = client
	} else if !errors.Is(err, supabase.ErrNotConfigured) {
		return err
	}

	opts := app.Options{
		Catalog:        cat,
		Pricing:        &rules,
		AdminEmails:    cfg.Auth.AdminEmails,
		CartTTL:        cfg.Redis.CartTTL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Checkout: checkoutsvc.Options{
			InvoiceDueDays:     cfg.Checkout.InvoiceDueDays,
			OrderEmailFunction: cfg.Supabase.OrderEmailFunction,
		},
	}
	if sb != nil {
		opts.Notifier = sb
	}
	if cfg.Scheduler.Enabled {
		opts.SweepSpec = cfg.Scheduler.SweepSpec
		opts.CartPurgeSpec = cfg.Scheduler.CartPurgeSpec
	}

	application, err := app.New(stores, opts, a.log.Named("app"))
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	a.app = application

	var lookup middleware.UserLookup
	if sb != nil {
		lookup = sb
	}
	auth := middleware.NewAuthMiddleware(cfg.Supabase.JWTSecret, lookup, application.Accounts, a.log.Named("auth"))

	if cfg.Server.RateLimitRPS > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, a.log.Named("ratelimit"))
	}

	httpOpts := httpapi.Options{
		Auth:           auth,
		RateLimiter:    a.limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            a.log.Named("http"),
	}

	if a.db != nil && cfg.Proxy.TokenHash != "" {
		proxy, err := sqlproxy.New(a.db, cfg.Proxy, a.log.Named("sqlproxy"))
		if err != nil {
			return err
		}
		httpOpts.Proxy = proxy.Router()
	}

	if cfg.Server.AuditLogPath != "" {
		f, err := os.OpenFile(cfg.Server.AuditLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		a.audit = f
		httpOpts.AuditWriter = f
	}

	a.handler = httpapi.NewHandler(application, httpOpts)
	a.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return nil
}

// App exposes the composed services.
func (a *Application) App() *app.Application {
	return a.app
}

// Handler returns the root HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.handler
}

// Run starts the services and the HTTP server and blocks until ctx is
// cancelled or the server fails. Shutdown is performed before returning.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.WithField("addr", a.server.Addr).Info("HTTP server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if a.limiter != nil {
		a.limiter.StartCleanup(gctx, rateLimitCleanupInterval)
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown stops the HTTP server, the services and closes connections.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if a.app != nil {
		if err := a.app.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closeResources()
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *Application) closeResources() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
		a.redis = nil
	}
	if a.audit != nil {
		_ = a.audit.Close()
		a.audit = nil
	}
}

// RulesFromConfig converts the configured discount table.
func RulesFromConfig(p config.PricingConfig) pricing.Rules {
	return pricing.Rules{
		HostingYearRate:    p.HostingYearRate,
		EmailMultiYearRate: p.EmailMultiYearRate,
		Tier1Threshold:     p.Tier1Threshold,
		Tier1Rate:          p.Tier1Rate,
		Tier2Threshold:     p.Tier2Threshold,
		Tier2Rate:          p.Tier2Rate,
	}
}

// OpenDatabase opens and pings the configured database.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
