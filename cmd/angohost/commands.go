package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/angohost/portal/internal/app/domain/catalog"
	"github.com/angohost/portal/internal/app/realtime"
	"github.com/angohost/portal/internal/app/runtime"
	billingsvc "github.com/angohost/portal/internal/app/services/billing"
	"github.com/angohost/portal/internal/app/sqlproxy"
	"github.com/angohost/portal/internal/app/storage/postgres"
	"github.com/angohost/portal/internal/config"
	"github.com/angohost/portal/internal/platform/migrations"
)

var (
	envFile    string
	memoryMode bool
	rollback   int

	rootCmd = &cobra.Command{
		Use:           "angohost",
		Short:         "AngoHost hosting and domain storefront backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	}
	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migrations",
		RunE:  runMigrateDown,
	}
	migrateVersionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE:  runMigrateVersion,
	}
	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Create the default payment methods",
		RunE:  runSeed,
	}
	hashTokenCmd = &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the bcrypt hash of a SQL proxy token",
		Args:  cobra.ExactArgs(1),
		RunE:  runHashToken,
	}
	catalogCmd = &cobra.Command{
		Use:   "check-catalog [path]",
		Short: "Validate a catalog YAML file",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheckCatalog,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to a .env file loaded before the environment")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&memoryMode, "memory", false, "Keep all data in memory (ignores DATABASE_URL and REDIS_ADDR)")

	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateDownCmd.Flags().IntVar(&rollback, "steps", 1, "Number of migrations to revert")
	migrateCmd.AddCommand(migrateVersionCmd)

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(hashTokenCmd)
	rootCmd.AddCommand(catalogCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(envFile)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if memoryMode {
		cfg.Database.DSN = ""
		cfg.Redis.Addr = ""
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := runtime.NewApplication(ctx, cfg, nil)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// openDB opens the configured database; commands touching the schema need
// Postgres.
func openDB(ctx context.Context) (*sql.DB, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.UsesPostgres() {
		return nil, nil, errors.New("DATABASE_URL is required")
	}
	db, err := runtime.OpenDatabase(ctx, cfg.Database)
	return db, cfg, err
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	db, _, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrations.Apply(cmd.Context(), db); err != nil {
		return err
	}
	return printVersion(cmd, db)
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	db, _, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrations.Rollback(cmd.Context(), db, rollback); err != nil {
		return err
	}
	return printVersion(cmd, db)
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	db, _, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()
	return printVersion(cmd, db)
}

func printVersion(cmd *cobra.Command, db *sql.DB) error {
	version, dirty, err := migrations.Version(db)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, state)
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	db, cfg, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	log := runtime.NewLogger(cfg.Logging)
	svc := billingsvc.New(postgres.New(db), realtime.Discard{}, log.Named("seed"))
	added, err := svc.SeedPaymentMethods(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d payment methods added\n", added)
	return nil
}

func runHashToken(cmd *cobra.Command, args []string) error {
	hash, err := sqlproxy.HashToken(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

func runCheckCatalog(cmd *cobra.Command, args []string) error {
	c, err := catalog.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d hosting plans, %d email plans, %d TLDs\n", len(c.Hosting), len(c.Email), len(c.TLDs))
	return nil
}
