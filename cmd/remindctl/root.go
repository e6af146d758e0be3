package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"carwash/internal/bootstrap"
	"carwash/internal/config"
	"carwash/internal/db"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "remindctl",
		Short:         "Inspect and drive the booking reminder service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newJobsCmd())
	root.AddCommand(newSweepCmd())

	return root
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what a command needs once configuration is loaded and the
// database is reachable.
type env struct {
	cfg    *config.Config
	pool   *pgxpool.Pool
	loc    *time.Location
	logger *slog.Logger
}

func (e *env) Close() {
	e.pool.Close()
}

// openEnv loads the configuration, connects and migrates the database.
// Logs go to stderr so command output stays clean on stdout.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadConfig(config.NewSecretProvider(os.LookupEnv))
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := bootstrap.NewLogger(cfg.LogLevel, os.Stderr)

	loc, err := cfg.Reminder.Location()
	if err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL.Unmask(), db.PoolOptions{
		MaxConns: 2,
		MinConns: 0,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &env{cfg: cfg, pool: pool, loc: loc, logger: logger}, nil
}
