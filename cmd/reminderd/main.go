// Package main is the entry point for the reminder daemon.
//
// It loads the configuration, opens the database pool, restores persisted
// reminder jobs into the scheduler engine and serves the diagnostics and
// booking sync API. The HTTP server and the engine are supervised together;
// SIGINT or SIGTERM shuts both down gracefully.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"carwash/internal/api"
	"carwash/internal/booking"
	"carwash/internal/bootstrap"
	"carwash/internal/config"
	"carwash/internal/db"
	"carwash/internal/reminder"
	"carwash/internal/scheduler"
	"carwash/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(config.NewSecretProvider(os.LookupEnv))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := bootstrap.NewLogger(cfg.LogLevel, os.Stdout)
	logger.Info("reminderd starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"lead_time", cfg.Reminder.LeadTime.String(),
		"notifier", cfg.Reminder.Notifier,
	)

	loc, err := cfg.Reminder.Location()
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL.Unmask(), db.PoolOptions{
		MaxConns:          int32(cfg.Database.MaxConns),
		MinConns:          int32(cfg.Database.MinConns),
		MaxConnLifetime:   cfg.Database.MaxConnLifetime,
		HealthCheckPeriod: cfg.Database.HealthCheckPeriod,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	clock := types.RealClock{}
	bookings := db.NewBookingRepository(pool, loc)
	jobs := db.NewScheduledJobRepository(pool)

	notifier, closeNotifier, err := bootstrap.BuildNotifier(ctx, bootstrap.NotifierDeps{
		Config:   cfg,
		Contacts: bookings,
		Clock:    clock,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := closeNotifier(); err != nil {
			logger.Error("closing notifier", "error", err)
		}
	}()

	engine := scheduler.NewEngine(scheduler.EngineConfig{
		Store:    jobs,
		Bookings: bookings,
		Notifier: notifier,
		Clock:    clock,
		Retry:    retryPolicy(cfg.Reminder),
		Logger:   logger.With("component", "scheduler"),
	})
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	adapter := bootstrap.SlogAdapter{Logger: logger}
	leadTime := reminder.NewAtomicLeadTime(cfg.Reminder.LeadTime)
	bookingSvc := booking.NewService(booking.Config{
		Bookings:  bookings,
		Scheduler: engine,
		Notifier:  notifier,
		LeadTime:  leadTime,
		Mode:      booking.SendNowMode(cfg.Reminder.SendNowMode),
		Clock:     clock,
		Logger:    adapter.With("component", "booking"),
	})
	sweeper := reminder.NewSweeper(reminder.SweeperConfig{
		Bookings:   bookings,
		Dispatcher: engine,
		Clock:      clock,
		Logger:     adapter.With("component", "sweep"),
	})

	srv, err := api.NewServer(api.ServerConfig{
		Jobs:           engine,
		Bookings:       bookingSvc,
		Sweeper:        sweeper,
		LeadTime:       leadTime,
		HealthProbes:   []api.HealthProbe{api.DatabaseProbe{DB: pool}},
		Clock:          clock,
		Logger:         logger,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	if err != nil {
		_ = engine.Stop(context.Background())
		return fmt.Errorf("creating server: %w", err)
	}

	return serve(ctx, srv, engine, cfg.Server, logger)
}

// retryPolicy returns the engine retry policy, or nil when automatic retry
// is disabled.
func retryPolicy(cfg config.ReminderConfig) *scheduler.RetryPolicy {
	if !cfg.RetryEnabled {
		return nil
	}
	return &scheduler.RetryPolicy{
		MaxAttempts:   cfg.RetryMaxAttempts,
		BaseDelay:     cfg.RetryBaseDelay,
		MaxDelay:      cfg.RetryMaxDelay,
		BackoffFactor: scheduler.DefaultRetryPolicy.BackoffFactor,
	}
}

// serve runs the HTTP server until ctx is cancelled or the listener fails,
// then shuts down the server and the engine within the shutdown timeout.
func serve(ctx context.Context, srv *api.Server, engine *scheduler.Engine, cfg config.ServerConfig, logger *slog.Logger) error {
	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := engine.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("reminderd stopped with error", "error", err)
		return err
	}
	logger.Info("reminderd stopped cleanly")
	return nil
}
