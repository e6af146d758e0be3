// Package api exposes the reminder service over HTTP: health, diagnostics
// for pending jobs, the booking sync hook called by the booking system after
// it writes a booking, and a manual sweep trigger.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"carwash/internal/reminder"
	"carwash/internal/types"
)

// JobLister lists pending jobs relative to now.
type JobLister interface {
	Pending(now time.Time) []types.JobView
}

// BookingSyncer re-evaluates a booking after it was created or updated.
type BookingSyncer interface {
	Sync(ctx context.Context, bookingID string) (reminder.Outcome, error)
}

// Sweeper runs a manual sweep.
type Sweeper interface {
	Sweep(ctx context.Context, in reminder.SweepInput) (reminder.SweepResult, error)
}

// LeadTimeStore reads and replaces the live reminder lead time.
type LeadTimeStore interface {
	LeadTime() time.Duration
	Set(d time.Duration) error
}

// Server carries the handler dependencies and the chi router.
type Server struct {
	Jobs         JobLister
	Bookings     BookingSyncer
	Sweeper      Sweeper
	LeadTime     LeadTimeStore
	HealthProbes []HealthProbe
	Clock        types.Clock
	Logger       *slog.Logger
	Validator    *Validator

	// RequestTimeout bounds every request context. Defaults to 30s.
	RequestTimeout time.Duration

	router *chi.Mux
}

// ServerConfig holds the parameters needed to build a Server.
type ServerConfig struct {
	Jobs           JobLister
	Bookings       BookingSyncer
	Sweeper        Sweeper
	LeadTime       LeadTimeStore
	HealthProbes   []HealthProbe
	Clock          types.Clock
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

// NewServer validates the dependencies and mounts all routes.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Jobs == nil {
		return nil, fmt.Errorf("job lister must not be nil")
	}
	if cfg.Bookings == nil {
		return nil, fmt.Errorf("booking syncer must not be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	s := &Server{
		Jobs:           cfg.Jobs,
		Bookings:       cfg.Bookings,
		Sweeper:        cfg.Sweeper,
		LeadTime:       cfg.LeadTime,
		HealthProbes:   cfg.HealthProbes,
		Clock:          clock,
		Logger:         cfg.Logger,
		Validator:      NewValidator(),
		RequestTimeout: timeout,
		router:         chi.NewRouter(),
	}
	s.MountRoutes()
	return s, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
