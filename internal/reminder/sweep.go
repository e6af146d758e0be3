package reminder

import (
	"context"
	"fmt"
	"time"

	"carwash/internal/types"
)

// MaxSweepWindow bounds the look-ahead of a manual sweep.
const MaxSweepWindow = 24 * time.Hour

// BookingLister enumerates bookings that have both a date and a time set,
// ordered by scheduled time ascending.
type BookingLister interface {
	ListScheduled(ctx context.Context) ([]types.Booking, error)
}

// Dispatcher hands a booking to the scheduler for immediate delivery. The
// scheduler engine satisfies it; the reminder then goes through the engine's
// single timing loop and its fire-time guard.
type Dispatcher interface {
	FireNow(ctx context.Context, bookingID string) error
}

// SweepInput controls a manual sweep.
type SweepInput struct {
	Window time.Duration
	DryRun bool
}

// SweepResult summarises a manual sweep.
type SweepResult struct {
	Checked int
	Sent    int
	Queued  int
	Failed  int
	Skipped int
}

// Sweeper reminds every upcoming booking inside a time window. With a
// Dispatcher each booking is queued on the running engine. Without one the
// Sweeper sends directly, which is only safe while no engine is running
// against the same bookings.
type Sweeper struct {
	bookings BookingLister
	store    BookingStore
	notifier Notifier
	dispatch Dispatcher
	clock    types.Clock
	logger   types.Logger
}

// SweeperConfig holds the dependencies of a Sweeper. Store and Notifier are
// only used when Dispatcher is nil.
type SweeperConfig struct {
	Bookings   BookingLister
	Store      BookingStore
	Notifier   Notifier
	Dispatcher Dispatcher
	Clock    types.Clock
	Logger   types.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Sweeper{
		bookings: cfg.Bookings,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		dispatch: cfg.Dispatcher,
		clock:    clock,
		logger:   logger,
	}
}

// Sweep walks the scheduled bookings and reminds those whose event falls in
// (now, now+Window]. Cancelled, already-reminded and past bookings are
// skipped. In dry-run mode nothing is sent or written.
func (s *Sweeper) Sweep(ctx context.Context, in SweepInput) (SweepResult, error) {
	var res SweepResult
	if in.Window <= 0 || in.Window > MaxSweepWindow {
		return res, types.NewAppError(types.ErrCodeValidationSweepWindow,
			fmt.Sprintf("sweep window must be within (0, %s]", MaxSweepWindow), nil)
	}

	now := s.clock.Now()
	windowEnd := now.Add(in.Window)

	bookings, err := s.bookings.ListScheduled(ctx)
	if err != nil {
		return res, fmt.Errorf("listing scheduled bookings: %w", err)
	}

	s.logger.Info("sweep started",
		"now", now.Format(time.RFC3339),
		"window_end", windowEnd.Format(time.RFC3339),
		"dry_run", in.DryRun,
	)

	for _, b := range bookings {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++

		switch {
		case b.ReminderSent:
			res.Skipped++
			continue
		case b.Status == types.BookingCancelled:
			res.Skipped++
			continue
		case b.ScheduledAt == nil || !b.ScheduledAt.After(now):
			res.Skipped++
			continue
		case b.ScheduledAt.After(windowEnd):
			res.Skipped++
			continue
		}

		if in.DryRun {
			s.logger.Info("dry-run: would send reminder", "booking_id", b.ID)
			res.Sent++
			continue
		}

		if s.dispatch != nil {
			if err := s.dispatch.FireNow(ctx, b.ID); err != nil {
				s.logger.Error("sweep dispatch failed", "booking_id", b.ID, "error", err)
				res.Failed++
				continue
			}
			res.Queued++
			s.logger.Info("sweep reminder queued", "booking_id", b.ID)
			continue
		}

		if err := s.notifier.Send(ctx, b.ID); err != nil {
			s.logger.Error("sweep reminder failed", "booking_id", b.ID, "error", err)
			res.Failed++
			continue
		}
		if err := s.store.MarkReminderSent(ctx, b.ID); err != nil {
			return res, fmt.Errorf("marking reminder sent for booking %s: %w", b.ID, err)
		}
		res.Sent++
		s.logger.Info("sweep reminder sent", "booking_id", b.ID)
	}

	s.logger.Info("sweep complete",
		"checked", res.Checked,
		"sent", res.Sent,
		"queued", res.Queued,
		"failed", res.Failed,
		"skipped", res.Skipped,
	)
	return res, nil
}
