// Package booking connects booking mutations to the reminder engine. The
// booking system calls Sync (or Apply) after every write to a booking; the
// service decides what the reminder should do and applies it.
package booking

import (
	"context"
	"fmt"
	"time"

	"carwash/internal/reminder"
	"carwash/internal/types"
)

// SendNowMode selects how an immediate reminder is delivered.
type SendNowMode string

const (
	// SendNowAsync hands the reminder to the engine as a zero-delay job.
	SendNowAsync SendNowMode = "async"
	// SendNowSync delivers on the caller's goroutine before returning.
	SendNowSync SendNowMode = "sync"
)

// Scheduler is the subset of the reminder engine the service drives.
type Scheduler interface {
	Upsert(ctx context.Context, bookingID string, fireAt time.Time) error
	Cancel(ctx context.Context, bookingID string) error
	FireNow(ctx context.Context, bookingID string) error
}

// Service applies reminder decisions for booking mutations.
type Service struct {
	bookings  reminder.BookingStore
	scheduler Scheduler
	notifier  reminder.Notifier
	lead      reminder.LeadTimeSource
	mode      SendNowMode
	clock     types.Clock
	logger    types.Logger
}

// Config holds the dependencies of a Service. Notifier is only required in
// SendNowSync mode.
type Config struct {
	Bookings  reminder.BookingStore
	Scheduler Scheduler
	Notifier  reminder.Notifier
	LeadTime  reminder.LeadTimeSource
	Mode      SendNowMode
	Clock     types.Clock
	Logger    types.Logger
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	lead := cfg.LeadTime
	if lead == nil {
		lead = reminder.StaticLeadTime(reminder.DefaultLeadTime)
	}
	mode := cfg.Mode
	if mode == "" {
		mode = SendNowAsync
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Service{
		bookings:  cfg.Bookings,
		scheduler: cfg.Scheduler,
		notifier:  cfg.Notifier,
		lead:      lead,
		mode:      mode,
		clock:     clock,
		logger:    logger,
	}
}

// Sync reloads the booking and applies the reminder decision for it. A
// booking that no longer exists has its pending job removed and the
// not-found error is returned.
func (s *Service) Sync(ctx context.Context, bookingID string) (reminder.Outcome, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundBooking) {
			if cerr := s.scheduler.Cancel(ctx, bookingID); cerr != nil {
				return reminder.Outcome{}, cerr
			}
		}
		return reminder.Outcome{}, err
	}
	return s.Apply(ctx, *b)
}

// Apply decides and applies the reminder outcome for b. Store errors are
// returned so the booking mutation can surface them.
func (s *Service) Apply(ctx context.Context, b types.Booking) (reminder.Outcome, error) {
	now := s.clock.Now()
	log := s.logger.With("booking_id", b.ID)
	if reqID := types.GetRequestID(ctx); reqID != "" {
		log = log.With("request_id", reqID)
	}

	out, err := reminder.Decide(b, now, s.lead.LeadTime())
	if err != nil {
		return reminder.Outcome{}, err
	}

	switch out.Action {
	case reminder.ActionScheduleAt:
		// remaining == lead lands exactly on now, which the engine rejects.
		if !out.FireAt.After(now) {
			return out, s.sendNow(ctx, b.ID, log)
		}
		if err := s.scheduler.Upsert(ctx, b.ID, *out.FireAt); err != nil {
			return out, err
		}
		log.Info("scheduled reminder for new/updated booking", "fire_at", out.FireAt.Format(time.RFC3339))

	case reminder.ActionSendNow:
		log.Info("sending reminder now", "mode", string(s.mode))
		if err := s.sendNow(ctx, b.ID, log); err != nil {
			return out, err
		}

	case reminder.ActionCancel:
		if err := s.scheduler.Cancel(ctx, b.ID); err != nil {
			return out, err
		}
		log.Info("booking cancelled - reminder removed")

	case reminder.ActionNoOp:
		// A job can outlive its purpose, e.g. after a manual sweep or a
		// rescheduling into the past.
		if err := s.scheduler.Cancel(ctx, b.ID); err != nil {
			return out, err
		}
	}

	return out, nil
}

func (s *Service) sendNow(ctx context.Context, bookingID string, log types.Logger) error {
	if s.mode != SendNowSync || s.notifier == nil {
		return s.scheduler.FireNow(ctx, bookingID)
	}

	if err := s.notifier.Send(ctx, bookingID); err != nil {
		log.Error("immediate reminder failed, handing off to scheduler", "error", err)
		return s.scheduler.FireNow(ctx, bookingID)
	}
	if err := s.bookings.MarkReminderSent(ctx, bookingID); err != nil {
		return fmt.Errorf("marking reminder sent: %w", err)
	}
	return s.scheduler.Cancel(ctx, bookingID)
}
