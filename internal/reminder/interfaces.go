package reminder

import (
	"context"
	"sync/atomic"
	"time"

	"carwash/internal/types"
)

// DefaultLeadTime is used when no lead time is configured.
const DefaultLeadTime = 6 * time.Hour

// BookingStore is the booking system's read/update surface used by the
// engine. Both methods are atomic with respect to concurrent booking writes.
type BookingStore interface {
	// Get returns the live booking. A missing booking is reported as an
	// AppError with code types.ErrCodeNotFoundBooking.
	Get(ctx context.Context, bookingID string) (*types.Booking, error)

	// MarkReminderSent sets reminder_sent = true. It never clears the flag.
	MarkReminderSent(ctx context.Context, bookingID string) error
}

// Notifier delivers one reminder for a booking. Implementations may perform
// network I/O and are not expected to be idempotent.
type Notifier interface {
	Send(ctx context.Context, bookingID string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, bookingID string) error

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, bookingID string) error {
	return f(ctx, bookingID)
}

// LeadTimeSource is read once per decision, which allows the lead time to be
// changed between calls without a restart.
type LeadTimeSource interface {
	LeadTime() time.Duration
}

// StaticLeadTime is a fixed lead time.
type StaticLeadTime time.Duration

// LeadTime returns the fixed value.
func (s StaticLeadTime) LeadTime() time.Duration { return time.Duration(s) }

// AtomicLeadTime is a lead time that can be swapped at runtime.
type AtomicLeadTime struct {
	v atomic.Int64
}

// NewAtomicLeadTime returns an AtomicLeadTime initialised to d.
func NewAtomicLeadTime(d time.Duration) *AtomicLeadTime {
	a := &AtomicLeadTime{}
	a.v.Store(int64(d))
	return a
}

// LeadTime returns the current value.
func (a *AtomicLeadTime) LeadTime() time.Duration { return time.Duration(a.v.Load()) }

// Set replaces the current value. Negative values are rejected.
func (a *AtomicLeadTime) Set(d time.Duration) error {
	if d < 0 {
		return types.NewAppError(types.ErrCodeValidationLeadTime, "lead time must not be negative", nil)
	}
	a.v.Store(int64(d))
	return nil
}
