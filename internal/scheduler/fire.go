package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"time"

	"carwash/internal/types"
)

// fire runs the fire-time guard for one job and delivers the reminder when
// the live booking still needs one.
func (e *Engine) fire(ctx context.Context, job types.ScheduledJob, version uint64) {
	log := e.logger.With("booking_id", job.BookingID, "attempt", job.AttemptCount+1)
	now := e.clock.Now()

	b, err := e.bookings.Get(ctx, job.BookingID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundBooking) {
			log.WarnContext(ctx, "booking not found, dropping reminder job")
			e.drop(ctx, job, version)
			return
		}
		log.ErrorContext(ctx, "failed to load booking for reminder", "error", err)
		e.fail(ctx, job, version, fmt.Errorf("loading booking: %w", err))
		return
	}

	if reason := skipReason(b, now); reason != "" {
		log.InfoContext(ctx, "reminder no longer needed, dropping job", "reason", reason)
		e.drop(ctx, job, version)
		return
	}

	if err := e.notifier.Send(ctx, job.BookingID); err != nil {
		log.ErrorContext(ctx, "reminder delivery failed", "error", err)
		e.fail(ctx, job, version, err)
		return
	}

	if err := e.bookings.MarkReminderSent(ctx, job.BookingID); err != nil {
		log.ErrorContext(ctx, "reminder sent but flag not recorded", "error", err)
		e.fail(ctx, job, version, fmt.Errorf("marking reminder sent: %w", err))
		return
	}

	log.InfoContext(ctx, "reminder sent", "fire_at", job.FireAt.Format(time.RFC3339))
	e.drop(ctx, job, version)
}

// skipReason returns why the booking no longer needs a reminder, or "".
func skipReason(b *types.Booking, now time.Time) string {
	switch {
	case b.ReminderSent:
		return "reminder_sent"
	case b.Status == types.BookingCancelled:
		return "cancelled"
	case b.ScheduledAt == nil:
		return "unscheduled"
	case !b.ScheduledAt.After(now):
		return "event_passed"
	}
	return ""
}

// drop deletes a fired job unless it was replaced or cancelled while firing.
func (e *Engine) drop(ctx context.Context, job types.ScheduledJob, version uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.jobs[job.BookingID]
	if !ok || ent.version != version {
		return
	}
	delete(e.jobs, job.BookingID)
	if err := e.store.Delete(ctx, job.BookingID); err != nil {
		e.logger.ErrorContext(ctx, "failed to delete reminder job",
			"booking_id", job.BookingID,
			"error", err,
		)
	}
}

// fail records a failed attempt. The job stays pending; with a retry policy
// it is re-armed with backoff until attempts are exhausted.
func (e *Engine) fail(ctx context.Context, job types.ScheduledJob, version uint64, cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.jobs[job.BookingID]
	if !ok || ent.version != version {
		return
	}

	now := e.clock.Now()
	job.AttemptCount++
	job.LastError = cause.Error()
	job.UpdatedAt = now

	rearm := e.retry != nil && !e.retry.exhausted(job.AttemptCount)
	if rearm {
		job.FireAt = now.Add(CalculateNextRetry(*e.retry, job.AttemptCount-1))
	}

	if err := e.store.Upsert(ctx, job); err != nil {
		e.logger.ErrorContext(ctx, "failed to record reminder failure",
			"booking_id", job.BookingID,
			"error", err,
		)
	}

	ent.job = job
	if rearm {
		heap.Push(&e.queue, ent)
		e.logger.InfoContext(ctx, "reminder re-armed",
			"booking_id", job.BookingID,
			"attempt", job.AttemptCount,
			"fire_at", job.FireAt.Format(time.RFC3339),
		)
	}
}
