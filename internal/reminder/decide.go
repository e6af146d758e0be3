// Package reminder holds the booking reminder decision logic and the
// collaborator contracts (booking store, notifier, lead time) shared by the
// scheduler and the booking mutation path.
package reminder

import (
	"time"

	"carwash/internal/types"
)

// Action is the kind of outcome produced by Decide.
type Action string

const (
	// ActionSendNow means the ideal lead time has already elapsed but the
	// event is still upcoming: deliver immediately.
	ActionSendNow Action = "send_now"

	// ActionScheduleAt means a job must be created or replaced to fire at
	// Outcome.FireAt.
	ActionScheduleAt Action = "schedule_at"

	// ActionCancel means any existing job for the booking must be removed.
	ActionCancel Action = "cancel"

	// ActionNoOp means nothing is to be sent or scheduled.
	ActionNoOp Action = "no_op"
)

// Outcome is the result of a reminder decision. FireAt is only set for
// ActionScheduleAt.
type Outcome struct {
	Action Action     `json:"action"`
	FireAt *time.Time `json:"fire_at,omitempty"`
	Reason string     `json:"reason"`
}

// Decide evaluates a booking against the current time and lead time.
// It has no side effects and returns the same outcome for the same inputs.
//
// Decision logic (in order of precedence):
//  1. cancelled -> cancel
//  2. reminder already sent -> no-op
//  3. no scheduled time -> no-op
//  4. event at or before now -> no-op
//  5. event sooner than the lead time -> send now
//  6. otherwise -> schedule at scheduled_at - lead
//
// A remaining duration exactly equal to the lead time schedules.
func Decide(b types.Booking, now time.Time, lead time.Duration) (Outcome, error) {
	if lead < 0 {
		return Outcome{}, types.NewAppError(types.ErrCodeValidationLeadTime, "lead time must not be negative", nil).
			WithDetails(map[string]any{"lead_time": lead.String()})
	}

	if b.Status == types.BookingCancelled {
		return Outcome{Action: ActionCancel, Reason: "booking is cancelled"}, nil
	}
	if b.ReminderSent {
		return Outcome{Action: ActionNoOp, Reason: "reminder already sent"}, nil
	}
	if b.ScheduledAt == nil {
		return Outcome{Action: ActionNoOp, Reason: "booking has no scheduled time"}, nil
	}

	remaining := b.ScheduledAt.Sub(now)
	if remaining <= 0 {
		return Outcome{Action: ActionNoOp, Reason: "booking time already passed"}, nil
	}
	if remaining < lead {
		return Outcome{Action: ActionSendNow, Reason: "booking is sooner than lead time"}, nil
	}

	fireAt := b.ScheduledAt.Add(-lead)
	return Outcome{Action: ActionScheduleAt, FireAt: &fireAt, Reason: "booking is beyond lead time"}, nil
}
