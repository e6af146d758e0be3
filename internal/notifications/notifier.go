// Package notifications wraps reminder delivery backends with the concerns
// every backend shares: a bounded delivery time and delivery metrics. The
// backends themselves live in the email and queue subpackages.
package notifications

import (
	"context"
	"errors"
	"time"

	"carwash/internal/reminder"
	"carwash/internal/types"
)

// Result is the outcome dimension recorded for each delivery attempt.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultTimeout Result = "timeout"
	ResultBlocked Result = "blocked"
	ResultNoEmail Result = "no_email"
)

// Metrics receives one RecordDelivery and one RecordLatency call per
// delivery attempt.
type Metrics interface {
	RecordDelivery(ctx context.Context, channel string, result Result)
	RecordLatency(ctx context.Context, channel string, d time.Duration)
}

// WithTimeout bounds every Send by d. A delivery that runs past the bound is
// reported as ErrCodeNotifyTimedOut. A non-positive d returns n unchanged.
func WithTimeout(n reminder.Notifier, d time.Duration) reminder.Notifier {
	if d <= 0 {
		return n
	}
	return reminder.NotifierFunc(func(ctx context.Context, bookingID string) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		err := n.Send(ctx, bookingID)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !types.IsCode(err, types.ErrCodeNotifyTimedOut) {
			return types.NewAppError(types.ErrCodeNotifyTimedOut, "reminder delivery timed out", err).
				WithDetails(map[string]any{"booking_id": bookingID, "timeout": d.String()})
		}
		return err
	})
}

// WithMetrics records the result and latency of every Send under channel.
// A nil Metrics returns n unchanged.
func WithMetrics(n reminder.Notifier, m Metrics, channel string, clock types.Clock) reminder.Notifier {
	if m == nil {
		return n
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return reminder.NotifierFunc(func(ctx context.Context, bookingID string) error {
		start := clock.Now()
		err := n.Send(ctx, bookingID)

		// Metrics must not be cut short by the delivery deadline.
		mctx := context.WithoutCancel(ctx)
		m.RecordLatency(mctx, channel, clock.Now().Sub(start))
		m.RecordDelivery(mctx, channel, ResultOf(err))
		return err
	})
}

// ResultOf classifies a delivery error.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return ResultSuccess
	case types.IsCode(err, types.ErrCodeNotifyTimedOut), errors.Is(err, context.DeadlineExceeded):
		return ResultTimeout
	case types.IsCode(err, types.ErrCodeEmailBlocked):
		return ResultBlocked
	case types.IsCode(err, types.ErrCodeEmailMissing):
		return ResultNoEmail
	default:
		return ResultFailure
	}
}
