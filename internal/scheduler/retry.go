package scheduler

import (
	"math"
	"time"
)

// RetryPolicy re-arms a reminder whose delivery failed. MaxAttempts counts
// every delivery, the first one included.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy holds the REMINDER_RETRY_* defaults.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:   3,
	BaseDelay:     time.Minute,
	MaxDelay:      30 * time.Minute,
	BackoffFactor: 2,
}

// CalculateNextRetry returns BaseDelay * BackoffFactor^attempt, capped at
// MaxDelay. attempt is zero for the first retry.
func CalculateNextRetry(policy RetryPolicy, attempt int) time.Duration {
	attempt = max(attempt, 0)
	delay := float64(policy.BaseDelay) * math.Pow(policy.BackoffFactor, float64(attempt))
	if math.IsInf(delay, 0) || math.IsNaN(delay) || delay >= float64(policy.MaxDelay) {
		return policy.MaxDelay
	}
	return time.Duration(delay)
}

func (p RetryPolicy) exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}
