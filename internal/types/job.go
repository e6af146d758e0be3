package types

import "time"

// ScheduledJob is the single pending reminder for a booking. BookingID is the
// key: there is at most one job per booking at any time.
type ScheduledJob struct {
	BookingID    string    `json:"booking_id"`
	FireAt       time.Time `json:"fire_at"`
	AttemptCount int       `json:"attempt_count"`
	LastError    string    `json:"last_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// JobStatus is the derived diagnostic state of a pending job.
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusOverdue JobStatus = "OVERDUE"
)

// JobView is a read-only diagnostic projection of a ScheduledJob relative to
// a reference time.
type JobView struct {
	BookingID    string        `json:"booking_id"`
	FireAt       time.Time     `json:"fire_at"`
	Status       JobStatus     `json:"status"`
	Remaining    time.Duration `json:"-"`
	RemainingSec int64         `json:"remaining_seconds"`
	AttemptCount int           `json:"attempt_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// ViewOf projects job relative to now. A job whose FireAt is not after now is
// overdue and Remaining is negative or zero.
func ViewOf(job ScheduledJob, now time.Time) JobView {
	remaining := job.FireAt.Sub(now)
	status := JobStatusPending
	if remaining <= 0 {
		status = JobStatusOverdue
	}
	return JobView{
		BookingID:    job.BookingID,
		FireAt:       job.FireAt,
		Status:       status,
		Remaining:    remaining,
		RemainingSec: int64(remaining / time.Second),
		AttemptCount: job.AttemptCount,
		LastError:    job.LastError,
	}
}
