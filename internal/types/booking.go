package types

import (
	"fmt"
	"time"
)

// BookingStatus represents the lifecycle state of a booking as owned by the
// booking system.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingDone      BookingStatus = "done"
)

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingDone:
		return true
	}
	return false
}

// TimeOfDay is a wall-clock time without a date, as stored in the booking
// system's scheduled_time column.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// String renders the time as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// TimeOfDayFromMicros converts microseconds since midnight (the PostgreSQL
// time representation) to a TimeOfDay.
func TimeOfDayFromMicros(us int64) TimeOfDay {
	secs := us / 1_000_000
	return TimeOfDay{
		Hour:   int(secs / 3600),
		Minute: int(secs % 3600 / 60),
		Second: int(secs % 60),
	}
}

// Booking is the subset of a booking record the reminder engine reads.
// The engine only ever writes ReminderSent.
type Booking struct {
	ID     string        `json:"id"`
	Status BookingStatus `json:"status"`

	// ScheduledAt is set only when both the date and the time of day are set
	// on the underlying record. See CombineSchedule.
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`

	// ReminderSent only ever transitions false -> true.
	ReminderSent bool `json:"reminder_sent"`
}

// CombineSchedule merges a calendar date and a time of day into a single
// instant in loc. It returns nil when either part is missing.
func CombineSchedule(date *time.Time, tod *TimeOfDay, loc *time.Location) *time.Time {
	if date == nil || tod == nil {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	at := time.Date(date.Year(), date.Month(), date.Day(), tod.Hour, tod.Minute, tod.Second, 0, loc).UTC()
	return &at
}

// BookingContact carries what a notifier needs to address a reminder.
type BookingContact struct {
	BookingID    string
	Email        string
	Username     string
	ServiceName  string
	LicensePlate string
	ScheduledAt  *time.Time
}
