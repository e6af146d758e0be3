package db

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"carwash/internal/types"
)

// BookingRepository reads and updates booking records owned by the booking
// system (the wash_booking table). The only column it ever writes is
// reminder_sent.
type BookingRepository struct {
	db  DBTX
	loc *time.Location
}

// NewBookingRepository creates a BookingRepository. loc is the timezone the
// booking system stores scheduled_date/scheduled_time in; nil means UTC.
func NewBookingRepository(db DBTX, loc *time.Location) *BookingRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingRepository{db: db, loc: loc}
}

// Get returns the live booking. A missing row yields ErrCodeNotFoundBooking.
func (r *BookingRepository) Get(ctx context.Context, bookingID string) (*types.Booking, error) {
	id, err := parseBookingID(bookingID)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx,
		`SELECT id, scheduled_date, scheduled_time, status, reminder_sent
		 FROM wash_booking
		 WHERE id = $1`,
		id,
	)

	b, err := r.scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundBooking, "booking not found", nil).
				WithDetails(map[string]any{"booking_id": bookingID})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get booking", err)
	}
	return b, nil
}

// MarkReminderSent sets reminder_sent = TRUE. The update never clears the flag.
func (r *BookingRepository) MarkReminderSent(ctx context.Context, bookingID string) error {
	id, err := parseBookingID(bookingID)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE wash_booking SET reminder_sent = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark reminder sent", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundBooking, "booking not found", nil).
			WithDetails(map[string]any{"booking_id": bookingID})
	}
	return nil
}

// ListScheduled returns every booking with both a date and a time set,
// ordered by scheduled date and time ascending.
func (r *BookingRepository) ListScheduled(ctx context.Context) ([]types.Booking, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, scheduled_date, scheduled_time, status, reminder_sent
		 FROM wash_booking
		 WHERE scheduled_date IS NOT NULL AND scheduled_time IS NOT NULL
		 ORDER BY scheduled_date ASC, scheduled_time ASC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list scheduled bookings", err)
	}
	defer rows.Close()

	bookings := []types.Booking{}
	for rows.Next() {
		b, err := r.scanBooking(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan booking", err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating bookings", err)
	}
	return bookings, nil
}

// GetContact loads what a notifier needs to address a reminder: the
// customer's email and name, the service and the vehicle plate.
func (r *BookingRepository) GetContact(ctx context.Context, bookingID string) (*types.BookingContact, error) {
	id, err := parseBookingID(bookingID)
	if err != nil {
		return nil, err
	}

	var (
		rawID int64
		date  pgtype.Date
		tod   pgtype.Time
		c     types.BookingContact
	)
	err = r.db.QueryRow(ctx,
		`SELECT b.id, b.scheduled_date, b.scheduled_time,
		        COALESCE(u.email, ''), COALESCE(u.username, ''),
		        COALESCE(s.name, ''), COALESCE(v.license_plate, '')
		 FROM wash_booking b
		 LEFT JOIN auth_user u ON u.id = b.user_id
		 LEFT JOIN wash_service s ON s.id = b.service_id
		 LEFT JOIN wash_vehicle v ON v.id = b.vehicle_id
		 WHERE b.id = $1`,
		id,
	).Scan(
		&rawID,
		&date,
		&tod,
		&c.Email,
		&c.Username,
		&c.ServiceName,
		&c.LicensePlate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundBooking, "booking not found", nil).
				WithDetails(map[string]any{"booking_id": bookingID})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get booking contact", err)
	}

	c.BookingID = strconv.FormatInt(rawID, 10)
	c.ScheduledAt = r.combine(date, tod)
	return &c, nil
}

func (r *BookingRepository) scanBooking(row pgx.Row) (*types.Booking, error) {
	var (
		id     int64
		date   pgtype.Date
		tod    pgtype.Time
		status string
		b      types.Booking
	)
	if err := row.Scan(&id, &date, &tod, &status, &b.ReminderSent); err != nil {
		return nil, err
	}
	b.ID = strconv.FormatInt(id, 10)
	b.Status = types.BookingStatus(status)
	if !b.Status.Valid() {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "booking has unknown status", nil).
			WithDetails(map[string]any{"booking_id": b.ID, "status": status})
	}
	b.ScheduledAt = r.combine(date, tod)
	return &b, nil
}

func (r *BookingRepository) combine(date pgtype.Date, tod pgtype.Time) *time.Time {
	var (
		d *time.Time
		t *types.TimeOfDay
	)
	if date.Valid {
		d = &date.Time
	}
	if tod.Valid {
		v := types.TimeOfDayFromMicros(tod.Microseconds)
		t = &v
	}
	return types.CombineSchedule(d, t, r.loc)
}

// parseBookingID converts the opaque booking id to the integer primary key
// used by the booking system.
func parseBookingID(bookingID string) (int64, error) {
	id, err := strconv.ParseInt(bookingID, 10, 64)
	if err != nil || id <= 0 {
		return 0, types.NewAppError(types.ErrCodeValidationBookingID, "booking id must be a positive integer", err).
			WithDetails(map[string]any{"booking_id": bookingID})
	}
	return id, nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
