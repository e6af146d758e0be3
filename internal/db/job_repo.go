package db

import (
	"context"

	"carwash/internal/types"
)

// ScheduledJobRepository is the durable job store backed by the
// reminder_jobs table. There is at most one row per booking; Upsert relies on
// INSERT ... ON CONFLICT to replace it atomically.
type ScheduledJobRepository struct {
	db DBTX
}

// NewScheduledJobRepository creates a new ScheduledJobRepository backed by the
// given database connection (pool or transaction).
func NewScheduledJobRepository(db DBTX) *ScheduledJobRepository {
	return &ScheduledJobRepository{db: db}
}

// Upsert inserts the job or replaces the existing row for the same booking.
// created_at is preserved on replace.
func (r *ScheduledJobRepository) Upsert(ctx context.Context, job types.ScheduledJob) error {
	var lastErr *string
	if job.LastError != "" {
		lastErr = &job.LastError
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO reminder_jobs (booking_id, fire_at, attempt_count, last_error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), NOW())
		 ON CONFLICT (booking_id) DO UPDATE
		   SET fire_at = EXCLUDED.fire_at,
		       attempt_count = EXCLUDED.attempt_count,
		       last_error = EXCLUDED.last_error,
		       updated_at = NOW()`,
		job.BookingID,
		job.FireAt.UTC(),
		job.AttemptCount,
		lastErr,
		nullableTime(job.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert reminder job", err)
	}
	return nil
}

// Delete removes the job for bookingID. Missing rows are not an error.
func (r *ScheduledJobRepository) Delete(ctx context.Context, bookingID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM reminder_jobs WHERE booking_id = $1`,
		bookingID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete reminder job", err)
	}
	return nil
}

// List returns all jobs ordered by fire_at, then booking_id.
func (r *ScheduledJobRepository) List(ctx context.Context) ([]types.ScheduledJob, error) {
	rows, err := r.db.Query(ctx,
		`SELECT booking_id, fire_at, attempt_count, last_error, created_at, updated_at
		 FROM reminder_jobs
		 ORDER BY fire_at ASC, booking_id ASC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list reminder jobs", err)
	}
	defer rows.Close()

	jobs := []types.ScheduledJob{}
	for rows.Next() {
		var (
			j       types.ScheduledJob
			lastErr *string
		)
		if err := rows.Scan(
			&j.BookingID,
			&j.FireAt,
			&j.AttemptCount,
			&lastErr,
			&j.CreatedAt,
			&j.UpdatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reminder job", err)
		}
		if lastErr != nil {
			j.LastError = *lastErr
		}
		j.FireAt = j.FireAt.UTC()
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating reminder jobs", err)
	}
	return jobs, nil
}
