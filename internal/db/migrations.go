package db

import (
	"context"

	"carwash/internal/types"
)

// schemaSQL creates the tables owned by the reminder service. The booking
// tables belong to the booking system and are never created here.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS reminder_jobs (
	booking_id    TEXT PRIMARY KEY,
	fire_at       TIMESTAMPTZ NOT NULL,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reminder_jobs_fire_at ON reminder_jobs(fire_at);
`

// Migrate applies the reminder schema. It is idempotent.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply reminder schema", err)
	}
	return nil
}
