// Package queue hands due reminders to a downstream worker over a message
// broker instead of delivering them in-process.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carwash/internal/types"
)

// RoutingKey is used for reminders published to RabbitMQ.
const RoutingKey = "booking.reminder.due"

// ReminderMessage is the body published for a due reminder. MessageID is
// unique per publish so consumers can deduplicate redeliveries.
type ReminderMessage struct {
	BookingID string    `json:"booking_id"`
	MessageID string    `json:"message_id"`
	FireAt    time.Time `json:"fire_at"`
}

func newMessage(bookingID string, clock types.Clock) ReminderMessage {
	return ReminderMessage{
		BookingID: bookingID,
		MessageID: uuid.NewString(),
		FireAt:    clock.Now().UTC(),
	}
}

func (m ReminderMessage) encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("reminder queue: failed to marshal message: %w", err)
	}
	return b, nil
}
