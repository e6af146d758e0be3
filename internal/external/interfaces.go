package external

import (
	"context"

	"carwash/internal/types"
)

// EmailProvider abstracts the email delivery service. Implementations transmit
// pre-rendered content (Subject, BodyHTML, BodyText) and return the
// provider's message ID for correlation.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}
