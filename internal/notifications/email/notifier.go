// Package email delivers booking reminders by email. It loads the booking's
// contact details, renders the reminder templates and hands the result to an
// external.EmailProvider (SES, SendGrid or the local stub).
package email

import (
	"context"
	"fmt"

	"carwash/internal/external"
	"carwash/internal/reminder"
	"carwash/internal/types"
)

// ContactStore loads what is needed to address a reminder.
type ContactStore interface {
	GetContact(ctx context.Context, bookingID string) (*types.BookingContact, error)
}

// Notifier implements reminder.Notifier over email.
type Notifier struct {
	contacts ContactStore
	provider external.EmailProvider
	renderer *Renderer
	from     types.SenderIdentity
	replyTo  string
	logger   types.Logger
}

var _ reminder.Notifier = (*Notifier)(nil)

// NotifierConfig holds the dependencies needed to create a Notifier.
type NotifierConfig struct {
	Contacts ContactStore
	Provider external.EmailProvider
	Renderer *Renderer
	From     types.SenderIdentity
	// ReplyTo is usually the support address. Optional.
	ReplyTo string
	Logger  types.Logger
}

// NewNotifier creates a Notifier with the given dependencies.
func NewNotifier(cfg NotifierConfig) *Notifier {
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Notifier{
		contacts: cfg.Contacts,
		provider: cfg.Provider,
		renderer: cfg.Renderer,
		from:     cfg.From,
		replyTo:  cfg.ReplyTo,
		logger:   logger,
	}
}

// Send emails the reminder for bookingID. A booking whose user has no email
// address fails with ErrCodeEmailMissing ("no-email").
func (n *Notifier) Send(ctx context.Context, bookingID string) error {
	contact, err := n.contacts.GetContact(ctx, bookingID)
	if err != nil {
		return err
	}
	if contact.Email == "" {
		return types.NewAppError(types.ErrCodeEmailMissing, "no-email", nil).
			WithDetails(map[string]any{"booking_id": bookingID})
	}

	n.logger.Info("attempting reminder email", "booking_id", bookingID, "dest", RedactEmail(contact.Email))

	rendered, err := n.renderer.Render(contact)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to render reminder email", err)
	}

	msgID, err := n.provider.Send(ctx, types.SendInput{
		To:          contact.Email,
		From:        n.from,
		ReplyTo:     n.replyTo,
		Subject:     rendered.Subject,
		BodyHTML:    rendered.BodyHTML,
		BodyText:    rendered.BodyText,
		ReferenceID: fmt.Sprintf("booking-%s", bookingID),
	})
	if err != nil {
		if types.IsCode(err, types.ErrCodeEmailBlocked) {
			n.logger.Warn("recipient blocked by provider",
				"dest", RedactEmail(contact.Email),
				"booking_id", bookingID,
			)
		}
		return err
	}

	n.logger.Info("reminder email sent", "booking_id", bookingID, "provider_message_id", msgID)
	return nil
}
