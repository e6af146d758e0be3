package types

// SenderIdentity defines the sender for outgoing emails.
type SenderIdentity struct {
	Name    string
	Address string
}

// SendInput is a fully rendered email ready for transmission.
type SendInput struct {
	To       string
	From     SenderIdentity
	ReplyTo  string
	Subject  string
	BodyHTML string
	BodyText string

	// ReferenceID correlates provider events with a booking, e.g. "booking-42".
	ReferenceID string
}
