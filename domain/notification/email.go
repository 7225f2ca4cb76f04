package notification

import (
	"context"
	"net/mail"
)

// DefaultSubject is used for failure alerts when no subject is given
const DefaultSubject = "Error occurred while making backup"

// Recipient represents an email recipient with name and address
type Recipient struct {
	Name    string
	Address string
}

// Message is a plain-text alert delivered to a single recipient
type Message struct {
	To      Recipient
	Subject string
	Body    string
}

// Validate checks that the message has all required fields
func (m *Message) Validate() error {
	if m.To.Address == "" {
		return ErrNoRecipient
	}
	if _, err := mail.ParseAddress(m.To.Address); err != nil {
		return ErrInvalidRecipient
	}
	if m.Body == "" {
		return ErrEmptyBody
	}
	return nil
}

// EmailSender defines the interface for sending emails
type EmailSender interface {
	Send(ctx context.Context, msg *Message) error
}
