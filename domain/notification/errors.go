package notification

import "errors"

var (
	// ErrNoRecipient is returned when the message has no recipient address
	ErrNoRecipient = errors.New("recipient address is required")

	// ErrInvalidRecipient is returned when the recipient address cannot be parsed
	ErrInvalidRecipient = errors.New("recipient address is invalid")

	// ErrEmptyBody is returned when the message has no body
	ErrEmptyBody = errors.New("message body is required")

	// ErrSendFailed is returned when the email fails to send
	ErrSendFailed = errors.New("failed to send email")
)
