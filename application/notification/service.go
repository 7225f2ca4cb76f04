package notification

import (
	"context"
	"fmt"

	"gdrive-backup/domain/notification"
)

// Service delivers failure alerts
type Service struct {
	sender notification.EmailSender
}

// NewService creates a new notification service
func NewService(sender notification.EmailSender) *Service {
	return &Service{sender: sender}
}

// Notify sends message to the given address. An empty subject uses the default alert subject.
func (s *Service) Notify(ctx context.Context, to, message, subject string) error {
	if subject == "" {
		subject = notification.DefaultSubject
	}

	msg := &notification.Message{
		To:      notification.Recipient{Address: to},
		Subject: subject,
		Body:    message,
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to notify %s: %w", to, err)
	}
	return nil
}
