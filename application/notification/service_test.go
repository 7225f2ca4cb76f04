package notification

import (
	"context"
	"errors"
	"testing"

	"gdrive-backup/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg *notification.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func TestService_Notify_DefaultSubject(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg *notification.Message) bool {
		return msg.To.Address == "ops@example.com" &&
			msg.Subject == notification.DefaultSubject &&
			msg.Body == "File /backup/x.tar is empty..."
	})).Return(nil)

	err := NewService(sender).Notify(context.Background(), "ops@example.com", "File /backup/x.tar is empty...", "")
	require.NoError(t, err)

	sender.AssertExpectations(t)
}

func TestService_Notify_CustomSubject(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg *notification.Message) bool {
		return msg.Subject == "Backup report"
	})).Return(nil)

	require.NoError(t, NewService(sender).Notify(context.Background(), "ops@example.com", "ok", "Backup report"))
	sender.AssertExpectations(t)
}

func TestService_Notify_SendError(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything).Return(notification.ErrSendFailed)

	err := NewService(sender).Notify(context.Background(), "ops@example.com", "boom", "")

	assert.True(t, errors.Is(err, notification.ErrSendFailed))
	assert.Contains(t, err.Error(), "failed to notify ops@example.com")
}
