package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/quotedprintable"
	"net/http"
	"net/mail"
	"strings"

	"gdrive-backup/domain/notification"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailService defines the interface for Gmail API operations
// This allows mocking the Gmail API in tests
type GmailService interface {
	SendMessage(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error)
}

// GoogleGmailService is the production implementation using the Gmail API
type GoogleGmailService struct {
	service *gmail.Service
}

// SendMessage sends an email via Gmail API
func (s *GoogleGmailService) SendMessage(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error) {
	return s.service.Users.Messages.Send(userID, message).Context(ctx).Do()
}

// Client implements notification.EmailSender using Gmail API
type Client struct {
	gmailService GmailService
	from         notification.Recipient
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithGmailService sets a custom Gmail service (for testing)
func WithGmailService(svc GmailService) ClientOption {
	return func(c *Client) {
		c.gmailService = svc
	}
}

// WithFrom sets the From header. Without it Gmail uses the authorised account.
func WithFrom(from notification.Recipient) ClientOption {
	return func(c *Client) {
		c.from = from
	}
}

// NewClient creates a new Gmail client on top of an authorised HTTP client
func NewClient(ctx context.Context, httpClient *http.Client, opts ...ClientOption) (*Client, error) {
	c := &Client{}

	for _, opt := range opts {
		opt(c)
	}

	if c.gmailService == nil {
		srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
		if err != nil {
			return nil, fmt.Errorf("unable to create gmail service: %w", err)
		}
		c.gmailService = &GoogleGmailService{service: srv}
	}

	return c, nil
}

// Send sends a plain-text message using the Gmail API
func (c *Client) Send(ctx context.Context, msg *notification.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid email message: %w", err)
	}

	raw, err := c.buildMIMEMessage(msg)
	if err != nil {
		return err
	}

	message := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}

	if _, err := c.gmailService.SendMessage(ctx, "me", message); err != nil {
		return fmt.Errorf("%w: %v", notification.ErrSendFailed, err)
	}

	return nil
}

// buildMIMEMessage builds a single-part RFC 2822 message
func (c *Client) buildMIMEMessage(msg *notification.Message) ([]byte, error) {
	var buf bytes.Buffer

	if c.from.Address != "" {
		buf.WriteString("From: " + formatAddress(c.from) + "\r\n")
	}
	buf.WriteString("To: " + formatAddress(msg.To) + "\r\n")
	buf.WriteString("Subject: =?utf-8?B?" + base64.StdEncoding.EncodeToString([]byte(msg.Subject)) + "?=\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")

	w := quotedprintable.NewWriter(&buf)
	if _, err := w.Write([]byte(strings.ReplaceAll(msg.Body, "\n", "\r\n"))); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}

	return buf.Bytes(), nil
}

func formatAddress(r notification.Recipient) string {
	addr := mail.Address{Name: r.Name, Address: r.Address}
	return addr.String()
}

// Ensure Client implements notification.EmailSender
var _ notification.EmailSender = (*Client)(nil)
