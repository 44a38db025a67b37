// Package email delivers demand letters through SendGrid behind a narrow
// Sender interface, so the scheduler and tests never touch the network
// client directly.
package email

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"cashbus/config"
)

// SendResult reports one delivery attempt. The scheduler only advances a
// timeline when Succeeded is set; Err carries the transient failure
// otherwise.
type SendResult struct {
	Attempted bool
	Succeeded bool
	MessageID string
	Err       error
}

// Sender is the notification delivery collaborator. Delivery is
// at-least-once; business-level idempotency lives in the timeline store.
type Sender interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) SendResult
}

// SendGridSender sends letters through the SendGrid v3 API.
type SendGridSender struct {
	config *config.Config
	client *sendgrid.Client
}

// NewSendGridSender creates a SendGrid-backed sender.
func NewSendGridSender(cfg *config.Config) *SendGridSender {
	return &SendGridSender{
		config: cfg,
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
	}
}

// Send delivers one letter. A non-2xx SendGrid status is a failed attempt.
func (s *SendGridSender) Send(ctx context.Context, to, subject, textBody, htmlBody string) SendResult {
	from := mail.NewEmail(s.config.SendGridFromName, s.config.SendGridFromEmail)
	recipient := mail.NewEmail(to, to)

	message := mail.NewV3Mail()
	message.SetFrom(from)
	message.Subject = subject
	if s.config.ReplyToEmail != "" {
		message.SetReplyTo(mail.NewEmail(s.config.SendGridFromName, s.config.ReplyToEmail))
	}

	p := mail.NewPersonalization()
	p.AddTos(recipient)
	message.AddPersonalizations(p)

	message.AddContent(mail.NewContent("text/plain", textBody))
	message.AddContent(mail.NewContent("text/html", htmlBody))

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return SendResult{Attempted: true, Err: err}
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return SendResult{Attempted: true, Err: fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)}
	}

	messageID := ""
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}
	log.Infof("Email sent to %s! Status: %d", to, response.StatusCode)
	return SendResult{Attempted: true, Succeeded: true, MessageID: messageID}
}
