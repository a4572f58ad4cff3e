package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender delivers mail through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
}

// NewSendGridSender constructs a SendGridSender.
func NewSendGridSender(apiKey string) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey)}
}

// Send delivers msg.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.SendWithContext(ctx, buildSendGridMessage(msg))
	if err != nil {
		return fmt.Errorf("send mail via sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func buildSendGridMessage(msg Message) *sgmail.SGMailV3 {
	from := sgmail.NewEmail(msg.FromName, msg.From)
	to := sgmail.NewEmail(msg.ToName, msg.To)
	return sgmail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")
}
