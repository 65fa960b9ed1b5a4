package alert

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender delivers alerts via the SendGrid V3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

func NewSendGridSender(apiKey, fromName, fromEmail string) *SendGridSender {
	return &SendGridSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

// Send delivers one message to all recipients in a single API call.
func (s *SendGridSender) Send(ctx context.Context, subject, body string, recipients []string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)

	message := mail.NewV3Mail()
	message.SetFrom(from)
	message.Subject = subject

	p := mail.NewPersonalization()
	for _, recipient := range recipients {
		p.AddTos(mail.NewEmail(recipient, recipient))
	}
	message.AddPersonalizations(p)
	message.AddContent(mail.NewContent("text/plain", body))

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}
