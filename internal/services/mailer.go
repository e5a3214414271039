package services

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

// SendGridMailer sends verification codes through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
	log    *logrus.Logger
}

func NewSendGridMailer(apiKey, from string, log *logrus.Logger) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail("Whisper", from),
		log:    log,
	}
}

func verificationEmail(username, code string) (subject, plain, html string) {
	subject = "Whisper | Verification Code"
	plain = fmt.Sprintf("Hello %s,\n\nThank you for registering. Your verification code is: %s\n\nThe code expires in one hour.", username, code)
	html = fmt.Sprintf("<p>Hello %s,</p><p>Thank you for registering. Your verification code is: <strong>%s</strong></p><p>The code expires in one hour.</p>", username, code)
	return subject, plain, html
}

func (m *SendGridMailer) SendVerificationCode(ctx context.Context, to, username, code string) error {
	subject, plain, html := verificationEmail(username, code)
	message := mail.NewSingleEmail(m.from, subject, mail.NewEmail(username, to), plain, html)

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}
	m.log.WithField("status", response.StatusCode).Debug("Verification email sent")
	return nil
}

// LogMailer writes codes to the log instead of sending them. Used when no
// SendGrid key is configured.
type LogMailer struct {
	log *logrus.Logger
}

func NewLogMailer(log *logrus.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendVerificationCode(_ context.Context, to, username, code string) error {
	m.log.WithFields(logrus.Fields{
		"to":       to,
		"username": username,
		"code":     code,
	}).Info("Verification code (mail delivery disabled)")
	return nil
}
