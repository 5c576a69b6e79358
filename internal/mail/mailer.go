package mail

import (
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Mailer delivers transactional email. Delivery failures are the
// caller's problem to log; they never abort the surrounding operation.
type Mailer interface {
	SendActivation(to, username, activationURL string) error
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer creates a mailer for the given relay.
func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (m *SMTPMailer) SendActivation(to, username, activationURL string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Activate your account")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nYour account is almost ready. Activate it within 48 hours:\n\n%s\n\nIf you did not register, ignore this message.\n",
		username, activationURL))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send activation mail: %w", err)
	}
	return nil
}

// LogMailer logs mail instead of sending it. Used in dev setups without
// an SMTP relay and in tests.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) SendActivation(to, username, activationURL string) error {
	m.Logger.Info("activation mail (not sent)",
		"to", to, "username", username, "url", activationURL)
	return nil
}
