package util

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/psicoagenda/backend/config"
)

// ContactMessage is a contact-form submission forwarded to the clinic inbox.
type ContactMessage struct {
	Name    string
	Email   string
	Subject string
	Body    string
}

// MailSender delivers contact messages. The SMTP implementation is swapped
// for a recorder in tests.
type MailSender interface {
	SendContactMessage(msg ContactMessage) error
}

type smtpSender struct{}

// NewSMTPSender returns a MailSender backed by the configured SMTP server.
func NewSMTPSender() MailSender {
	return smtpSender{}
}

func (smtpSender) SendContactMessage(msg ContactMessage) error {
	cfg := config.LoadConfig()
	if cfg.SMTPHost == "" || cfg.ContactTo == "" {
		return fmt.Errorf("SMTP is not configured")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", cfg.SMTPUser)
	m.SetHeader("Reply-To", msg.Email)
	m.SetHeader("To", cfg.ContactTo)
	subject := msg.Subject
	if subject == "" {
		subject = "Nuevo mensaje de contacto"
	}
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", fmt.Sprintf("De: %s <%s>\n\n%s", msg.Name, msg.Email, msg.Body))

	d := gomail.NewDialer(cfg.SMTPHost, int(cfg.SMTPPort), cfg.SMTPUser, cfg.SMTPPass)
	return d.DialAndSend(m)
}
