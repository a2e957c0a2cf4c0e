package mailerrepo

import (
	"fmt"
	"net/smtp"
	"strings"
)

type smtpMailer struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTP builds a plain-auth SMTP mailer. host may be empty, in which case
// use NewNoop instead.
func NewSMTP(host, port, user, password, from string) Mailer {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, password, host)
	}
	return &smtpMailer{addr: host + ":" + port, auth: auth, from: from}
}

func (m *smtpMailer) Send(mail Mail) error {
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + mail.To,
		"Subject: " + mail.Subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		mail.Body,
	}, "\r\n")

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{mail.To}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

type noopMailer struct{}

// NewNoop is used in dev when SMTP is not configured.
func NewNoop() Mailer { return noopMailer{} }

func (noopMailer) Send(Mail) error { return nil }
