package mailer

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer delivers transactional mail. The auth service only sends password
// reset links, but delivery stays behind this interface so environments
// without an SMTP relay can run with the log-only implementation.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// SMTP sends mail through a plain-auth SMTP relay.
type SMTP struct {
	addr     string
	from     string
	password string
}

func NewSMTP(addr, from, password string) *SMTP {
	return &SMTP{addr: addr, from: from, password: password}
}

func (m *SMTP) Send(to, subject, htmlBody string) error {
	const op = "mailer.SMTP.Send"

	host := m.addr
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		htmlBody,
	}, "\r\n")

	auth := smtp.PlainAuth("", m.from, m.password, host)
	if err := smtp.SendMail(m.addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Log is a no-delivery mailer for local development; it logs the message
// instead of sending it.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (m *Log) Send(to, subject, htmlBody string) error {
	m.logger.Info("mail suppressed (log mailer)",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	return nil
}
