package notify

import (
	"errors"
	"fmt"
	"net/smtp"

	"ticketops/config"
)

// Mailer delivers a plain-text e-mail.
type Mailer interface {
	Send(to, subject, body string) error
}

var ErrMailNotConfigured = errors.New("smtp host not configured")

// SMTPMailer sends through a single SMTP relay with optional PLAIN auth.
type SMTPMailer struct {
	cfg config.EmailConfig

	// SendFunc is smtp.SendMail unless overridden in tests.
	SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, SendFunc: smtp.SendMail}
}

func (m *SMTPMailer) Configured() bool {
	return m.cfg.SMTPHost != ""
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	if !m.Configured() {
		return ErrMailNotConfigured
	}
	from := m.cfg.FromAddress
	if from == "" {
		from = m.cfg.SMTPUser
	}
	name := m.cfg.FromName
	if name == "" {
		name = "TicketOps"
	}
	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		name, from, to, subject, body)

	port := m.cfg.SMTPPort
	if port <= 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, port)
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}
	return m.SendFunc(addr, auth, from, []string{to}, []byte(msg))
}
