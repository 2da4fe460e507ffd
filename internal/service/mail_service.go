package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	config "github.com/maheshrc27/brandpost/configs"
)

// MailService delivers plain-text email. Mode "smtp" sends through the
// configured server; any other mode only logs.
type MailService interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

func NewMailService(cfg config.Email) MailService {
	if cfg.Mode == "smtp" {
		return &smtpMailer{config: cfg, send: smtp.SendMail}
	}
	return &logMailer{}
}

type logMailer struct{}

func (m *logMailer) Send(_ context.Context, to []string, subject, body string) error {
	slog.Info("[DEV] email", "to", to, "subject", subject, "body", body)
	return nil
}

type smtpMailer struct {
	config config.Email
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *smtpMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	message := fmt.Sprintf("From: %s <%s>\r\n", m.config.FromName, m.config.From)
	message += fmt.Sprintf("To: %s\r\n", strings.Join(to, ", "))
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "MIME-Version: 1.0\r\n"
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	var auth smtp.Auth
	if m.config.User != "" {
		auth = smtp.PlainAuth("", m.config.User, m.config.Password, m.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	if err := m.send(addr, auth, m.config.From, to, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("email sent", "to", to, "subject", subject)
	return nil
}
