package mailer

import (
	"context"

	"github.com/diagnosis/concierge/pkg/config"
	"github.com/diagnosis/concierge/pkg/logger"
)

// Service delivers one email. The returned string is a provider message id
// when the provider reports one.
type Service interface {
	Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error)
}

// New picks a mailer from config: dev mode logs, a MailerSend key wins over
// SMTP otherwise.
func New(cfg config.EmailConfig) Service {
	switch {
	case cfg.DevMode:
		logger.Info("Using dev mailer")
		return NewDevMailer()
	case cfg.MailerSendKey != "":
		logger.Info("Using MailerSend mailer", "from", cfg.From)
		return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.From)
	default:
		logger.Info("Using SMTP mailer", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.From, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	}
}
