package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/GTDGit/fabric_api/internal/config"
)

// Mailer sends transactional email.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

// SMTPMailer delivers mail through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer returns an SMTP mailer, or a logging no-op when SMTP is not configured.
func NewMailer(cfg *config.SMTPConfig) Mailer {
	if cfg == nil || cfg.Host == "" {
		log.Warn().Msg("SMTP host not configured - emails will only be logged")
		return NopMailer{}
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	if len(to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail %q: %w", subject, err)
	}
	log.Debug().Strs("to", to).Str("subject", subject).Msg("[SMTP] Mail sent")
	return nil
}

// NopMailer only logs outgoing mail.
type NopMailer struct{}

func (NopMailer) Send(_ context.Context, to []string, subject, _ string) error {
	log.Info().Strs("to", to).Str("subject", subject).Msg("[SMTP] Mail skipped (not configured)")
	return nil
}
