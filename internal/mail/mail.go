// Package mail delivers transactional email through SMTP, Amazon SES, or the log.
package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/clearlabel/transparency/internal/config"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the sender selected by the mail config.
func NewSender(ctx context.Context, cfg config.MailConfig) (Sender, error) {
	switch cfg.Provider {
	case config.MailProviderSMTP:
		return NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.From), nil
	case config.MailProviderSES:
		return NewSESSender(ctx, cfg.SES.Region, cfg.From)
	case config.MailProviderLog, "":
		return NewLogSender(), nil
	default:
		return nil, fmt.Errorf("mail: unsupported provider %q", cfg.Provider)
	}
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("mail: missing recipient")
	}
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return fmt.Errorf("mail: header values must not contain line breaks")
	}
	return nil
}
