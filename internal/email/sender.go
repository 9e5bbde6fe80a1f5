// Package email provides outbound email delivery for follow-up notifications.
// Delivery goes through Brevo's transactional API when an API key is
// configured, falling back to direct SMTP, falling back to a no-op sender.
package email

import (
	"context"
	"errors"

	"dealroom_backend/platform/config"
)

// ErrNoRecipient is returned when a follow-up has no recipient address.
var ErrNoRecipient = errors.New("no recipient email address")

// FollowupMessage is the content of one follow-up notification.
type FollowupMessage struct {
	To            string
	Subject       string
	LeadName      string
	DocumentTitle string
	DocumentURL   string
}

// Sender delivers follow-up notifications.
type Sender interface {
	SendFollowupEmail(ctx context.Context, msg FollowupMessage) error
}

// NoopSender discards all messages. Used when email delivery is disabled.
type NoopSender struct{}

func (NoopSender) SendFollowupEmail(ctx context.Context, msg FollowupMessage) error {
	return nil
}

// NewSender builds the configured Sender implementation.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	if cfg.GetBrevoAPIKey() != "" {
		return NewBrevoSender(cfg), nil
	}
	if cfg.GetSMTPHost() != "" {
		return NewSMTPSender(
			cfg.GetSMTPHost(), cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(), cfg.GetEmailFromName(),
		), nil
	}
	return NoopSender{}, nil
}
