package factory

import (
	"github.com/rs/zerolog"

	"github.com/sweety-ai/sweety-chat/internal/config"
	"github.com/sweety-ai/sweety-chat/internal/notify"
)

// NewNotifier returns a login alert notifier. Without SMTP credentials the
// notifier is disabled and discards alerts.
func NewNotifier(cfg *config.Config, log zerolog.Logger) (*notify.Notifier, error) {
	var mailer notify.Mailer
	if cfg.LoginAlertsEnabled() {
		m, err := notify.NewSMTPMailer(cfg.GetSMTPAddr(), cfg.EmailUser, cfg.EmailPassword)
		if err != nil {
			return nil, err
		}
		mailer = m
	}
	return notify.New(mailer, cfg.NotifyQueueSize, cfg.NotifyMaxElapsed, log), nil
}
