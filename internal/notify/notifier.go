// Package notify sends login alert emails off the request path.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/sweety-ai/sweety-chat/internal/metrics"
	"github.com/sweety-ai/sweety-chat/internal/model"
)

const alertSubject = "🎉 Alert: Someone Logged In!"

// Alert is one queued login notification.
type Alert struct {
	To       string
	Username string
	At       time.Time
}

// Notifier queues alerts on a bounded channel and delivers them from Run.
// A Notifier without a Mailer accepts and discards every alert.
type Notifier struct {
	ch         chan Alert
	mailer     Mailer
	maxElapsed time.Duration
	log        zerolog.Logger
}

func New(mailer Mailer, queueSize int, maxElapsed time.Duration, log zerolog.Logger) *Notifier {
	if queueSize <= 0 {
		queueSize = 64
	}
	if maxElapsed <= 0 {
		maxElapsed = 2 * time.Minute
	}
	return &Notifier{
		ch:         make(chan Alert, queueSize),
		mailer:     mailer,
		maxElapsed: maxElapsed,
		log:        log,
	}
}

// Enabled reports whether alerts are delivered.
func (n *Notifier) Enabled() bool { return n.mailer != nil }

// LoginAlert enqueues an alert for u without blocking.
// Returns false if the alert was dropped.
func (n *Notifier) LoginAlert(u *model.User) bool {
	if n.mailer == nil || u == nil || u.Email == "" {
		return false
	}
	select {
	case n.ch <- Alert{To: u.Email, Username: u.Username, At: time.Now().UTC()}:
		return true
	default:
		metrics.LoginAlertsTotal.WithLabelValues("dropped").Inc()
		n.log.Warn().Str("user_id", u.UserID).Msg("login alert queue full, dropping")
		return false
	}
}

// Run delivers queued alerts until ctx is canceled.
func (n *Notifier) Run(ctx context.Context) error {
	if n.mailer == nil {
		n.log.Info().Msg("login alerts disabled")
		<-ctx.Done()
		return nil
	}
	n.log.Info().Int("queue", cap(n.ch)).Dur("max_elapsed", n.maxElapsed).Msg("notifier starting")
	for {
		select {
		case <-ctx.Done():
			n.log.Info().Int("pending", len(n.ch)).Msg("notifier stopping")
			return nil
		case a := <-n.ch:
			n.deliver(ctx, a)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, a Alert) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = time.Second
	exp.Multiplier = 2
	exp.MaxInterval = 30 * time.Second
	exp.MaxElapsedTime = n.maxElapsed
	exp.Reset()

	body := alertBody(a)
	op := func() error {
		err := n.mailer.Send(ctx, a.To, alertSubject, body)
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	onRetry := func(err error, wait time.Duration) {
		n.log.Warn().Err(err).Dur("retry_in", wait).Str("to", a.To).Msg("login alert send failed")
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(exp, ctx), onRetry); err != nil {
		metrics.LoginAlertsTotal.WithLabelValues("failed").Inc()
		n.log.Error().Err(err).Str("to", a.To).Msg("login alert abandoned")
		return
	}
	metrics.LoginAlertsTotal.WithLabelValues("sent").Inc()
	n.log.Info().Str("to", a.To).Msg("login alert sent")
}

// isPermanent treats SMTP 5xx replies as not worth retrying.
func isPermanent(err error) bool {
	var te *textproto.Error
	return errors.As(err, &te) && te.Code >= 500
}

func alertBody(a Alert) string {
	return fmt.Sprintf(`Hello,

A login was just detected on your SweetyAI account:

- Email: %s
- Time: %s

If this was you, ignore this message.
If not, please reset your password immediately.

Regards,
SweetyAI Security Team
`, a.To, a.At.Format("2006-01-02 15:04:05 UTC"))
}
