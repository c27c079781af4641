package companion

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweety-ai/sweety-chat/internal/metrics"
	"github.com/sweety-ai/sweety-chat/internal/model"
)

// Fallback reasons reported to metrics and logs.
const (
	reasonUnconfigured = "unconfigured"
	reasonTimeout      = "timeout"
	reasonError        = "error"
	reasonEmpty        = "empty"
)

// Guarded bounds the primary collaborator by a timeout and substitutes the
// fallback on any failure. Respond never returns an error.
type Guarded struct {
	primary  Collaborator
	fallback Collaborator
	timeout  time.Duration
	log      zerolog.Logger
}

// NewGuarded wires primary (nil means always fall back) with fallback.
func NewGuarded(primary, fallback Collaborator, timeout time.Duration, log zerolog.Logger) *Guarded {
	if fallback == nil {
		fallback = NewKeyword()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Guarded{primary: primary, fallback: fallback, timeout: timeout, log: log}
}

func (g *Guarded) Respond(ctx context.Context, turns []model.Turn) Reply {
	if g.primary == nil {
		return g.fallBack(ctx, turns, reasonUnconfigured, nil)
	}

	text, err := g.callPrimary(ctx, turns)
	switch {
	case err != nil:
		reason := reasonError
		if errors.Is(err, context.DeadlineExceeded) {
			reason = reasonTimeout
		}
		return g.fallBack(ctx, turns, reason, model.CollaboratorError{Err: err})
	case strings.TrimSpace(text) == "":
		return g.fallBack(ctx, turns, reasonEmpty, nil)
	}
	return Reply{Text: text, Source: SourceModel}
}

// callPrimary returns when the primary answers or the timeout fires,
// whichever comes first, even if the primary ignores ctx.
func (g *Guarded) callPrimary(ctx context.Context, turns []model.Turn) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := g.primary.Respond(callCtx, turns)
		ch <- result{text, err}
	}()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-callCtx.Done():
		return "", callCtx.Err()
	}
}

func (g *Guarded) fallBack(ctx context.Context, turns []model.Turn, reason string, cause error) Reply {
	metrics.FallbacksTotal.WithLabelValues(reason).Inc()
	ev := g.log.Warn().Str("reason", reason)
	if cause != nil {
		ev = ev.Err(cause)
	}
	ev.Msg("model unavailable, using fallback reply")

	text, err := g.fallback.Respond(ctx, turns)
	if err != nil || strings.TrimSpace(text) == "" {
		text = DefaultReply
	}
	return Reply{Text: text, Source: SourceFallback}
}
