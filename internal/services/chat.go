package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweety-ai/sweety-chat/internal/companion"
	"github.com/sweety-ai/sweety-chat/internal/metrics"
	"github.com/sweety-ai/sweety-chat/internal/model"
	"github.com/sweety-ai/sweety-chat/internal/validate"
)

// Companion produces a reply for every turn. *companion.Guarded implements it.
type Companion interface {
	Respond(ctx context.Context, turns []model.Turn) companion.Reply
}

// ChatService runs chat turns against a session transcript.
type ChatService struct {
	transcripts  *TranscriptService
	companion    Companion
	contextLimit int
	historyLimit int
	log          zerolog.Logger
}

func NewChatService(tr *TranscriptService, c Companion, contextLimit, historyLimit int, log zerolog.Logger) *ChatService {
	return &ChatService{
		transcripts:  tr,
		companion:    c,
		contextLimit: contextLimit,
		historyLimit: historyLimit,
		log:          log,
	}
}

// HandleChatTurn records the user message, asks the companion for a reply
// over the recent context and records the reply and the round trip. The
// session stays locked for the whole turn, so turns on one session never
// interleave. The user message is durable before the companion is called.
func (s *ChatService) HandleChatTurn(ctx context.Context, sessionID, text string) (companion.Reply, error) {
	if err := validate.ChatMessage(text); err != nil {
		return companion.Reply{}, err
	}
	text = strings.TrimSpace(text)
	start := time.Now()

	var reply companion.Reply
	err := s.transcripts.WithSession(ctx, sessionID, func(tx *SessionTx) error {
		if err := tx.AppendMessage(ctx, model.RoleUser, text); err != nil {
			return err
		}
		history, err := tx.RecentMessages(ctx, s.contextLimit)
		if err != nil {
			return err
		}

		reply = s.companion.Respond(ctx, model.TurnsFromMessages(history))

		// A reply that was produced is recorded even if the caller went away.
		wctx := context.WithoutCancel(ctx)
		if err := tx.AppendMessage(wctx, model.RoleAssistant, reply.Text); err != nil {
			return err
		}
		return tx.AppendConversation(wctx, text, reply.Text)
	})
	if err != nil {
		s.log.Error().Stack().Err(err).Str("session_id", sessionID).Msg("chat turn failed")
		return companion.Reply{}, err
	}

	metrics.ChatTurnsTotal.WithLabelValues(string(reply.Source)).Inc()
	metrics.ChatTurnDuration.Observe(time.Since(start).Seconds())
	s.log.Debug().
		Str("session_id", sessionID).
		Str("source", string(reply.Source)).
		Dur("latency", time.Since(start)).
		Msg("chat turn")
	return reply, nil
}

// History returns the most recent round trips for display. It never fails.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]model.Conversation, ReadStatus) {
	return s.transcripts.RecentConversations(ctx, sessionID, s.historyLimit)
}

// Reset deletes the session transcript.
func (s *ChatService) Reset(ctx context.Context, sessionID string) error {
	if err := s.transcripts.Clear(ctx, sessionID); err != nil {
		s.log.Error().Stack().Err(err).Str("session_id", sessionID).Msg("reset transcript failed")
		return err
	}
	return nil
}
