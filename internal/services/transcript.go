package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweety-ai/sweety-chat/internal/keyedmutex"
	"github.com/sweety-ai/sweety-chat/internal/metrics"
	"github.com/sweety-ai/sweety-chat/internal/model"
	"github.com/sweety-ai/sweety-chat/internal/store"
)

// ReadStatus tells an empty history apart from a failed read served empty.
type ReadStatus int

const (
	ReadOK ReadStatus = iota
	ReadDegraded
)

func (s ReadStatus) String() string {
	if s == ReadDegraded {
		return "degraded"
	}
	return "ok"
}

// TranscriptService serializes mutations per session id on top of an
// append-only store.Transcripts.
type TranscriptService struct {
	tr    store.Transcripts
	locks *keyedmutex.Map
	log   zerolog.Logger
	now   func() time.Time
}

func NewTranscriptService(tr store.Transcripts, log zerolog.Logger) *TranscriptService {
	return &TranscriptService{
		tr:    tr,
		locks: &keyedmutex.Map{},
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SessionTx is a view of one session whose caller holds that session's lock.
type SessionTx struct {
	s         *TranscriptService
	sessionID string
}

// WithSession runs fn while holding the lock for sessionID.
func (s *TranscriptService) WithSession(ctx context.Context, sessionID string, fn func(tx *SessionTx) error) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(&SessionTx{s: s, sessionID: sessionID})
}

func (s *TranscriptService) AppendMessage(ctx context.Context, sessionID string, role model.Role, content string) error {
	return s.WithSession(ctx, sessionID, func(tx *SessionTx) error {
		return tx.AppendMessage(ctx, role, content)
	})
}

func (s *TranscriptService) AppendConversation(ctx context.Context, sessionID, userMessage, aiResponse string) error {
	return s.WithSession(ctx, sessionID, func(tx *SessionTx) error {
		return tx.AppendConversation(ctx, userMessage, aiResponse)
	})
}

// RecentMessages returns up to limit newest messages, oldest first. Errors
// propagate: the result feeds the model context.
func (s *TranscriptService) RecentMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	return s.tr.RecentMessages(ctx, sessionID, limit)
}

// RecentConversations never fails: a broken read is logged and served empty
// with ReadDegraded.
func (s *TranscriptService) RecentConversations(ctx context.Context, sessionID string, limit int) ([]model.Conversation, ReadStatus) {
	if sessionID == "" {
		return []model.Conversation{}, ReadOK
	}
	convs, err := s.tr.RecentConversations(ctx, sessionID, limit)
	if err != nil {
		metrics.TranscriptReadsDegradedTotal.Inc()
		s.log.Error().Stack().Err(err).Str("session_id", sessionID).Msg("history read failed, serving empty")
		return []model.Conversation{}, ReadDegraded
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	return convs, ReadOK
}

// Clear drops the whole transcript. Clearing an unknown session is a no-op.
func (s *TranscriptService) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.WithSession(ctx, sessionID, func(tx *SessionTx) error {
		return tx.Clear(ctx)
	})
}

func (tx *SessionTx) AppendMessage(ctx context.Context, role model.Role, content string) error {
	if !role.Valid() {
		return model.NewValidationError(model.KindInvalidFormat, "role", "role must be user or assistant")
	}
	return tx.s.tr.AppendMessage(ctx, tx.sessionID, model.Message{
		Role:      role,
		Content:   content,
		Timestamp: tx.s.now(),
	})
}

func (tx *SessionTx) AppendConversation(ctx context.Context, userMessage, aiResponse string) error {
	return tx.s.tr.AppendConversation(ctx, tx.sessionID, model.Conversation{
		UserMessage: userMessage,
		AIResponse:  aiResponse,
		Timestamp:   tx.s.now(),
	})
}

func (tx *SessionTx) RecentMessages(ctx context.Context, limit int) ([]model.Message, error) {
	return tx.s.tr.RecentMessages(ctx, tx.sessionID, limit)
}

func (tx *SessionTx) Clear(ctx context.Context) error {
	return tx.s.tr.Clear(ctx, tx.sessionID)
}

func requireSession(sessionID string) error {
	if sessionID == "" {
		return model.NewValidationError(model.KindMissingField, "session_id", "session id is required")
	}
	return nil
}
