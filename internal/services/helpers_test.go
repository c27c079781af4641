package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sweety-ai/sweety-chat/internal/companion"
	"github.com/sweety-ai/sweety-chat/internal/model"
	"github.com/sweety-ai/sweety-chat/internal/store"
	"github.com/sweety-ai/sweety-chat/internal/store/sqlite"
)

// --- Fakes ---

func newSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	s, db, err := sqlite.New(context.Background(), ":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return s
}

// echoCompanion replies with the last turn and records every context it saw.
type echoCompanion struct {
	mu       sync.Mutex
	contexts [][]model.Turn
	before   func()
}

func (e *echoCompanion) Respond(ctx context.Context, turns []model.Turn) companion.Reply {
	if e.before != nil {
		e.before()
	}
	e.mu.Lock()
	e.contexts = append(e.contexts, append([]model.Turn(nil), turns...))
	e.mu.Unlock()
	return companion.Reply{Text: "re: " + turns[len(turns)-1].Content, Source: companion.SourceModel}
}

// brokenReads fails every conversation read and can fail writes on demand.
type brokenReads struct {
	store.Transcripts
	failAppends bool
}

func (b *brokenReads) RecentConversations(context.Context, string, int) ([]model.Conversation, error) {
	return nil, model.NewStorageError("read conversations", errors.New("malformed record"))
}

func (b *brokenReads) AppendMessage(ctx context.Context, sessionID string, m model.Message) error {
	if b.failAppends {
		return model.NewStorageError("append message", errors.New("disk full"))
	}
	return b.Transcripts.AppendMessage(ctx, sessionID, m)
}
