package store

import (
	"context"

	"github.com/sweety-ai/sweety-chat/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Users() Users
	Transcripts() Transcripts
}

// Users persists identity records. Create must surface unique-constraint
// violations as model.ConflictError naming the username or email field.
type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
	// GetByLogin matches login against username OR email and returns the first match.
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	Count(ctx context.Context) (int, error)
}

// Transcripts is an append-only per-session log. Appends never read the
// existing record; recent reads return the newest limit items oldest-first.
type Transcripts interface {
	AppendMessage(ctx context.Context, sessionID string, m model.Message) error
	AppendConversation(ctx context.Context, sessionID string, c model.Conversation) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error)
	RecentConversations(ctx context.Context, sessionID string, limit int) ([]model.Conversation, error)
	// Clear removes every entry for sessionID. Clearing an absent session is not an error.
	Clear(ctx context.Context, sessionID string) error
}

// Reverse flips a newest-first slice into oldest-first order in place.
func Reverse[T any](s []T) []T {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return s
}
