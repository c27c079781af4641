package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sweety-ai/sweety-chat/internal/model"
	"github.com/sweety-ai/sweety-chat/internal/store"
)

// Run exercises the compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store and return it from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("Users", func(t *testing.T) { runUsers(t, makeStore(t)) })
	RunTranscripts(t, func(t *testing.T) store.Transcripts { return makeStore(t).Transcripts() })
}

func runUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	suffix := uuid.New().String()[:8]

	u := &model.User{
		UserID:       uuid.New().String(),
		Username:     "alice_" + suffix,
		Email:        "alice_" + suffix + "@example.test",
		PasswordHash: "hash",
	}
	created, err := s.Users().Create(ctx, u)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if !created.Active || created.CreationTime.IsZero() {
		t.Fatalf("CreateUser: expected active user with creation time, got %+v", created)
	}

	if got, err := s.Users().GetByID(ctx, u.UserID); err != nil || got.Username != u.Username || got.PasswordHash != "hash" {
		t.Fatalf("GetByID: got=%+v err=%v", got, err)
	}
	if got, err := s.Users().GetByLogin(ctx, u.Username); err != nil || got.UserID != u.UserID {
		t.Fatalf("GetByLogin(username): got=%+v err=%v", got, err)
	}
	if got, err := s.Users().GetByLogin(ctx, u.Email); err != nil || got.UserID != u.UserID {
		t.Fatalf("GetByLogin(email): got=%+v err=%v", got, err)
	}
	if _, err := s.Users().GetByLogin(ctx, "nobody_"+suffix); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByLogin(unknown): expected ErrNotFound, got %v", err)
	}
	if _, err := s.Users().GetByID(ctx, uuid.New().String()); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByID(unknown): expected ErrNotFound, got %v", err)
	}

	dupName := &model.User{UserID: uuid.New().String(), Username: u.Username, Email: "other_" + suffix + "@example.test", PasswordHash: "h"}
	if _, err := s.Users().Create(ctx, dupName); model.ConflictField(err) != "username" {
		t.Fatalf("duplicate username: expected ConflictError(username), got %v", err)
	}
	dupEmail := &model.User{UserID: uuid.New().String(), Username: "bob_" + suffix, Email: u.Email, PasswordHash: "h"}
	if _, err := s.Users().Create(ctx, dupEmail); model.ConflictField(err) != "email" {
		t.Fatalf("duplicate email: expected ConflictError(email), got %v", err)
	}

	if n, err := s.Users().Count(ctx); err != nil || n < 1 {
		t.Fatalf("Count: n=%d err=%v", n, err)
	}
}

// RunTranscripts exercises the transcript contract alone, for drivers that only
// implement store.Transcripts.
func RunTranscripts(t *testing.T, makeTranscripts func(t *testing.T) store.Transcripts) {
	t.Helper()

	t.Run("AppendThenRecentOne", func(t *testing.T) {
		tr := makeTranscripts(t)
		ctx := context.Background()
		sid := uuid.New().String()

		want := msg(model.RoleUser, "hello", 0)
		if err := tr.AppendMessage(ctx, sid, want); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
		got, err := tr.RecentMessages(ctx, sid, 1)
		if err != nil || len(got) != 1 {
			t.Fatalf("RecentMessages: got=%v err=%v", got, err)
		}
		assertMessage(t, want, got[0])
	})

	t.Run("RecentMessagesTail", func(t *testing.T) {
		tr := makeTranscripts(t)
		ctx := context.Background()
		sid := uuid.New().String()

		const n = 7
		var all []model.Message
		for i := 0; i < n; i++ {
			role := model.RoleUser
			if i%2 == 1 {
				role = model.RoleAssistant
			}
			m := msg(role, fmt.Sprintf("m%d", i), i)
			all = append(all, m)
			if err := tr.AppendMessage(ctx, sid, m); err != nil {
				t.Fatalf("AppendMessage %d: %v", i, err)
			}
		}

		for _, k := range []int{1, 3, n - 1, n, n + 5} {
			got, err := tr.RecentMessages(ctx, sid, k)
			if err != nil {
				t.Fatalf("RecentMessages(%d): %v", k, err)
			}
			want := all
			if k < n {
				want = all[n-k:]
			}
			if len(got) != len(want) {
				t.Fatalf("RecentMessages(%d): len=%d want %d", k, len(got), len(want))
			}
			for i := range want {
				assertMessage(t, want[i], got[i])
			}
		}

		if got, err := tr.RecentMessages(ctx, sid, 0); err != nil || len(got) != 0 {
			t.Fatalf("RecentMessages(0): got=%v err=%v", got, err)
		}
	})

	t.Run("RecentConversationsTail", func(t *testing.T) {
		tr := makeTranscripts(t)
		ctx := context.Background()
		sid := uuid.New().String()

		var all []model.Conversation
		for i := 0; i < 4; i++ {
			c := model.Conversation{
				UserMessage: fmt.Sprintf("q%d", i),
				AIResponse:  fmt.Sprintf("a%d", i),
				Timestamp:   baseTime.Add(time.Duration(i) * time.Second),
			}
			all = append(all, c)
			if err := tr.AppendConversation(ctx, sid, c); err != nil {
				t.Fatalf("AppendConversation %d: %v", i, err)
			}
		}

		got, err := tr.RecentConversations(ctx, sid, 2)
		if err != nil || len(got) != 2 {
			t.Fatalf("RecentConversations(2): got=%v err=%v", got, err)
		}
		if got[0].UserMessage != "q2" || got[1].UserMessage != "q3" || got[1].AIResponse != "a3" {
			t.Fatalf("RecentConversations(2): unexpected order %+v", got)
		}
		if !got[1].Timestamp.Equal(all[3].Timestamp) {
			t.Fatalf("timestamp not preserved: %s vs %s", got[1].Timestamp, all[3].Timestamp)
		}

		if got, err := tr.RecentConversations(ctx, sid, 20); err != nil || len(got) != 4 {
			t.Fatalf("RecentConversations(20): n=%d err=%v", len(got), err)
		}
	})

	t.Run("MissingSessionIsEmpty", func(t *testing.T) {
		tr := makeTranscripts(t)
		ctx := context.Background()
		sid := uuid.New().String()

		if got, err := tr.RecentMessages(ctx, sid, 10); err != nil || len(got) != 0 {
			t.Fatalf("RecentMessages: got=%v err=%v", got, err)
		}
		if got, err := tr.RecentConversations(ctx, sid, 10); err != nil || len(got) != 0 {
			t.Fatalf("RecentConversations: got=%v err=%v", got, err)
		}
		if err := tr.Clear(ctx, sid); err != nil {
			t.Fatalf("Clear on absent session: %v", err)
		}
	})

	t.Run("ClearThenAppendStartsFresh", func(t *testing.T) {
		tr := makeTranscripts(t)
		ctx := context.Background()
		sid := uuid.New().String()

		for i := 0; i < 3; i++ {
			if err := tr.AppendMessage(ctx, sid, msg(model.RoleUser, fmt.Sprintf("old%d", i), i)); err != nil {
				t.Fatalf("AppendMessage: %v", err)
			}
		}
		if err := tr.AppendConversation(ctx, sid, model.Conversation{UserMessage: "q", AIResponse: "a", Timestamp: baseTime}); err != nil {
			t.Fatalf("AppendConversation: %v", err)
		}

		if err := tr.Clear(ctx, sid); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if got, err := tr.RecentMessages(ctx, sid, 10); err != nil || len(got) != 0 {
			t.Fatalf("RecentMessages after clear: got=%v err=%v", got, err)
		}
		if got, err := tr.RecentConversations(ctx, sid, 10); err != nil || len(got) != 0 {
			t.Fatalf("RecentConversations after clear: got=%v err=%v", got, err)
		}

		fresh := msg(model.RoleUser, "new", 10)
		if err := tr.AppendMessage(ctx, sid, fresh); err != nil {
			t.Fatalf("AppendMessage after clear: %v", err)
		}
		got, err := tr.RecentMessages(ctx, sid, 10)
		if err != nil || len(got) != 1 {
			t.Fatalf("RecentMessages after re-append: got=%v err=%v", got, err)
		}
		assertMessage(t, fresh, got[0])
	})

	t.Run("SessionsAreIsolated", func(t *testing.T) {
		tr := makeTranscripts(t)
		ctx := context.Background()
		a, b := uuid.New().String(), uuid.New().String()

		if err := tr.AppendMessage(ctx, a, msg(model.RoleUser, "for a", 0)); err != nil {
			t.Fatalf("AppendMessage a: %v", err)
		}
		if err := tr.AppendMessage(ctx, b, msg(model.RoleUser, "for b", 0)); err != nil {
			t.Fatalf("AppendMessage b: %v", err)
		}
		if err := tr.Clear(ctx, a); err != nil {
			t.Fatalf("Clear a: %v", err)
		}
		got, err := tr.RecentMessages(ctx, b, 10)
		if err != nil || len(got) != 1 || got[0].Content != "for b" {
			t.Fatalf("session b disturbed: got=%v err=%v", got, err)
		}
	})
}

var baseTime = time.Date(2025, 6, 25, 9, 23, 0, 0, time.UTC)

func msg(role model.Role, content string, offset int) model.Message {
	return model.Message{Role: role, Content: content, Timestamp: baseTime.Add(time.Duration(offset) * time.Second)}
}

func assertMessage(t *testing.T, want, got model.Message) {
	t.Helper()
	if got.Role != want.Role || got.Content != want.Content || !got.Timestamp.Equal(want.Timestamp) {
		t.Fatalf("message mismatch: want %+v got %+v", want, got)
	}
}
