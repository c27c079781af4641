package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/sweety-ai/sweety-chat/internal/api"
	"github.com/sweety-ai/sweety-chat/internal/companion"
	"github.com/sweety-ai/sweety-chat/internal/services"
	"github.com/sweety-ai/sweety-chat/internal/session"
	"github.com/sweety-ai/sweety-chat/internal/store/sqlite"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, db, err := sqlite.New(context.Background(), ":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	log := zerolog.Nop()
	sessions := session.NewManager("cli-test", time.Hour, false)
	users := services.NewUserService(st.Users(), 6, log, services.WithHashCost(bcrypt.MinCost))
	chat := services.NewChatService(
		services.NewTranscriptService(st.Transcripts(), log),
		companion.NewGuarded(nil, companion.NewKeyword(), time.Second, log),
		10, 20, log,
	)
	srv := httptest.NewServer(api.NewRouter(api.Handlers{
		Users:  api.NewUserHandler(users, sessions, nil, log),
		Chat:   api.NewChatHandler(chat, sessions, log),
		Health: api.NewHealthHandler(nil),
	}))
	t.Cleanup(srv.Close)
	return srv
}

// run executes one chatctl invocation, as a fresh process would.
func run(t *testing.T, srv, cookieFile string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs(append([]string{"--api", srv, "--cookie-file", cookieFile}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestSessionPersistsAcrossInvocations(t *testing.T) {
	srv := newServer(t)
	cookie := filepath.Join(t.TempDir(), "cfg", "session.json")

	out, err := run(t, srv.URL, cookie, "chat", "hello")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(out, "Heyyy") {
		t.Fatalf("unexpected reply %q", out)
	}
	if _, err := os.Stat(cookie); err != nil {
		t.Fatalf("cookie file not written: %v", err)
	}

	if _, err := run(t, srv.URL, cookie, "chat", "i", "am", "sad"); err != nil {
		t.Fatalf("chat: %v", err)
	}

	out, err = run(t, srv.URL, cookie, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "you: hello") || !strings.Contains(out, "you: i am sad") {
		t.Fatalf("history missing turns:\n%s", out)
	}

	if _, err := run(t, srv.URL, cookie, "reset"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	out, err = run(t, srv.URL, cookie, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "(no messages)") {
		t.Fatalf("expected empty history, got:\n%s", out)
	}
}

func TestSignupLoginStatusLogout(t *testing.T) {
	srv := newServer(t)
	cookie := filepath.Join(t.TempDir(), "session.json")

	if _, err := run(t, srv.URL, cookie, "signup", "-u", "alice", "-e", "alice@example.com", "-p", "secret1"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, err := run(t, srv.URL, cookie, "signup", "-u", "alice", "-e", "alice2@example.com", "-p", "secret1")
	if err == nil || !strings.Contains(err.Error(), "409") {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := run(t, srv.URL, cookie, "login", "-u", "alice", "-p", "wrong"); err == nil {
		t.Fatalf("expected login failure")
	}
	if _, err := run(t, srv.URL, cookie, "login", "-u", "alice", "-p", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	out, err := run(t, srv.URL, cookie, "status")
	if err != nil || !strings.Contains(out, "logged in as alice") {
		t.Fatalf("status = %q, %v", out, err)
	}

	if _, err := run(t, srv.URL, cookie, "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := os.Stat(cookie); !os.IsNotExist(err) {
		t.Fatalf("cookie file should be removed after logout, stat err = %v", err)
	}
	out, _ = run(t, srv.URL, cookie, "status")
	if !strings.Contains(out, "not logged in") {
		t.Fatalf("status after logout = %q", out)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	if _, err := run(t, "http://127.0.0.1:1", filepath.Join(t.TempDir(), "c.json"), "chat"); err == nil {
		t.Fatalf("expected args error")
	}
}
