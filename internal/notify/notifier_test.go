package notify

import (
	"context"
	"errors"
	"net/smtp"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweety-ai/sweety-chat/internal/model"
)

type sent struct{ to, subject, body string }

type fakeMailer struct {
	mu       sync.Mutex
	failures int // fail this many sends before succeeding
	err      error
	calls    int
	sent     []sent
	done     chan struct{}
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	f.sent = append(f.sent, sent{to, subject, body})
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
	return nil
}

var alice = &model.User{UserID: "u1", Username: "alice", Email: "alice@example.com"}

func TestNotifier_DeliversWithRetry(t *testing.T) {
	done := make(chan struct{})
	m := &fakeMailer{failures: 1, err: errors.New("connection reset"), done: done}
	n := New(m, 4, 10*time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = n.Run(ctx) }()

	require.True(t, n.LoginAlert(alice))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("alert not delivered")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 2, m.calls)
	require.Len(t, m.sent, 1)
	assert.Equal(t, "alice@example.com", m.sent[0].to)
	assert.Equal(t, alertSubject, m.sent[0].subject)
	assert.Contains(t, m.sent[0].body, "- Email: alice@example.com")
}

func TestNotifier_PermanentErrorIsNotRetried(t *testing.T) {
	m := &fakeMailer{failures: 100, err: &textproto.Error{Code: 535, Msg: "auth failed"}}
	n := New(m, 1, time.Minute, zerolog.Nop())

	n.deliver(context.Background(), Alert{To: "x@example.com", At: time.Now()})
	assert.Equal(t, 1, m.calls)
}

func TestNotifier_QueueFullDrops(t *testing.T) {
	n := New(&fakeMailer{}, 1, time.Second, zerolog.Nop())
	assert.True(t, n.LoginAlert(alice))
	assert.False(t, n.LoginAlert(alice))
}

func TestNotifier_DisabledWithoutMailer(t *testing.T) {
	n := New(nil, 1, time.Second, zerolog.Nop())
	assert.False(t, n.Enabled())
	assert.False(t, n.LoginAlert(alice))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, n.Run(ctx))
}

func TestSMTPMailer_BuildsMessage(t *testing.T) {
	m, err := NewSMTPMailer("smtp.example.com:587", "bot@example.com", "pw")
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.Send(context.Background(), "alice@example.com", alertSubject, "line1\nline2"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "bot@example.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "To: alice@example.com\r\n")
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.True(t, strings.HasSuffix(msg, "line1\r\nline2"))

	_, err = NewSMTPMailer("no-port", "u", "p")
	assert.Error(t, err)
}
