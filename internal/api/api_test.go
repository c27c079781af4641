package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sweety-ai/sweety-chat/internal/api/respond"
	"github.com/sweety-ai/sweety-chat/internal/companion"
	"github.com/sweety-ai/sweety-chat/internal/model"
	"github.com/sweety-ai/sweety-chat/internal/services"
	"github.com/sweety-ai/sweety-chat/internal/session"
	"github.com/sweety-ai/sweety-chat/internal/store/sqlite"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []string
}

func (n *recordingNotifier) LoginAlert(u *model.User) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, u.Email)
	return true
}

func (n *recordingNotifier) emails() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.alerts...)
}

type testEnv struct {
	srv      *httptest.Server
	client   *http.Client
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, db, err := sqlite.New(context.Background(), ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zerolog.Nop()
	sessions := session.NewManager("test-secret", time.Hour, false)
	users := services.NewUserService(st.Users(), 6, log, services.WithHashCost(bcrypt.MinCost))
	transcripts := services.NewTranscriptService(st.Transcripts(), log)
	guarded := companion.NewGuarded(nil, companion.NewKeyword(), time.Second, log)
	chat := services.NewChatService(transcripts, guarded, 10, 20, log)
	notifier := &recordingNotifier{}

	router := NewRouter(Handlers{
		Users:  NewUserHandler(users, sessions, notifier, log),
		Chat:   NewChatHandler(chat, sessions, log),
		Health: NewHealthHandler(nil),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testEnv{srv: srv, client: &http.Client{Jar: jar}, notifier: notifier}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestSignupLoginStatus(t *testing.T) {
	env := newTestEnv(t)

	var status map[string]interface{}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/user-status", nil, &status))
	assert.Equal(t, false, status["logged_in"])

	var out map[string]interface{}
	code := env.do(t, http.MethodPost, "/api/signup", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "secret1",
	}, &out)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "alice", out["username"])

	var errBody respond.ErrorResponse
	code = env.do(t, http.MethodPost, "/api/signup", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "secret1",
	}, &errBody)
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "username", errBody.Field)

	code = env.do(t, http.MethodPost, "/api/signup", map[string]string{
		"username": "bob", "email": "bob@example.com", "password": "123",
	}, &errBody)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, model.KindWeakPassword, errBody.Kind)

	code = env.do(t, http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "nope"}, &errBody)
	require.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_credentials", errBody.Kind)

	code = env.do(t, http.MethodPost, "/api/login", map[string]string{"username": "alice@example.com", "password": "secret1"}, &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"alice@example.com"}, env.notifier.emails())

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/user-status", nil, &status))
	assert.Equal(t, true, status["logged_in"])
	assert.Equal(t, "alice", status["username"])

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/logout", nil, nil))
	status = nil
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/user-status", nil, &status))
	assert.Equal(t, false, status["logged_in"])
}

type historyBody struct {
	Conversations []model.Conversation `json:"conversations"`
	Degraded      bool                 `json:"degraded"`
}

func TestChatHistoryNewSession(t *testing.T) {
	env := newTestEnv(t)

	var hist historyBody
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/history", nil, &hist))
	assert.Empty(t, hist.Conversations)

	var reply struct {
		Response string `json:"response"`
		Source   string `json:"source"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/chat", map[string]string{"message": "hello"}, &reply))
	assert.Equal(t, "Heyyy 😄 What's up?", reply.Response)
	assert.Equal(t, string(companion.SourceFallback), reply.Source)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/chat", map[string]string{"message": "bye"}, &reply))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/history", nil, &hist))
	require.Len(t, hist.Conversations, 2)
	assert.Equal(t, "hello", hist.Conversations[0].UserMessage)
	assert.Equal(t, "bye", hist.Conversations[1].UserMessage)
	assert.False(t, hist.Degraded)

	var errBody respond.ErrorResponse
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/chat", map[string]string{"message": "   "}, &errBody))
	assert.Equal(t, model.KindEmptyInput, errBody.Kind)

	var ns struct {
		SessionID string `json:"session_id"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/new-session", nil, &ns))
	assert.NotEmpty(t, ns.SessionID)

	hist = historyBody{}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/history", nil, &hist))
	assert.Empty(t, hist.Conversations)

	var second struct {
		SessionID string `json:"session_id"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/reset", nil, &second))
	assert.NotEqual(t, ns.SessionID, second.SessionID)
}

func TestVoiceStub(t *testing.T) {
	env := newTestEnv(t)
	var out map[string]string
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/voice/transcribe", nil, &out))
	assert.Equal(t, voiceStubText, out["text"])
}

func TestInvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/chat", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownRouteAndMethodAreJSON(t *testing.T) {
	env := newTestEnv(t)

	var errBody respond.ErrorResponse
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/nope", nil, &errBody))
	assert.Equal(t, http.StatusNotFound, errBody.Code)
	assert.Equal(t, "no route for /nope", errBody.Message)

	errBody = respond.ErrorResponse{}
	require.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodGet, "/chat", nil, &errBody))
	assert.Equal(t, http.StatusMethodNotAllowed, errBody.Code)
	assert.Equal(t, http.StatusText(http.StatusMethodNotAllowed), errBody.Error)
}
