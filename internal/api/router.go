package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sweety-ai/sweety-chat/internal/api/recovery"
	"github.com/sweety-ai/sweety-chat/internal/api/respond"
)

// Handlers groups everything NewRouter mounts.
type Handlers struct {
	Users  *UserHandler
	Chat   *ChatHandler
	Health *HealthHandler
}

// NewRouter wires HTTP routes to handlers. Middleware order: recovery
// outermost, then instrumentation.
func NewRouter(h Handlers) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware, Instrument)
	root.NotFoundHandler = http.HandlerFunc(notFound)
	root.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	// Identity
	root.HandleFunc("/api/signup", h.Users.Signup).Methods(http.MethodPost)
	root.HandleFunc("/api/login", h.Users.Login).Methods(http.MethodPost)
	root.HandleFunc("/api/logout", h.Users.Logout).Methods(http.MethodGet, http.MethodPost)
	root.HandleFunc("/api/user-status", h.Users.Status).Methods(http.MethodGet)

	// Chat
	root.HandleFunc("/chat", h.Chat.Chat).Methods(http.MethodPost)
	root.HandleFunc("/history", h.Chat.History).Methods(http.MethodGet)
	root.HandleFunc("/new-session", h.Chat.NewSession).Methods(http.MethodPost)
	root.HandleFunc("/reset", h.Chat.NewSession).Methods(http.MethodPost)
	root.HandleFunc("/voice/transcribe", h.Chat.Transcribe).Methods(http.MethodPost)

	// Health
	root.HandleFunc("/api/health", h.Health.CheckHealth).Methods(http.MethodGet)
	return root
}

func notFound(w http.ResponseWriter, r *http.Request) {
	respond.WriteNotFound(w, "no route for "+r.URL.Path)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respond.WriteError(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
}
