package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sweety-ai/sweety-chat/internal/api/respond"
	"github.com/sweety-ai/sweety-chat/internal/model"
	"github.com/sweety-ai/sweety-chat/internal/services"
	"github.com/sweety-ai/sweety-chat/internal/session"
)

// LoginNotifier receives successful logins. It must not block.
type LoginNotifier interface {
	LoginAlert(u *model.User) bool
}

type UserHandler struct {
	svc      *services.UserService
	sessions *session.Manager
	notifier LoginNotifier
	log      zerolog.Logger
}

func NewUserHandler(svc *services.UserService, sessions *session.Manager, notifier LoginNotifier, log zerolog.Logger) *UserHandler {
	return &UserHandler{svc: svc, sessions: sessions, notifier: notifier, log: log}
}

// Signup handles POST /api/signup. It does not log the new user in.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	u, err := h.svc.Register(r.Context(), in.Username, in.Email, in.Password)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"username": u.Username,
	})
}

// Login handles POST /api/login. The login field accepts a username or an email.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	u, err := h.svc.Authenticate(r.Context(), in.Username, in.Password)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}

	// Keep the chat session the visitor already has.
	id, _ := h.sessions.FromRequest(r)
	if _, err := h.sessions.BindUser(w, id, u.UserID, u.Username); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if h.notifier != nil {
		h.notifier.LoginAlert(u)
	}
	h.log.Info().Str("user_id", u.UserID).Msg("user logged in")
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"username": u.Username,
	})
}

// Logout handles GET|POST /api/logout.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w)
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Status handles GET /api/user-status. Lookup failures report logged out.
func (h *UserHandler) Status(w http.ResponseWriter, r *http.Request) {
	loggedOut := map[string]interface{}{"logged_in": false}

	id, ok := h.sessions.FromRequest(r)
	if !ok || !id.LoggedIn() {
		respond.WriteJSON(w, http.StatusOK, loggedOut)
		return
	}
	u, err := h.svc.CurrentUser(r.Context(), id.UserID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", id.UserID).Msg("user-status lookup failed")
	}
	if u == nil {
		respond.WriteJSON(w, http.StatusOK, loggedOut)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logged_in": true,
		"username":  u.Username,
		"user_id":   u.UserID,
	})
}
