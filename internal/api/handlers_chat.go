package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sweety-ai/sweety-chat/internal/api/respond"
	"github.com/sweety-ai/sweety-chat/internal/model"
	"github.com/sweety-ai/sweety-chat/internal/services"
	"github.com/sweety-ai/sweety-chat/internal/session"
)

const voiceStubText = "Voice transcription not implemented yet"

type ChatHandler struct {
	chat     *services.ChatService
	sessions *session.Manager
	log      zerolog.Logger
}

func NewChatHandler(chat *services.ChatService, sessions *session.Manager, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, sessions: sessions, log: log}
}

// Chat handles POST /chat, creating the session on first use.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	id, err := h.sessions.Ensure(w, r)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	reply, err := h.chat.HandleChatTurn(r.Context(), id.SessionID, in.Message)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"response": reply.Text,
		"source":   reply.Source,
	})
}

// History handles GET /history. A client without a session has no history.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	convs := []model.Conversation{}
	status := services.ReadOK
	if id, ok := h.sessions.FromRequest(r); ok {
		convs, status = h.chat.History(r.Context(), id.SessionID)
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": convs,
		"degraded":      status == services.ReadDegraded,
	})
}

// NewSession handles POST /new-session and POST /reset: the current
// transcript is deleted and the client gets a fresh session id.
func (h *ChatHandler) NewSession(w http.ResponseWriter, r *http.Request) {
	prev, ok := h.sessions.FromRequest(r)
	if ok {
		if err := h.chat.Reset(r.Context(), prev.SessionID); err != nil {
			respond.WriteDomainError(w, err)
			return
		}
	}
	id, err := h.sessions.Reset(w, prev)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"session_id": id.SessionID,
	})
}

// Transcribe handles POST /voice/transcribe. Speech recognition is not wired.
func (h *ChatHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]string{"text": voiceStubText})
}
