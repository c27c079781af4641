package model

import "time"

// User represents a registered account.
type User struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreationTime time.Time `json:"creationTime"`
}

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r may be stored in a transcript.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

// Message is one entry of a session transcript.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation records one completed chat round-trip.
type Conversation struct {
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	Timestamp   time.Time `json:"timestamp"`
}

// Turn is a role/content pair sent to the model collaborator.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TurnsFromMessages drops timestamps for model input.
func TurnsFromMessages(msgs []Message) []Turn {
	out := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Turn{Role: m.Role, Content: m.Content})
	}
	return out
}
