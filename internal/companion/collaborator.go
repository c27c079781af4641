// Package companion produces assistant replies from a remote chat model,
// with a deterministic keyword fallback when the model is unavailable.
package companion

import (
	"context"

	"github.com/sweety-ai/sweety-chat/internal/model"
)

// Collaborator turns an ordered conversation into a reply.
type Collaborator interface {
	Respond(ctx context.Context, turns []model.Turn) (string, error)
}

// Source says which collaborator produced a reply.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Reply is the outcome of a guarded model call.
type Reply struct {
	Text   string
	Source Source
}

// lastUserTurn returns the newest user content, if any.
func lastUserTurn(turns []model.Turn) (string, bool) {
	if len(turns) == 0 || turns[len(turns)-1].Role != model.RoleUser {
		return "", false
	}
	return turns[len(turns)-1].Content, true
}
