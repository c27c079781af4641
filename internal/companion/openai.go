package companion

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/sweety-ai/sweety-chat/internal/model"
)

// ErrNotConfigured is returned by NewOpenAI when no API key is set.
var ErrNotConfigured = errors.New("model api key not configured")

// OpenAIConfig describes an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Persona     []string
}

// OpenAI calls a chat completion endpoint (Groq by default) with the persona
// prepended as system messages.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAI builds the client. It does not contact the endpoint.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 100
	}
	if cfg.Persona == nil {
		cfg.Persona = DefaultPersona
	}
	return &OpenAI{client: openai.NewClientWithConfig(clientConfig), cfg: cfg}, nil
}

func (p *OpenAI) Respond(ctx context.Context, turns []model.Turn) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(p.cfg.Persona)+len(turns))
	for _, t := range append(personaTurns(p.cfg.Persona), turns...) {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: chatRole(t.Role), Content: t.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:            p.cfg.Model,
		Messages:         msgs,
		Temperature:      p.cfg.Temperature,
		MaxTokens:        p.cfg.MaxTokens,
		TopP:             0.9,
		FrequencyPenalty: 0.1,
		PresencePenalty:  0.1,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func personaTurns(persona []string) []model.Turn {
	out := make([]model.Turn, 0, len(persona))
	for _, s := range persona {
		out = append(out, model.Turn{Role: model.RoleSystem, Content: s})
	}
	return out
}

// chatRole maps transcript roles onto chat completion roles. Unknown roles are sent as user.
func chatRole(r model.Role) string {
	switch r {
	case model.RoleSystem:
		return openai.ChatMessageRoleSystem
	case model.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
