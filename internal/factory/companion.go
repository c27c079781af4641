package factory

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/sweety-ai/sweety-chat/internal/companion"
	"github.com/sweety-ai/sweety-chat/internal/config"
)

// NewCompanion builds the guarded model collaborator. Without an API key
// every reply comes from the keyword fallback.
func NewCompanion(cfg *config.Config, log zerolog.Logger) (*companion.Guarded, error) {
	persona, err := companion.LoadPersona(cfg.PersonaFile)
	if err != nil {
		return nil, err
	}

	var primary companion.Collaborator
	p, err := companion.NewOpenAI(companion.OpenAIConfig{
		APIKey:      cfg.ModelAPIKey,
		BaseURL:     cfg.ModelBaseURL,
		Model:       cfg.ModelName,
		Temperature: cfg.ModelTemperature,
		MaxTokens:   cfg.ModelMaxTokens,
		Persona:     persona,
	})
	switch {
	case errors.Is(err, companion.ErrNotConfigured):
		log.Warn().Msg("model api key not set; replies use keyword fallback")
	case err != nil:
		return nil, err
	default:
		primary = p
	}

	return companion.NewGuarded(primary, companion.NewKeyword(), cfg.ModelTimeout, log), nil
}
