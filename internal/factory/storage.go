package factory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sweety-ai/sweety-chat/internal/config"
	storepkg "github.com/sweety-ai/sweety-chat/internal/store"
	"github.com/sweety-ai/sweety-chat/internal/store/filelog"
	storepg "github.com/sweety-ai/sweety-chat/internal/store/postgres"
	storelite "github.com/sweety-ai/sweety-chat/internal/store/sqlite"
)

// NewStore opens the identity store selected by cfg.DBDriver and applies
// migrations. The returned *sql.DB must be closed by the caller.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, *sql.DB, error) {
	var (
		st  storepkg.Store
		db  *sql.DB
		err error
	)
	switch cfg.DBDriver {
	case "sqlite":
		st, db, err = storelite.New(ctx, cfg.SQLitePath, log)
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("SWEETY_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		st, db, err = storepg.New(ctx, cfg.PostgresDSN, log)
	default:
		return nil, nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("store ready")
	return st, db, nil
}

// NewTranscripts returns the transcript backend: the identity store itself
// for "db", or a JSONL log per session under cfg.TranscriptDir for "file".
func NewTranscripts(cfg *config.Config, st storepkg.Store, log zerolog.Logger) (storepkg.Transcripts, error) {
	switch cfg.TranscriptBackend {
	case "db":
		return st.Transcripts(), nil
	case "file":
		l, err := filelog.New(cfg.TranscriptDir)
		if err != nil {
			return nil, err
		}
		log.Info().Str("dir", cfg.TranscriptDir).Msg("file transcript log ready")
		return l, nil
	default:
		return nil, fmt.Errorf("unknown TRANSCRIPT_BACKEND: %s", cfg.TranscriptBackend)
	}
}
