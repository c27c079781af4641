package migrations

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestUp_SQLiteCreatesTables(t *testing.T) {
	db, err := sql.Open("sqlite", "file:migrations_up?mode=memory&cache=shared")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, Up(context.Background(), db, SQLite, zerolog.Nop()))
	// second run is a no-op
	require.NoError(t, Up(context.Background(), db, SQLite, zerolog.Nop()))

	for _, table := range []string{"users", "transcript_messages", "transcript_conversations"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestUp_UnknownDialect(t *testing.T) {
	err := Up(context.Background(), nil, "oracle", zerolog.Nop())
	require.Error(t, err)
}

func TestUp_PropagatesGooseError(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return errors.New("boom")
	}

	err := Up(context.Background(), nil, Postgres, zerolog.Nop())
	require.ErrorContains(t, err, "boom")
	require.Equal(t, Postgres, gotDir)
}
