// Package migrations embeds the schema for each supported SQL dialect and
// applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Dialects understood by Up. Values double as the embedded directory names.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

var gooseDialect = map[string]string{
	Postgres: "pgx",
	SQLite:   "sqlite3",
}

// goose keeps its base FS and dialect in package globals.
var mu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Up applies every pending migration for dialect.
func Up(ctx context.Context, db *sql.DB, dialect string, log zerolog.Logger) error {
	gd, ok := gooseDialect[dialect]
	if !ok {
		return fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(files)
	goose.SetLogger(gooseLogger{log: log.With().Str("component", "migrations").Logger()})
	if err := goose.SetDialect(gd); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, dialect); err != nil {
		return fmt.Errorf("migrations: %s up: %w", dialect, err)
	}
	return nil
}

// gooseLogger routes goose output through zerolog.
type gooseLogger struct{ log zerolog.Logger }

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Debug().Msgf(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatal().Msgf(format, v...)
}
