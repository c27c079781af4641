// Package sqlite is the embedded store driver used by the local build target.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sweety-ai/sweety-chat/internal/model"
	"github.com/sweety-ai/sweety-chat/internal/store"
	"github.com/sweety-ai/sweety-chat/internal/store/migrations"
)

const memoryPath = ":memory:"

// Open opens (or creates) a SQLite database at path with WAL journaling.
// ":memory:" yields a private in-memory database pinned to one connection.
func Open(path string) (*sql.DB, error) {
	var dsn string
	if path == memoryPath {
		dsn = "file::memory:?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	} else {
		// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New opens path, applies migrations and returns the store.
func New(ctx context.Context, path string, log zerolog.Logger) (store.Store, *sql.DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Up(ctx, db, migrations.SQLite, log); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return NewWithDB(db), db, nil
}

// NewWithDB wraps an already migrated connection.
func NewWithDB(db *sql.DB) store.Store { return &liteStore{db: db} }

type liteStore struct{ db *sql.DB }

func (s *liteStore) Users() store.Users             { return &users{db: s.db} }
func (s *liteStore) Transcripts() store.Transcripts { return &transcripts{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *liteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

// --- Users ---
type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	out := *m
	if out.CreationTime.IsZero() {
		out.CreationTime = time.Now().UTC()
	}
	out.Active = true
	_, err := u.db.ExecContext(ctx, `
        INSERT INTO users (user_id, username, email, password_hash, is_active, creation_time)
        VALUES (?,?,?,?,1,?)
    `, out.UserID, out.Username, out.Email, out.PasswordHash, formatTime(out.CreationTime))
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return &out, nil
}

func (u *users) GetByID(ctx context.Context, userID string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `
        SELECT user_id, username, email, password_hash, is_active, creation_time
        FROM users WHERE user_id = ?
    `, userID)
	return scanUser(row)
}

func (u *users) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `
        SELECT user_id, username, email, password_hash, is_active, creation_time
        FROM users WHERE username = ? OR email = ?
        ORDER BY creation_time ASC LIMIT 1
    `, login, login)
	return scanUser(row)
}

func (u *users) Count(ctx context.Context) (int, error) {
	var n int
	if err := u.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		out     model.User
		active  int
		created string
	)
	if err := row.Scan(&out.UserID, &out.Username, &out.Email, &out.PasswordHash, &active, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	ts, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("users.creation_time: %w", err)
	}
	out.Active = active != 0
	out.CreationTime = ts
	return &out, nil
}

// mapUniqueViolation turns SQLITE_CONSTRAINT_UNIQUE into model.ConflictError.
func mapUniqueViolation(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	msg := se.Error()
	unique := se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "UNIQUE"))
	if !unique {
		return err
	}
	switch {
	case strings.Contains(msg, "users.username"):
		return model.NewConflictError("username", "username already exists")
	case strings.Contains(msg, "users.email"):
		return model.NewConflictError("email", "email already exists")
	}
	return model.NewConflictError("user", "user already exists")
}

// --- Transcripts ---
type transcripts struct{ db *sql.DB }

func (t *transcripts) AppendMessage(ctx context.Context, sessionID string, m model.Message) error {
	_, err := t.db.ExecContext(ctx, `
        INSERT INTO transcript_messages (session_id, role, content, creation_time)
        VALUES (?,?,?,?)
    `, sessionID, string(m.Role), m.Content, formatTime(m.Timestamp))
	return model.NewStorageError("append message", pkgerrors.WithStack(err))
}

func (t *transcripts) AppendConversation(ctx context.Context, sessionID string, c model.Conversation) error {
	_, err := t.db.ExecContext(ctx, `
        INSERT INTO transcript_conversations (session_id, user_message, ai_response, creation_time)
        VALUES (?,?,?,?)
    `, sessionID, c.UserMessage, c.AIResponse, formatTime(c.Timestamp))
	return model.NewStorageError("append conversation", pkgerrors.WithStack(err))
}

func (t *transcripts) RecentMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return []model.Message{}, nil
	}
	rows, err := t.db.QueryContext(ctx, `
        SELECT role, content, creation_time FROM transcript_messages
        WHERE session_id = ? ORDER BY seq DESC LIMIT ?
    `, sessionID, limit)
	if err != nil {
		return nil, model.NewStorageError("read messages", pkgerrors.WithStack(err))
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Message, 0, limit)
	for rows.Next() {
		var (
			m       model.Message
			role    string
			created string
		)
		if err := rows.Scan(&role, &m.Content, &created); err != nil {
			return nil, model.NewStorageError("read messages", pkgerrors.WithStack(err))
		}
		ts, err := parseTime(created)
		if err != nil {
			return nil, model.NewStorageError("read messages", pkgerrors.WithStack(err))
		}
		m.Role = model.Role(role)
		m.Timestamp = ts
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError("read messages", pkgerrors.WithStack(err))
	}
	return store.Reverse(out), nil
}

func (t *transcripts) RecentConversations(ctx context.Context, sessionID string, limit int) ([]model.Conversation, error) {
	if limit <= 0 {
		return []model.Conversation{}, nil
	}
	rows, err := t.db.QueryContext(ctx, `
        SELECT user_message, ai_response, creation_time FROM transcript_conversations
        WHERE session_id = ? ORDER BY seq DESC LIMIT ?
    `, sessionID, limit)
	if err != nil {
		return nil, model.NewStorageError("read conversations", pkgerrors.WithStack(err))
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Conversation, 0, limit)
	for rows.Next() {
		var (
			c       model.Conversation
			created string
		)
		if err := rows.Scan(&c.UserMessage, &c.AIResponse, &created); err != nil {
			return nil, model.NewStorageError("read conversations", pkgerrors.WithStack(err))
		}
		ts, err := parseTime(created)
		if err != nil {
			return nil, model.NewStorageError("read conversations", pkgerrors.WithStack(err))
		}
		c.Timestamp = ts
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError("read conversations", pkgerrors.WithStack(err))
	}
	return store.Reverse(out), nil
}

func (t *transcripts) Clear(ctx context.Context, sessionID string) error {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return model.NewStorageError("clear", pkgerrors.WithStack(err))
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_messages WHERE session_id = ?`, sessionID); err != nil {
		return model.NewStorageError("clear", pkgerrors.WithStack(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_conversations WHERE session_id = ?`, sessionID); err != nil {
		return model.NewStorageError("clear", pkgerrors.WithStack(err))
	}
	return model.NewStorageError("clear", pkgerrors.WithStack(tx.Commit()))
}
