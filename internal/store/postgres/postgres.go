package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sweety-ai/sweety-chat/internal/model"
	"github.com/sweety-ai/sweety-chat/internal/store"
	"github.com/sweety-ai/sweety-chat/internal/store/migrations"
)

const uniqueViolation = "23505"

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New opens dsn, applies migrations and returns the store.
func New(ctx context.Context, dsn string, log zerolog.Logger) (store.Store, *sql.DB, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Up(ctx, db, migrations.Postgres, log); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return NewWithDB(db), db, nil
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users             { return &users{db: s.db} }
func (s *pgStore) Transcripts() store.Transcripts { return &transcripts{db: s.db} }

// HealthPing implements health.HealthPinger for Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Users ---
type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	var created time.Time
	row := u.db.QueryRowContext(ctx, `
        INSERT INTO users (user_id, username, email, password_hash, is_active)
        VALUES ($1,$2,$3,$4,TRUE)
        RETURNING creation_time
    `, m.UserID, m.Username, m.Email, m.PasswordHash)
	if err := row.Scan(&created); err != nil {
		return nil, mapUniqueViolation(err)
	}
	out := *m
	out.Active = true
	out.CreationTime = created.UTC()
	return &out, nil
}

func (u *users) GetByID(ctx context.Context, userID string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `
        SELECT user_id, username, email, password_hash, is_active, creation_time
        FROM users WHERE user_id=$1
    `, userID)
	return scanUser(row)
}

func (u *users) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `
        SELECT user_id, username, email, password_hash, is_active, creation_time
        FROM users WHERE username=$1 OR email=$1
        ORDER BY creation_time ASC LIMIT 1
    `, login)
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
	var out model.User
	if err := row.Scan(&out.UserID, &out.Username, &out.Email, &out.PasswordHash, &out.Active, &out.CreationTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	out.CreationTime = out.CreationTime.UTC()
	return &out, nil
}

// mapUniqueViolation turns a 23505 on the users constraints into model.ConflictError.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "users_username_key":
		return model.NewConflictError("username", "username already exists")
	case "users_email_key":
		return model.NewConflictError("email", "email already exists")
	}
	return model.NewConflictError("user", "user already exists")
}

// --- Transcripts ---
type transcripts struct{ db *sql.DB }

func (t *transcripts) AppendMessage(ctx context.Context, sessionID string, m model.Message) error {
	_, err := t.db.ExecContext(ctx, `
        INSERT INTO transcript_messages (session_id, role, content, creation_time)
        VALUES ($1,$2,$3,$4)
    `, sessionID, string(m.Role), m.Content, m.Timestamp.UTC())
	return model.NewStorageError("append message", pkgerrors.WithStack(err))
}

func (t *transcripts) AppendConversation(ctx context.Context, sessionID string, c model.Conversation) error {
	_, err := t.db.ExecContext(ctx, `
        INSERT INTO transcript_conversations (session_id, user_message, ai_response, creation_time)
        VALUES ($1,$2,$3,$4)
    `, sessionID, c.UserMessage, c.AIResponse, c.Timestamp.UTC())
	return model.NewStorageError("append conversation", pkgerrors.WithStack(err))
}

func (t *transcripts) RecentMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return []model.Message{}, nil
	}
	rows, err := t.db.QueryContext(ctx, `
        SELECT role, content, creation_time FROM transcript_messages
        WHERE session_id=$1 ORDER BY seq DESC LIMIT $2
    `, sessionID, limit)
	if err != nil {
		return nil, model.NewStorageError("read messages", pkgerrors.WithStack(err))
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		var role string
		if err := rows.Scan(&role, &m.Content, &m.Timestamp); err != nil {
			return nil, model.NewStorageError("read messages", pkgerrors.WithStack(err))
		}
		m.Role = model.Role(role)
		m.Timestamp = m.Timestamp.UTC()
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
        WHERE session_id=$1 ORDER BY seq DESC LIMIT $2
    `, sessionID, limit)
	if err != nil {
		return nil, model.NewStorageError("read conversations", pkgerrors.WithStack(err))
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Conversation, 0, limit)
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.UserMessage, &c.AIResponse, &c.Timestamp); err != nil {
			return nil, model.NewStorageError("read conversations", pkgerrors.WithStack(err))
		}
		c.Timestamp = c.Timestamp.UTC()
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

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_messages WHERE session_id=$1`, sessionID); err != nil {
		return model.NewStorageError("clear", pkgerrors.WithStack(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_conversations WHERE session_id=$1`, sessionID); err != nil {
		return model.NewStorageError("clear", pkgerrors.WithStack(err))
	}
	return model.NewStorageError("clear", pkgerrors.WithStack(tx.Commit()))
}
