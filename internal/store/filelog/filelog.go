// Package filelog stores transcripts as one append-only JSON Lines file per
// session. Each append writes a single newline-terminated record and syncs
// it, so a crash can at worst leave a torn final line, which readers ignore
// and the next append trims.
package filelog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/sweety-ai/sweety-chat/internal/keyedmutex"
	"github.com/sweety-ai/sweety-chat/internal/model"
	"github.com/sweety-ai/sweety-chat/internal/store"
)

const (
	kindMessage      = "message"
	kindConversation = "conversation"
)

var sessionIDRx = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

type record struct {
	Kind        string    `json:"kind"`
	Role        string    `json:"role,omitempty"`
	Content     string    `json:"content,omitempty"`
	UserMessage string    `json:"user_message,omitempty"`
	AIResponse  string    `json:"ai_response,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Log implements store.Transcripts on the local filesystem.
type Log struct {
	dir   string
	locks keyedmutex.Map
}

var _ store.Transcripts = (*Log)(nil)

// New creates dir if needed and returns a Log rooted there.
func New(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Log{dir: dir}, nil
}

// HealthPing verifies the directory is still reachable.
func (l *Log) HealthPing(ctx context.Context) error {
	st, err := os.Stat(l.dir)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", l.dir)
	}
	return nil
}

func (l *Log) path(sessionID string) (string, error) {
	if !sessionIDRx.MatchString(sessionID) {
		return "", model.NewValidationError(model.KindInvalidFormat, "session_id", "session id has unsupported characters")
	}
	return filepath.Join(l.dir, sessionID+".jsonl"), nil
}

func (l *Log) AppendMessage(ctx context.Context, sessionID string, m model.Message) error {
	return l.append(ctx, sessionID, record{
		Kind:      kindMessage,
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp.UTC(),
	})
}

func (l *Log) AppendConversation(ctx context.Context, sessionID string, c model.Conversation) error {
	return l.append(ctx, sessionID, record{
		Kind:        kindConversation,
		UserMessage: c.UserMessage,
		AIResponse:  c.AIResponse,
		Timestamp:   c.Timestamp.UTC(),
	})
}

func (l *Log) append(ctx context.Context, sessionID string, rec record) error {
	p, err := l.path(sessionID)
	if err != nil {
		return err
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return model.NewStorageError("append "+rec.Kind, pkgerrors.WithStack(err))
	}
	line = append(line, '\n')

	unlock, err := l.locks.Lock(ctx, sessionID)
	if err != nil {
		return model.NewStorageError("append "+rec.Kind, err)
	}
	defer unlock()

	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return model.NewStorageError("append "+rec.Kind, pkgerrors.WithStack(err))
	}
	defer func() { _ = f.Close() }()

	end, err := trimTornTail(f)
	if err != nil {
		return model.NewStorageError("append "+rec.Kind, pkgerrors.WithStack(err))
	}
	if _, err := f.WriteAt(line, end); err != nil {
		return model.NewStorageError("append "+rec.Kind, pkgerrors.WithStack(err))
	}
	if err := f.Sync(); err != nil {
		return model.NewStorageError("append "+rec.Kind, pkgerrors.WithStack(err))
	}
	return nil
}

// trimTornTail truncates f after its last newline and returns the new size.
func trimTornTail(f *os.File) (int64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := st.Size()
	if size == 0 {
		return 0, nil
	}

	const chunk = 4096
	buf := make([]byte, chunk)
	end := size
	for end > 0 {
		start := end - chunk
		if start < 0 {
			start = 0
		}
		n, err := f.ReadAt(buf[:end-start], start)
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			keep := start + int64(i) + 1
			if keep != size {
				if err := f.Truncate(keep); err != nil {
					return 0, err
				}
			}
			return keep, nil
		}
		end = start
	}
	// no complete record at all
	if err := f.Truncate(0); err != nil {
		return 0, err
	}
	return 0, nil
}

func (l *Log) RecentMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return []model.Message{}, nil
	}
	recs, err := l.read(sessionID, kindMessage)
	if err != nil {
		return nil, model.NewStorageError("read messages", err)
	}
	recs = tail(recs, limit)
	out := make([]model.Message, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.Message{Role: model.Role(r.Role), Content: r.Content, Timestamp: r.Timestamp})
	}
	return out, nil
}

func (l *Log) RecentConversations(ctx context.Context, sessionID string, limit int) ([]model.Conversation, error) {
	if limit <= 0 {
		return []model.Conversation{}, nil
	}
	recs, err := l.read(sessionID, kindConversation)
	if err != nil {
		return nil, model.NewStorageError("read conversations", err)
	}
	recs = tail(recs, limit)
	out := make([]model.Conversation, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.Conversation{UserMessage: r.UserMessage, AIResponse: r.AIResponse, Timestamp: r.Timestamp})
	}
	return out, nil
}

func tail(recs []record, limit int) []record {
	if len(recs) > limit {
		return recs[len(recs)-limit:]
	}
	return recs
}

// read returns every complete record of kind in file order. A missing file
// is an empty transcript; a malformed complete line is an error.
func (l *Log) read(sessionID, kind string) ([]record, error) {
	p, err := l.path(sessionID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, pkgerrors.WithStack(err)
	}
	defer func() { _ = f.Close() }()

	var out []record
	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			// torn tail without newline
			return out, nil
		}
		if err != nil {
			return nil, pkgerrors.WithStack(err)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, pkgerrors.Wrapf(err, "%s line %d", filepath.Base(p), lineNo)
		}
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
}

func (l *Log) Clear(ctx context.Context, sessionID string) error {
	p, err := l.path(sessionID)
	if err != nil {
		return err
	}
	unlock, err := l.locks.Lock(ctx, sessionID)
	if err != nil {
		return model.NewStorageError("clear", err)
	}
	defer unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return model.NewStorageError("clear", pkgerrors.WithStack(err))
	}
	return nil
}
