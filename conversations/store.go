// Package conversations persists chat transcripts to SQLite.
package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/vincentdeneuf/agentine/llm"
)

// Session is one stored conversation.
type Session struct {
	ID        string
	Title     string
	Provider  string
	Model     string
	CreatedAt time.Time
}

// Store persists sessions and their messages. The schema is managed by the
// migrations package; open the database and run migrations before use.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateSession inserts a new session and returns its generated ID.
func (s *Store) CreateSession(ctx context.Context, title, provider, model string) (string, error) {
	id := uuid.NewString()
	query := sq.Insert("sessions").
		Columns("id", "title", "provider", "model", "created_at").
		Values(id, title, provider, model, time.Now().Unix())

	queryStr, args, err := query.ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// AppendMessage saves one message at the end of a session's transcript.
// Structured data and stats are stored as JSON columns; attachment blocks
// are not persisted, only the message text.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, m *llm.Message) error {
	var data any
	if m.Data != nil {
		encoded, err := json.Marshal(m.Data)
		if err != nil {
			return fmt.Errorf("marshal message data: %w", err)
		}
		data = string(encoded)
	}
	var stats any
	if m.Stats != (llm.Stats{}) {
		encoded, err := json.Marshal(m.Stats)
		if err != nil {
			return fmt.Errorf("marshal message stats: %w", err)
		}
		stats = string(encoded)
	}

	query := sq.Insert("messages").
		Columns("id", "session_id", "role", "content", "data", "stats", "created_at").
		Values(uuid.NewString(), sessionID, string(m.Role), m.Text(), data, stats, time.Now().Unix())

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Messages returns the session transcript in chronological order. An unknown
// session is a not-found error.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]llm.Message, error) {
	if err := s.sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}

	query := sq.Select("role", "content", "data", "stats", "created_at").
		From("messages").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("created_at ASC", "rowid ASC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close() //nolint:errcheck // No remedy for rows close errors

	var messages []llm.Message
	for rows.Next() {
		var (
			role      string
			content   string
			data      sql.NullString
			stats     sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&role, &content, &data, &stats, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		msg := llm.Message{
			Role:    llm.Role(role),
			Content: content,
			Meta:    llm.Metadata{CreatedAt: time.Unix(createdAt, 0)},
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &msg.Data); err != nil {
				return nil, fmt.Errorf("decode message data: %w", err)
			}
		}
		if stats.Valid && stats.String != "" {
			if err := json.Unmarshal([]byte(stats.String), &msg.Stats); err != nil {
				return nil, fmt.Errorf("decode message stats: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	return messages, nil
}

// Sessions lists all sessions, newest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	query := sq.Select("id", "title", "provider", "model", "created_at").
		From("sessions").
		OrderBy("created_at DESC", "rowid DESC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // No remedy for rows close errors

	var sessions []Session
	for rows.Next() {
		var (
			session   Session
			createdAt int64
		)
		if err := rows.Scan(&session.ID, &session.Title, &session.Provider, &session.Model, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session.CreatedAt = time.Unix(createdAt, 0)
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a session and its messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	// Messages go first; SQLite does not enforce the foreign key by default.
	delMessages := sq.Delete("messages").Where(sq.Eq{"session_id": id})
	queryStr, args, err := delMessages.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	delSession := sq.Delete("sessions").Where(sq.Eq{"id": id})
	queryStr, args, err = delSession.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, queryStr, args...)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected == 0 {
		return llm.NewNotFoundError("session %q not found", id)
	}
	return nil
}

func (s *Store) sessionExists(ctx context.Context, id string) error {
	query := sq.Select("id").From("sessions").Where(sq.Eq{"id": id})
	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	var found string
	err = s.db.QueryRowContext(ctx, queryStr, args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return llm.NewNotFoundError("session %q not found", id)
	}
	if err != nil {
		return fmt.Errorf("query session: %w", err)
	}
	return nil
}
