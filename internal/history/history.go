// Package history persists conversation turns and reads back the recent
// window used to ground follow-up questions.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Roles recorded for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in a conversation, oldest-first when returned in a
// window.
type Turn struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store reads and writes conversation turns.
// Store is safe for concurrent use.
type Store struct {
	db     Querier
	logger *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(db Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// EnsureConversation registers the conversation id if it is not yet known.
// Re-registering an existing conversation is a no-op.
func (s *Store) EnsureConversation(ctx context.Context, conversationID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO chatbot_conversations (conversation_id)
		VALUES ($1)
		ON CONFLICT (conversation_id) DO NOTHING`,
		conversationID)
	if err != nil {
		return fmt.Errorf("ensuring conversation %s: %w", conversationID, err)
	}
	return nil
}

// SaveTurn appends one turn to the conversation. The caller decides whether
// a failure here is fatal; replying to the user does not depend on it.
func (s *Store) SaveTurn(ctx context.Context, conversationID, role, content, clientIP string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_messages (conversation_id, role, content, client_ip)
		VALUES ($1, $2, $3, NULLIF($4, ''))`,
		conversationID, role, content, clientIP)
	if err != nil {
		return fmt.Errorf("saving %s turn: %w", role, err)
	}
	return nil
}

// GetRecent returns up to limit most recent turns of the conversation,
// oldest-first so they can be rendered top-down.
func (s *Store) GetRecent(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	rows, err := s.db.Query(ctx, `
		SELECT role, content, created_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", conversationID, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}

	// The query walks newest-first to honor the limit; flip back to
	// chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
