// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists conversations as JSON message arrays and prompt snippets by ID

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Concurrent pipelines write while the sync loop reads; wait instead of failing with SQLITE_BUSY
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			anchor_id  TEXT PRIMARY KEY,
			messages   TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_updated
			ON conversations(updated_at);

		CREATE TABLE IF NOT EXISTS prompts (
			prompt_id  TEXT PRIMARY KEY,
			text       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// CreateConversation inserts a new conversation.
// Returns ErrDuplicateConversation if the anchor is already used.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	messagesJSON, err := encodeMessages(conv.Messages)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}

	query := `
		INSERT INTO conversations (anchor_id, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		conv.AnchorID,
		messagesJSON,
		conv.CreatedAt.UTC().Format(time.RFC3339),
		conv.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "anchor_id", conv.AnchorID, "messages", len(conv.Messages))
	return nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// GetConversation retrieves a conversation by its anchor message ID.
// Returns ErrNotFound if no conversation is anchored there.
func (s *SQLiteStore) GetConversation(ctx context.Context, anchorID string) (*Conversation, error) {
	query := `
		SELECT anchor_id, messages, created_at, updated_at
		FROM conversations
		WHERE anchor_id = ?
	`

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, anchorID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return conv, nil
}

// UpdateConversationMessages replaces the message array of an existing conversation.
// The anchor is never changed. Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) UpdateConversationMessages(ctx context.Context, anchorID string, messages []ChatMessage) error {
	messagesJSON, err := encodeMessages(messages)
	if err != nil {
		return err
	}

	query := `
		UPDATE conversations
		SET messages = ?, updated_at = ?
		WHERE anchor_id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		messagesJSON,
		time.Now().UTC().Format(time.RFC3339),
		anchorID,
	)
	if err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated conversation", "anchor_id", anchorID, "messages", len(messages))
	return nil
}

// ListConversations retrieves conversations ordered by most recent activity.
// If limit is 0 or negative, a default limit of 100 is used.
func (s *SQLiteStore) ListConversations(ctx context.Context, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT anchor_id, messages, created_at, updated_at
		FROM conversations
		ORDER BY updated_at DESC, anchor_id
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		convs = append(convs, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}

	return convs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var conv Conversation
	var messagesJSON, createdAtStr, updatedAtStr string

	if err := row.Scan(&conv.AnchorID, &messagesJSON, &createdAtStr, &updatedAtStr); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(messagesJSON), &conv.Messages); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}

	var err error
	conv.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	conv.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &conv, nil
}

func encodeMessages(messages []ChatMessage) (string, error) {
	if messages == nil {
		messages = []ChatMessage{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("encoding messages: %w", err)
	}
	return string(data), nil
}

// UpsertPrompt creates or replaces a prompt snippet
func (s *SQLiteStore) UpsertPrompt(ctx context.Context, prompt *Prompt) error {
	if prompt.UpdatedAt.IsZero() {
		prompt.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO prompts (prompt_id, text, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(prompt_id) DO UPDATE SET
			text = excluded.text,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		prompt.ID,
		prompt.Text,
		prompt.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting prompt: %w", err)
	}

	s.logger.Debug("upserted prompt", "prompt_id", prompt.ID)
	return nil
}

// ListPrompts returns every prompt snippet ordered by ID
func (s *SQLiteStore) ListPrompts(ctx context.Context) ([]*Prompt, error) {
	query := `
		SELECT prompt_id, text, updated_at
		FROM prompts
		ORDER BY prompt_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying prompts: %w", err)
	}
	defer rows.Close()

	var prompts []*Prompt
	for rows.Next() {
		var p Prompt
		var updatedAtStr string

		if err := rows.Scan(&p.ID, &p.Text, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning prompt row: %w", err)
		}

		p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}

		prompts = append(prompts, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating prompt rows: %w", err)
	}

	return prompts, nil
}

// DeletePrompt removes a prompt snippet.
// Returns ErrNotFound if the prompt doesn't exist.
func (s *SQLiteStore) DeletePrompt(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM prompts WHERE prompt_id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting prompt: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted prompt", "prompt_id", id)
	return nil
}
