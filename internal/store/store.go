// ABOUTME: Store interface and data types for kirogpt persistence
// ABOUTME: Defines Conversation, ChatMessage and Prompt plus the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when a conversation with the same anchor already exists
var ErrDuplicateConversation = errors.New("conversation already exists")

// Role is the author of a chat message as seen by the completion service
type Role string

// Role constants
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a conversation
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the history behind one bot reply. AnchorID is the ID of the
// bot message that users reply to in order to continue it.
type Conversation struct {
	AnchorID  string
	Messages  []ChatMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Prompt is a named snippet that user text can expand into
type Prompt struct {
	ID        string
	Text      string
	UpdatedAt time.Time
}

// Store defines the interface for conversation and prompt persistence
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, anchorID string) (*Conversation, error)
	UpdateConversationMessages(ctx context.Context, anchorID string, messages []ChatMessage) error
	ListConversations(ctx context.Context, limit int) ([]*Conversation, error)

	// Prompts
	UpsertPrompt(ctx context.Context, prompt *Prompt) error
	ListPrompts(ctx context.Context) ([]*Prompt, error)
	DeletePrompt(ctx context.Context, id string) error

	// Close releases any resources held by the store
	Close() error
}
