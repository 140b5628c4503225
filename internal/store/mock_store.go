// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and counts writes for assertions

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // keyed by anchor ID
	prompts       map[string]*Prompt       // keyed by prompt ID

	creates int
	updates int

	// Err, when set, is returned by every conversation method.
	Err error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
		prompts:       make(map[string]*Prompt),
	}
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.conversations[conv.AnchorID]; exists {
		return ErrDuplicateConversation
	}

	c := copyConversation(conv)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	m.conversations[c.AnchorID] = c
	m.creates++
	return nil
}

// GetConversation retrieves a conversation by anchor ID.
func (m *MockStore) GetConversation(ctx context.Context, anchorID string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	c, ok := m.conversations[anchorID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConversation(c), nil
}

// UpdateConversationMessages replaces the messages of an existing conversation.
func (m *MockStore) UpdateConversationMessages(ctx context.Context, anchorID string, messages []ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	c, ok := m.conversations[anchorID]
	if !ok {
		return ErrNotFound
	}
	c.Messages = append([]ChatMessage(nil), messages...)
	c.UpdatedAt = time.Now().UTC()
	m.updates++
	return nil
}

// ListConversations returns conversations, most recently updated first.
func (m *MockStore) ListConversations(ctx context.Context, limit int) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	result := make([]*Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		result = append(result, copyConversation(c))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].AnchorID < result[j].AnchorID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpsertPrompt creates or replaces a prompt.
func (m *MockStore) UpsertPrompt(ctx context.Context, prompt *Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	p := *prompt
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	m.prompts[p.ID] = &p
	return nil
}

// ListPrompts returns all prompts ordered by ID.
func (m *MockStore) ListPrompts(ctx context.Context) ([]*Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	result := make([]*Prompt, 0, len(m.prompts))
	for _, p := range m.prompts {
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// DeletePrompt removes a prompt.
func (m *MockStore) DeletePrompt(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.prompts[id]; !ok {
		return ErrNotFound
	}
	delete(m.prompts, id)
	return nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

// Writes returns how many conversations were created and updated.
func (m *MockStore) Writes() (creates, updates int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creates, m.updates
}

// copyConversation returns a deep copy so callers can't alias stored slices
func copyConversation(c *Conversation) *Conversation {
	cp := *c
	cp.Messages = append([]ChatMessage(nil), c.Messages...)
	return &cp
}

// Verify MockStore implements Store at compile time.
var _ Store = (*MockStore)(nil)
