// ABOUTME: Event, classification and collaborator interfaces for the message pipeline
// ABOUTME: Gateway, completion and store adapters satisfy these interfaces

package pipeline

import (
	"context"

	"github.com/2389/kirogpt/internal/completion"
	"github.com/2389/kirogpt/internal/inflight"
	"github.com/2389/kirogpt/internal/store"
)

// PingCommand is the literal text answered outside the pipeline.
const PingCommand = "!ping"

// Event is an incoming chat message.
type Event struct {
	ID         string
	AuthorID   string
	ChannelID  string
	Content    string
	Mentions   []string
	Referenced *ReferencedMessage // nil unless the message is a reply
}

// ReferencedMessage is the message an Event replies to.
type ReferencedMessage struct {
	ID       string
	AuthorID string
}

// Kind is the classification of an Event.
type Kind int

const (
	KindIgnore Kind = iota
	KindNew
	KindContinuation
	KindPing
)

func (k Kind) String() string {
	switch k {
	case KindNew:
		return "new"
	case KindContinuation:
		return "continuation"
	case KindPing:
		return "ping"
	default:
		return "ignore"
	}
}

// Resolution is the result of classifying an Event. Lease is set for NEW and
// CONTINUATION and must be released by the caller.
type Resolution struct {
	Kind     Kind
	Lease    *inflight.Lease
	History  []store.ChatMessage
	AnchorID string // CONTINUATION only
}

// Messenger is the outgoing side of the chat platform.
type Messenger interface {
	// Reply sends text to the channel as a reply to replyTo and returns the new message ID.
	Reply(ctx context.Context, channelID, replyTo, text string) (string, error)
	// SetTyping turns the typing indicator on or off.
	SetTyping(ctx context.Context, channelID string, typing bool) error
	// Delete removes a message.
	Delete(ctx context.Context, channelID, messageID string) error
}

// Completer issues chat-completion calls.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (*completion.Response, error)
}

// HistoryStore is the conversation persistence the pipeline needs.
type HistoryStore interface {
	GetConversation(ctx context.Context, anchorID string) (*store.Conversation, error)
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	UpdateConversationMessages(ctx context.Context, anchorID string, messages []store.ChatMessage) error
}

// Templater rewrites user text into the prompt sent to the completion service.
type Templater interface {
	Render(text string) (string, error)
}

// state is a pipeline run's position, used in logs.
type state int

const (
	stateResolving state = iota
	stateTemplating
	stateAwaitingCompletion
	stateReplying
	statePersisting
	stateDone
)

func (s state) String() string {
	switch s {
	case stateResolving:
		return "resolving"
	case stateTemplating:
		return "templating"
	case stateAwaitingCompletion:
		return "awaiting_completion"
	case stateReplying:
		return "replying"
	case statePersisting:
		return "persisting"
	default:
		return "done"
	}
}
