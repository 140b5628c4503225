// ABOUTME: Outgoing Matrix operations for kirogpt via mautrix
// ABOUTME: Sends markdown replies, toggles typing, redacts events and resolves reply targets

package matrix

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// typingTimeout is how long the homeserver shows a typing indicator without a refresh.
const typingTimeout = 30 * time.Second

// api is the subset of *mautrix.Client used by Client.
type api interface {
	SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, contentJSON interface{}, extra ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error)
	UserTyping(ctx context.Context, roomID id.RoomID, typing bool, timeout time.Duration) (*mautrix.RespTyping, error)
	RedactEvent(ctx context.Context, roomID id.RoomID, eventID id.EventID, extra ...mautrix.ReqRedact) (*mautrix.RespSendEvent, error)
	GetEvent(ctx context.Context, roomID id.RoomID, eventID id.EventID) (*event.Event, error)
	Whoami(ctx context.Context) (*mautrix.RespWhoami, error)
	GetOwnDisplayName(ctx context.Context) (*mautrix.RespUserDisplayName, error)
}

// Client performs Matrix calls on behalf of the bot.
type Client struct {
	mx          *mautrix.Client // nil in tests
	api         api
	userID      id.UserID
	displayName string
	logger      *slog.Logger
}

// NewClient creates a Matrix client. userID may be empty; Identify fills it in.
func NewClient(homeserver, userID, accessToken string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mx, err := mautrix.NewClient(homeserver, id.UserID(userID), accessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	return &Client{
		mx:     mx,
		api:    mx,
		userID: id.UserID(userID),
		logger: logger.With("component", "matrix"),
	}, nil
}

// Identify asks the homeserver who the access token belongs to and records it.
func (c *Client) Identify(ctx context.Context) (string, error) {
	resp, err := c.api.Whoami(ctx)
	if err != nil {
		return "", fmt.Errorf("whoami: %w", err)
	}
	if c.userID != "" && c.userID != resp.UserID {
		c.logger.Warn("configured user_id differs from token owner",
			"configured", c.userID.String(),
			"actual", resp.UserID.String(),
		)
	}
	c.userID = resp.UserID
	if c.mx != nil {
		c.mx.UserID = resp.UserID
	}

	// Pills put the display name in the body; without it only the raw ID is stripped.
	name, err := c.api.GetOwnDisplayName(ctx)
	if err != nil {
		c.logger.Warn("failed to fetch display name", "error", err)
	} else {
		c.displayName = name.DisplayName
	}
	return resp.UserID.String(), nil
}

// UserID returns the bot's Matrix user ID.
func (c *Client) UserID() string {
	return c.userID.String()
}

// DisplayName returns the bot's display name, empty if unknown.
func (c *Client) DisplayName() string {
	return c.displayName
}

// MentionTokens are the texts that stand for the bot in a message body: the
// user ID and, when set, the display name clients render pills with.
func (c *Client) MentionTokens() []string {
	tokens := []string{c.userID.String()}
	if c.displayName != "" && c.displayName != c.userID.String() {
		tokens = append(tokens, c.displayName)
	}
	return tokens
}

// Reply sends text to a room as a reply to another event and returns the new event ID.
func (c *Client) Reply(ctx context.Context, channelID, replyTo, text string) (string, error) {
	content := textContent(text)
	if replyTo != "" {
		content.RelatesTo = &event.RelatesTo{
			InReplyTo: &event.InReplyTo{EventID: id.EventID(replyTo)},
		}
	}
	return c.send(ctx, id.RoomID(channelID), content)
}

// SendText sends text to a room without a reply relation.
func (c *Client) SendText(ctx context.Context, channelID, text string) (string, error) {
	return c.send(ctx, id.RoomID(channelID), textContent(text))
}

func (c *Client) send(ctx context.Context, roomID id.RoomID, content *event.MessageEventContent) (string, error) {
	resp, err := c.api.SendMessageEvent(ctx, roomID, event.EventMessage, content,
		mautrix.ReqSendEvent{TransactionID: "kirogpt-" + uuid.NewString()})
	if err != nil {
		return "", fmt.Errorf("sending message to %s: %w", roomID, err)
	}
	return resp.EventID.String(), nil
}

// SetTyping turns the typing indicator on or off.
func (c *Client) SetTyping(ctx context.Context, channelID string, typing bool) error {
	var timeout time.Duration
	if typing {
		timeout = typingTimeout
	}
	if _, err := c.api.UserTyping(ctx, id.RoomID(channelID), typing, timeout); err != nil {
		return fmt.Errorf("setting typing in %s: %w", channelID, err)
	}
	return nil
}

// Delete redacts a message.
func (c *Client) Delete(ctx context.Context, channelID, messageID string) error {
	if _, err := c.api.RedactEvent(ctx, id.RoomID(channelID), id.EventID(messageID)); err != nil {
		return fmt.Errorf("redacting %s: %w", messageID, err)
	}
	return nil
}

// EventSender returns the sender of an event in a room.
func (c *Client) EventSender(ctx context.Context, channelID, eventID string) (string, error) {
	evt, err := c.api.GetEvent(ctx, id.RoomID(channelID), id.EventID(eventID))
	if err != nil {
		return "", fmt.Errorf("fetching event %s: %w", eventID, err)
	}
	return evt.Sender.String(), nil
}

// textContent builds an m.text message, adding an HTML body when markdown renders to
// something other than a single plain paragraph.
func textContent(text string) *event.MessageEventContent {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}
	if html, ok := renderMarkdown(text); ok {
		content.Format = event.FormatHTML
		content.FormattedBody = html
	}
	return content
}

// renderMarkdown converts markdown to HTML. ok is false when the result carries no
// formatting beyond a paragraph wrapper, so plain replies stay plain.
func renderMarkdown(text string) (string, bool) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return "", false
	}
	html := bytes.TrimSpace(buf.Bytes())
	inner := bytes.TrimSuffix(bytes.TrimPrefix(html, []byte("<p>")), []byte("</p>"))
	if !bytes.ContainsAny(inner, "<&") && len(inner) == len(html)-len("<p></p>") {
		return "", false
	}
	return string(html), true
}
