// ABOUTME: Matrix sync loop for kirogpt
// ABOUTME: Filters room messages, converts them to pipeline events and dispatches each in its own goroutine

package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"

	"github.com/2389/kirogpt/internal/pipeline"
)

// PongReply answers the ping command.
const PongReply = "Pong!"

// networkTimeout bounds Matrix calls made outside a pipeline run.
const networkTimeout = 10 * time.Second

// Handler processes one converted message.
type Handler interface {
	Handle(ctx context.Context, ev pipeline.Event) (pipeline.Kind, error)
}

// BridgeOptions tunes which messages reach the handler.
type BridgeOptions struct {
	// AllowedRooms restricts handling to these room IDs. Empty allows all rooms.
	AllowedRooms []string
}

// Bridge feeds Matrix room messages into a Handler.
type Bridge struct {
	client  *Client
	handler Handler
	opts    BridgeOptions
	seen    *seenEvents
	logger  *slog.Logger

	// ctx is the parent context for message goroutines
	ctx     context.Context
	workers sync.WaitGroup
}

// NewBridge creates a bridge. The client should already be identified.
func NewBridge(client *Client, handler Handler, opts BridgeOptions, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		client:  client,
		handler: handler,
		opts:    opts,
		seen:    newSeenEvents(seenTTL, seenMaxSize),
		logger:  logger.With("component", "bridge"),
		ctx:     context.Background(),
	}
}

// Run syncs with the homeserver until ctx is cancelled, then waits for in-flight
// messages to finish. Cancelling ctx stops intake only; started pipelines run to
// completion or failure.
func (b *Bridge) Run(ctx context.Context) error {
	mx := b.client.mx
	if mx == nil {
		return errors.New("bridge requires a connected matrix client")
	}

	syncer, ok := mx.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", mx.Syncer)
	}
	// Skip the backlog delivered by the first sync.
	syncer.OnSync(mx.DontProcessOldEvents)
	syncer.OnEventType(event.EventMessage, b.handleMessageEvent)

	g, gctx := errgroup.WithContext(ctx)
	b.ctx = gctx

	b.logger.Info("connecting to matrix homeserver", "user_id", b.client.UserID())

	g.Go(func() error {
		err := mx.SyncWithContext(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("matrix sync failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		b.logger.Info("shutting down matrix bridge")
		mx.StopSync()
		return nil
	})

	err := g.Wait()
	b.workers.Wait()
	return err
}

// handleMessageEvent filters sync events and dispatches the ones worth handling.
func (b *Bridge) handleMessageEvent(_ context.Context, evt *event.Event) {
	if evt.Sender == b.client.userID {
		return
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return
	}

	// Edits arrive as new events; only original messages are handled.
	if content.RelatesTo != nil && content.RelatesTo.Type == event.RelReplace {
		return
	}

	if !b.isRoomAllowed(evt.RoomID.String()) {
		b.logger.Debug("ignoring message from non-allowed room", "room", evt.RoomID.String())
		return
	}

	if b.seen.checkAndMark(evt.ID.String()) {
		b.logger.Debug("dropping redelivered event", "event_id", evt.ID.String())
		return
	}

	// Started runs finish even after shutdown begins; Run drains them.
	ctx := context.WithoutCancel(b.ctx)
	b.workers.Add(1)
	go func() {
		defer b.workers.Done()
		b.processEvent(ctx, evt, content)
	}()
}

// processEvent converts and hands one message to the handler.
func (b *Bridge) processEvent(ctx context.Context, evt *event.Event, content *event.MessageEventContent) {
	roomID := evt.RoomID.String()

	var referencedSender string
	if replyTo := content.RelatesTo.GetReplyTo(); replyTo != "" {
		sender, err := b.client.EventSender(ctx, roomID, replyTo.String())
		if err != nil {
			// Treated as a reply to an unknown author.
			b.logger.Warn("failed to fetch replied-to event", "room", roomID, "event_id", replyTo.String(), "error", err)
		}
		referencedSender = sender
	}

	ev := toPipelineEvent(evt, content, referencedSender)

	kind, err := b.handler.Handle(ctx, ev)
	if err != nil {
		b.logger.Error("message handling failed",
			"room", roomID,
			"event_id", ev.ID,
			"kind", kind.String(),
			"error", err,
		)
		return
	}

	if kind == pipeline.KindPing {
		sendCtx, cancel := context.WithTimeout(ctx, networkTimeout)
		defer cancel()
		if _, err := b.client.Reply(sendCtx, roomID, ev.ID, PongReply); err != nil {
			b.logger.Error("failed to answer ping", "room", roomID, "error", err)
		}
	}
}

// isRoomAllowed checks if the room is in the allowed list.
func (b *Bridge) isRoomAllowed(roomID string) bool {
	if len(b.opts.AllowedRooms) == 0 {
		return true
	}
	return slices.Contains(b.opts.AllowedRooms, roomID)
}

// toPipelineEvent maps a Matrix message onto the pipeline's event shape.
func toPipelineEvent(evt *event.Event, content *event.MessageEventContent, referencedSender string) pipeline.Event {
	ev := pipeline.Event{
		ID:        evt.ID.String(),
		AuthorID:  evt.Sender.String(),
		ChannelID: evt.RoomID.String(),
		Content:   content.Body,
	}

	if content.Mentions != nil {
		for _, userID := range content.Mentions.UserIDs {
			ev.Mentions = append(ev.Mentions, userID.String())
		}
	}

	if replyTo := content.RelatesTo.GetReplyTo(); replyTo != "" {
		ev.Content = stripReplyFallback(ev.Content)
		ev.Referenced = &pipeline.ReferencedMessage{
			ID:       replyTo.String(),
			AuthorID: referencedSender,
		}
	}

	return ev
}

// stripReplyFallback removes the quoted "> <@user> ..." block some clients prepend
// to reply bodies.
func stripReplyFallback(body string) string {
	if !strings.HasPrefix(body, "> ") {
		return body
	}
	lines := strings.Split(body, "\n")
	i := 0
	for i < len(lines) && strings.HasPrefix(lines[i], ">") {
		i++
	}
	if i < len(lines) && lines[i] == "" {
		i++
	}
	return strings.Join(lines[i:], "\n")
}

var _ pipeline.Messenger = (*Client)(nil)
