// ABOUTME: Tests for the Matrix bridge
// ABOUTME: Covers event filtering, conversion to pipeline events and ping replies

package matrix

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/kirogpt/internal/pipeline"
)

const botID = "@kiro:example.org"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingHandler struct {
	mu     sync.Mutex
	events []pipeline.Event
	kind   pipeline.Kind
	err    error
}

func (h *recordingHandler) Handle(_ context.Context, ev pipeline.Event) (pipeline.Kind, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return h.kind, h.err
}

func (h *recordingHandler) received() []pipeline.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]pipeline.Event(nil), h.events...)
}

func newTestBridge(api *fakeAPI, h Handler, opts BridgeOptions) *Bridge {
	return NewBridge(newTestClient(api, botID), h, opts, discardLogger())
}

func textEvent(eventID, sender, room string, content *event.MessageEventContent) *event.Event {
	if content.MsgType == "" {
		content.MsgType = event.MsgText
	}
	return &event.Event{
		ID:      id.EventID(eventID),
		Sender:  id.UserID(sender),
		RoomID:  id.RoomID(room),
		Type:    event.EventMessage,
		Content: event.Content{Parsed: content},
	}
}

func TestBridge_DispatchesMention(t *testing.T) {
	api := newFakeAPI()
	h := &recordingHandler{kind: pipeline.KindNew}
	b := newTestBridge(api, h, BridgeOptions{})

	b.handleMessageEvent(context.Background(), textEvent("$1", "@alice:example.org", "!room:example.org",
		&event.MessageEventContent{
			Body:     botID + ": hello",
			Mentions: &event.Mentions{UserIDs: []id.UserID{botID}},
		}))
	b.workers.Wait()

	got := h.received()
	require.Len(t, got, 1)
	assert.Equal(t, pipeline.Event{
		ID:        "$1",
		AuthorID:  "@alice:example.org",
		ChannelID: "!room:example.org",
		Content:   botID + ": hello",
		Mentions:  []string{botID},
	}, got[0])
}

func TestBridge_ResolvesReplySender(t *testing.T) {
	api := newFakeAPI()
	api.events["$anchor"] = &event.Event{ID: "$anchor", Sender: botID}
	h := &recordingHandler{kind: pipeline.KindContinuation}
	b := newTestBridge(api, h, BridgeOptions{})

	content := &event.MessageEventContent{
		Body:      "> <@kiro:example.org> earlier answer\n\nand then?",
		RelatesTo: &event.RelatesTo{InReplyTo: &event.InReplyTo{EventID: "$anchor"}},
	}
	b.handleMessageEvent(context.Background(), textEvent("$2", "@alice:example.org", "!room:example.org", content))
	b.workers.Wait()

	got := h.received()
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Referenced)
	assert.Equal(t, "$anchor", got[0].Referenced.ID)
	assert.Equal(t, botID, got[0].Referenced.AuthorID)
	assert.Equal(t, "and then?", got[0].Content)
}

func TestBridge_UnknownReplyTargetStillDispatched(t *testing.T) {
	api := newFakeAPI()
	h := &recordingHandler{kind: pipeline.KindIgnore}
	b := newTestBridge(api, h, BridgeOptions{})

	content := &event.MessageEventContent{
		Body:      "what?",
		RelatesTo: &event.RelatesTo{InReplyTo: &event.InReplyTo{EventID: "$gone"}},
	}
	b.handleMessageEvent(context.Background(), textEvent("$3", "@alice:example.org", "!room:example.org", content))
	b.workers.Wait()

	got := h.received()
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Referenced)
	assert.Empty(t, got[0].Referenced.AuthorID)
}

func TestBridge_Filters(t *testing.T) {
	tests := []struct {
		name string
		opts BridgeOptions
		evt  *event.Event
	}{
		{
			name: "own message",
			evt:  textEvent("$1", botID, "!room:example.org", &event.MessageEventContent{Body: "hi"}),
		},
		{
			name: "notice",
			evt:  textEvent("$1", "@alice:example.org", "!room:example.org", &event.MessageEventContent{MsgType: event.MsgNotice, Body: "hi"}),
		},
		{
			name: "edit",
			evt: textEvent("$1", "@alice:example.org", "!room:example.org", &event.MessageEventContent{
				Body:      "* hi",
				RelatesTo: &event.RelatesTo{Type: event.RelReplace, EventID: "$0"},
			}),
		},
		{
			name: "room not allowed",
			opts: BridgeOptions{AllowedRooms: []string{"!other:example.org"}},
			evt:  textEvent("$1", "@alice:example.org", "!room:example.org", &event.MessageEventContent{Body: "hi"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{}
			b := newTestBridge(newFakeAPI(), h, tt.opts)

			b.handleMessageEvent(context.Background(), tt.evt)
			b.workers.Wait()

			assert.Empty(t, h.received())
		})
	}
}

func TestBridge_AllowedRoomPasses(t *testing.T) {
	h := &recordingHandler{}
	b := newTestBridge(newFakeAPI(), h, BridgeOptions{AllowedRooms: []string{"!room:example.org"}})

	b.handleMessageEvent(context.Background(), textEvent("$1", "@alice:example.org", "!room:example.org", &event.MessageEventContent{Body: "hi"}))
	b.workers.Wait()

	assert.Len(t, h.received(), 1)
}

func TestBridge_AnswersPing(t *testing.T) {
	api := newFakeAPI()
	h := &recordingHandler{kind: pipeline.KindPing}
	b := newTestBridge(api, h, BridgeOptions{})

	b.handleMessageEvent(context.Background(), textEvent("$ping", "@alice:example.org", "!room:example.org", &event.MessageEventContent{Body: "!ping"}))
	b.workers.Wait()

	sent := api.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, PongReply, sent[0].content.Body)
	assert.Equal(t, id.EventID("$ping"), sent[0].content.RelatesTo.GetReplyTo())
}

func TestBridge_HandlerErrorSendsNothing(t *testing.T) {
	api := newFakeAPI()
	h := &recordingHandler{kind: pipeline.KindNew, err: errors.New("boom")}
	b := newTestBridge(api, h, BridgeOptions{})

	b.handleMessageEvent(context.Background(), textEvent("$1", "@alice:example.org", "!room:example.org", &event.MessageEventContent{Body: "hi"}))
	b.workers.Wait()

	assert.Empty(t, api.sentMessages())
}

func TestBridge_RunRequiresClient(t *testing.T) {
	b := newTestBridge(newFakeAPI(), &recordingHandler{}, BridgeOptions{})
	assert.Error(t, b.Run(context.Background()))
}

func TestStripReplyFallback(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no fallback", in: "hello", want: "hello"},
		{name: "single quoted line", in: "> <@a:b> hi\n\nreply", want: "reply"},
		{name: "multi line quote", in: "> <@a:b> one\n> two\n\nreply\nmore", want: "reply\nmore"},
		{name: "quote only", in: "> quoted", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripReplyFallback(tt.in))
		})
	}
}

func TestBridge_DropsRedeliveredEvent(t *testing.T) {
	h := &recordingHandler{kind: pipeline.KindNew}
	b := newTestBridge(newFakeAPI(), h, BridgeOptions{})

	evt := textEvent("$dup", "@alice:example.org", "!room:example.org", &event.MessageEventContent{Body: "hi"})
	b.handleMessageEvent(context.Background(), evt)
	b.handleMessageEvent(context.Background(), evt)
	b.workers.Wait()

	assert.Len(t, h.received(), 1)
}
