// ABOUTME: Test doubles for the pipeline's messenger and completer
// ABOUTME: Record calls so tests can assert on replies, typing and deletions

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/2389/kirogpt/internal/completion"
	"github.com/2389/kirogpt/internal/store"
)

type sentReply struct {
	ChannelID string
	ReplyTo   string
	Text      string
	ID        string
}

type fakeMessenger struct {
	mu       sync.Mutex
	replies  []sentReply
	typing   []bool
	deleted  []string
	next     int
	replyErr error

	deletedCh chan string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{deletedCh: make(chan string, 10)}
}

func (f *fakeMessenger) Reply(ctx context.Context, channelID, replyTo, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.replyErr != nil {
		return "", f.replyErr
	}
	f.next++
	id := fmt.Sprintf("$bot-%d", f.next)
	f.replies = append(f.replies, sentReply{ChannelID: channelID, ReplyTo: replyTo, Text: text, ID: id})
	return id, nil
}

func (f *fakeMessenger) SetTyping(ctx context.Context, channelID string, typing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, typing)
	return nil
}

func (f *fakeMessenger) Delete(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, messageID)
	f.mu.Unlock()
	f.deletedCh <- messageID
	return nil
}

func (f *fakeMessenger) Replies() []sentReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentReply(nil), f.replies...)
}

func (f *fakeMessenger) Typing() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.typing...)
}

type fakeCompleter struct {
	mu       sync.Mutex
	requests []completion.Request

	reply string
	resp  *completion.Response // overrides reply when set
	err   error

	called  chan struct{} // receives once per call, if non-nil
	release chan struct{} // call blocks until closed, if non-nil
}

func (f *fakeCompleter) Complete(ctx context.Context, req completion.Request) (*completion.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.called != nil {
		f.called <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}

	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &completion.Response{
		ID: "chatcmpl-test",
		Choices: []completion.Choice{{
			Message: store.ChatMessage{Role: store.RoleAssistant, Content: f.reply},
		}},
	}, nil
}

func (f *fakeCompleter) Requests() []completion.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]completion.Request(nil), f.requests...)
}
