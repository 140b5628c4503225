// ABOUTME: Tests for the completion client against an httptest server
// ABOUTME: Verifies request shape, bearer auth, response mapping and error propagation

package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/kirogpt/internal/store"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestServer(t *testing.T, status int, body string, captured *capturedRequest, auth *string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-3.5-turbo",
	"choices": [
		{"index": 0, "message": {"role": "assistant", "content": "first"}, "finish_reason": "stop"},
		{"index": 1, "message": {"role": "assistant", "content": "last"}, "finish_reason": "stop"}
	],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestComplete_Success(t *testing.T) {
	var captured capturedRequest
	var auth string
	srv := newTestServer(t, http.StatusOK, okBody, &captured, &auth)

	c := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"}, nil)

	resp, err := c.Complete(context.Background(), Request{
		Messages: []store.ChatMessage{
			{Role: store.RoleUser, Content: "hello"},
			{Role: store.RoleAssistant, Content: "hi"},
			{Role: store.RoleUser, Content: "again"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, DefaultModel, captured.Model)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "again", captured.Messages[2].Content)

	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, int64(1700000000), resp.Created)
	require.Len(t, resp.Choices, 2)
	assert.Equal(t, "stop", resp.Choices[1].FinishReason)
	assert.Equal(t, Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, resp.Usage)

	reply, err := resp.Reply()
	require.NoError(t, err)
	assert.Equal(t, "last", reply, "the last choice wins")
}

func TestComplete_ModelOverride(t *testing.T) {
	var captured capturedRequest
	srv := newTestServer(t, http.StatusOK, okBody, &captured, nil)

	c := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"}, nil)
	assert.Equal(t, "gpt-4o-mini", c.Model())

	_, err := c.Complete(context.Background(), Request{
		Messages: []store.ChatMessage{{Role: store.RoleUser, Content: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", captured.Model)
}

func TestComplete_HTTPError(t *testing.T) {
	srv := newTestServer(t, http.StatusUnauthorized,
		`{"error": {"message": "bad key", "type": "invalid_request_error"}}`, nil, nil)

	c := New(Config{APIKey: "sk-bad", BaseURL: srv.URL + "/v1"}, nil)

	_, err := c.Complete(context.Background(), Request{
		Messages: []store.ChatMessage{{Role: store.RoleUser, Content: "x"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating chat completion")
}

func TestComplete_DecodeError(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `not json`, nil, nil)

	c := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, nil)

	_, err := c.Complete(context.Background(), Request{
		Messages: []store.ChatMessage{{Role: store.RoleUser, Content: "x"}},
	})
	assert.Error(t, err)
}

func TestResponse_ReplyEmpty(t *testing.T) {
	_, err := (&Response{}).Reply()
	assert.ErrorIs(t, err, ErrEmptyChoices)
}
