// ABOUTME: Tests for event classification in the resolver
// ABOUTME: Checks IGNORE results are independent values across events

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/kirogpt/internal/inflight"
	"github.com/2389/kirogpt/internal/store"
)

func TestResolver_IgnoreResultsAreIndependent(t *testing.T) {
	r := NewResolver(botID, inflight.New(), store.NewMockStore(), nil)
	ctx := context.Background()

	first, err := r.Resolve(ctx, Event{ID: "$1", AuthorID: userID, ChannelID: roomID, Content: "hello"})
	require.NoError(t, err)
	require.Equal(t, KindIgnore, first.Kind)

	first.Kind = KindNew
	first.AnchorID = "$leaked"

	second, err := r.Resolve(ctx, Event{ID: "$2", AuthorID: botID, ChannelID: roomID, Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, KindIgnore, second.Kind)
	assert.Empty(t, second.AnchorID)
	assert.Nil(t, second.Lease)
	assert.NotSame(t, first, second)
}
