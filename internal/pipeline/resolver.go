// ABOUTME: Classifies incoming events as new, continuation, ping or ignore
// ABOUTME: Takes the in-flight lease and loads prior history for continuations

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/kirogpt/internal/inflight"
	"github.com/2389/kirogpt/internal/store"
)

// Resolver decides what an Event means for the bot.
type Resolver struct {
	botID    string
	registry *inflight.Registry
	store    HistoryStore
	logger   *slog.Logger
}

// NewResolver creates a resolver for the bot with the given user ID.
func NewResolver(botID string, registry *inflight.Registry, history HistoryStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		botID:    botID,
		registry: registry,
		store:    history,
		logger:   logger,
	}
}

// Resolve classifies ev. For NEW and CONTINUATION the returned resolution holds
// a lease the caller must release. On error no lease is held.
func (r *Resolver) Resolve(ctx context.Context, ev Event) (*Resolution, error) {
	if ev.AuthorID == r.botID {
		return ignored(), nil
	}

	if ref := ev.Referenced; ref != nil && ref.AuthorID == r.botID {
		return r.resolveReply(ctx, ref.ID)
	}

	if r.mentionsBot(ev.Mentions) {
		lease, ok := r.registry.Acquire(ev.ID)
		if !ok {
			r.logger.Debug("message already in flight", "message_id", ev.ID)
			return ignored(), nil
		}
		return &Resolution{Kind: KindNew, Lease: lease}, nil
	}

	if ev.Content == PingCommand {
		return &Resolution{Kind: KindPing}, nil
	}

	return ignored(), nil
}

func (r *Resolver) resolveReply(ctx context.Context, anchorID string) (*Resolution, error) {
	lease, ok := r.registry.Acquire(anchorID)
	if !ok {
		r.logger.Debug("conversation already in flight", "anchor_id", anchorID)
		return ignored(), nil
	}

	conv, err := r.store.GetConversation(ctx, anchorID)
	if errors.Is(err, store.ErrNotFound) {
		lease.Release()
		r.logger.Debug("reply to bot message without history", "anchor_id", anchorID)
		return ignored(), nil
	}
	if err != nil {
		lease.Release()
		return nil, fmt.Errorf("loading conversation %s: %w", anchorID, err)
	}

	return &Resolution{
		Kind:     KindContinuation,
		Lease:    lease,
		History:  conv.Messages,
		AnchorID: anchorID,
	}, nil
}

func ignored() *Resolution {
	return &Resolution{Kind: KindIgnore}
}

func (r *Resolver) mentionsBot(mentions []string) bool {
	for _, m := range mentions {
		if m == r.botID {
			return true
		}
	}
	return false
}
