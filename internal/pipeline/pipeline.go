// ABOUTME: Message pipeline: resolve, template, complete with keepalive, reply, persist
// ABOUTME: Registry leases are released on every exit path via defer

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/kirogpt/internal/completion"
	"github.com/2389/kirogpt/internal/inflight"
	"github.com/2389/kirogpt/internal/prompt"
	"github.com/2389/kirogpt/internal/store"
)

// Defaults for Config.
const (
	DefaultTypingInterval = 5 * time.Second
	DefaultWarningTTL     = 5 * time.Second
)

// NameRequiredWarning is sent when !uwu is used without a quoted name.
const NameRequiredWarning = "You need to provide a name."

// warningDeleteTimeout bounds the call that deletes the warning reply.
const warningDeleteTimeout = 10 * time.Second

// Config holds pipeline settings.
type Config struct {
	BotID          string
	Model          string        // empty lets the Completer pick
	TypingInterval time.Duration // defaults to DefaultTypingInterval
	WarningTTL     time.Duration // defaults to DefaultWarningTTL
}

// Deps are the pipeline's collaborators.
type Deps struct {
	Registry  *inflight.Registry
	Store     HistoryStore
	Templater Templater
	Completer Completer
	Messenger Messenger
}

// Pipeline handles chat events. It is safe for concurrent use; callers run
// one Handle per event in its own goroutine.
type Pipeline struct {
	cfg       Config
	resolver  *Resolver
	store     HistoryStore
	templater Templater
	completer Completer
	messenger Messenger
	logger    *slog.Logger
}

// New creates a pipeline.
func New(cfg Config, deps Deps, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TypingInterval <= 0 {
		cfg.TypingInterval = DefaultTypingInterval
	}
	if cfg.WarningTTL <= 0 {
		cfg.WarningTTL = DefaultWarningTTL
	}
	if deps.Registry == nil {
		deps.Registry = inflight.New()
	}

	logger = logger.With("component", "pipeline")
	return &Pipeline{
		cfg:       cfg,
		resolver:  NewResolver(cfg.BotID, deps.Registry, deps.Store, logger),
		store:     deps.Store,
		templater: deps.Templater,
		completer: deps.Completer,
		messenger: deps.Messenger,
		logger:    logger,
	}
}

// run carries per-event state through the pipeline.
type run struct {
	ev     Event
	res    *Resolution
	state  state
	logger *slog.Logger
}

// Handle runs ev through the pipeline and returns its classification. PING is
// returned without side effects so the caller can answer it.
func (p *Pipeline) Handle(ctx context.Context, ev Event) (Kind, error) {
	r := &run{
		ev:    ev,
		state: stateResolving,
		logger: p.logger.With(
			"run_id", uuid.NewString(),
			"event_id", ev.ID,
			"room", ev.ChannelID,
		),
	}

	res, err := p.resolver.Resolve(ctx, ev)
	if err != nil {
		r.logger.Error("pipeline aborted", "state", r.state.String(), "error", err)
		return KindIgnore, err
	}
	if res.Kind != KindNew && res.Kind != KindContinuation {
		return res.Kind, nil
	}
	r.res = res
	defer res.Lease.Release()

	r.logger = r.logger.With("kind", res.Kind.String())
	r.logger.Info("handling message", "history", len(res.History))

	if err := p.process(ctx, r); err != nil {
		r.logger.Error("pipeline aborted", "state", r.state.String(), "error", err)
		return res.Kind, err
	}
	return res.Kind, nil
}

func (p *Pipeline) process(ctx context.Context, r *run) error {
	r.state = stateTemplating
	text, err := p.templater.Render(r.ev.Content)
	if errors.Is(err, prompt.ErrNameRequired) {
		r.logger.Info("!uwu without a quoted name, warning user")
		return p.warnNameRequired(ctx, r)
	}
	if err != nil {
		return fmt.Errorf("templating: %w", err)
	}

	messages := make([]store.ChatMessage, 0, len(r.res.History)+2)
	messages = append(messages, r.res.History...)
	messages = append(messages, store.ChatMessage{Role: store.RoleUser, Content: text})

	r.state = stateAwaitingCompletion
	ka := startKeepalive(ctx, p.messenger, r.ev.ChannelID, p.cfg.TypingInterval, r.logger)
	defer ka.Stop()

	resp, err := p.completer.Complete(ctx, completion.Request{
		Model:    p.cfg.Model,
		Messages: messages,
	})
	ka.Stop()
	r.res.Lease.Release()
	if err != nil {
		return fmt.Errorf("completion: %w", err)
	}

	reply, err := resp.Reply()
	if err != nil {
		return fmt.Errorf("completion %s: %w", resp.ID, err)
	}

	r.state = stateReplying
	botMsgID, err := p.messenger.Reply(ctx, r.ev.ChannelID, r.ev.ID, reply)
	if err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}

	messages = append(messages, store.ChatMessage{Role: store.RoleAssistant, Content: reply})

	r.state = statePersisting
	if err := p.persist(ctx, r, botMsgID, messages); err != nil {
		return err
	}

	r.state = stateDone
	r.logger.Info("message handled",
		"reply_id", botMsgID,
		"messages", len(messages),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return nil
}

func (p *Pipeline) persist(ctx context.Context, r *run, botMsgID string, messages []store.ChatMessage) error {
	switch r.res.Kind {
	case KindNew:
		err := p.store.CreateConversation(ctx, &store.Conversation{
			AnchorID: botMsgID,
			Messages: messages,
		})
		if err != nil {
			return fmt.Errorf("saving conversation %s: %w", botMsgID, err)
		}
	case KindContinuation:
		if err := p.store.UpdateConversationMessages(ctx, r.res.AnchorID, messages); err != nil {
			return fmt.Errorf("updating conversation %s: %w", r.res.AnchorID, err)
		}
	}
	return nil
}

// warnNameRequired replies with NameRequiredWarning and deletes that reply
// after WarningTTL in the background. Nothing is persisted.
func (p *Pipeline) warnNameRequired(ctx context.Context, r *run) error {
	warningID, err := p.messenger.Reply(ctx, r.ev.ChannelID, r.ev.ID, NameRequiredWarning)
	if err != nil {
		return fmt.Errorf("sending name warning: %w", err)
	}

	go func() {
		timer := time.NewTimer(p.cfg.WarningTTL)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
		}

		delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), warningDeleteTimeout)
		defer cancel()
		if err := p.messenger.Delete(delCtx, r.ev.ChannelID, warningID); err != nil {
			r.logger.Warn("failed to delete name warning", "message_id", warningID, "error", err)
		}
	}()

	return nil
}
