// ABOUTME: Startup loading of prompt snippets from the store
// ABOUTME: Builds the immutable snapshot the prompt engine renders with

package main

import (
	"context"
	"fmt"

	"github.com/2389/kirogpt/internal/prompt"
	"github.com/2389/kirogpt/internal/store"
)

type promptLister interface {
	ListPrompts(ctx context.Context) ([]*store.Prompt, error)
}

// loadSnapshot reads every stored prompt once. Later edits need a restart.
func loadSnapshot(ctx context.Context, s promptLister) (prompt.Snapshot, error) {
	prompts, err := s.ListPrompts(ctx)
	if err != nil {
		return prompt.Snapshot{}, fmt.Errorf("loading prompt snippets: %w", err)
	}

	snippets := make([]prompt.Snippet, 0, len(prompts))
	for _, p := range prompts {
		snippets = append(snippets, prompt.Snippet{ID: p.ID, Text: p.Text})
	}
	return prompt.NewSnapshot(snippets), nil
}
