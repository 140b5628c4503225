// ABOUTME: Tests for kirogpt startup helpers
// ABOUTME: Covers config path resolution, logger setup and snippet loading

package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/kirogpt/internal/prompt"
	"github.com/2389/kirogpt/internal/store"
)

func TestGetConfigPath(t *testing.T) {
	t.Run("env var wins", func(t *testing.T) {
		t.Setenv("KIROGPT_CONFIG", "/etc/kirogpt.toml")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		assert.Equal(t, "/etc/kirogpt.toml", getConfigPath())
	})

	t.Run("xdg config home", func(t *testing.T) {
		t.Setenv("KIROGPT_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		assert.Equal(t, filepath.Join("/xdg", "kirogpt", "config.toml"), getConfigPath())
	})

	t.Run("home directory", func(t *testing.T) {
		t.Setenv("KIROGPT_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/kiro")
		assert.Equal(t, filepath.Join("/home/kiro", ".config", "kirogpt", "config.toml"), getConfigPath())
	})
}

func TestSetupLogger(t *testing.T) {
	ctx := context.Background()

	assert.True(t, setupLogger("debug", "text").Enabled(ctx, slog.LevelDebug))
	assert.False(t, setupLogger("warn", "json").Enabled(ctx, slog.LevelInfo))
	assert.True(t, setupLogger("bogus", "text").Enabled(ctx, slog.LevelInfo))
	assert.IsType(t, &slog.JSONHandler{}, setupLogger("info", "json").Handler())
	assert.IsType(t, &slog.TextHandler{}, setupLogger("info", "text").Handler())
}

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	s := store.NewMockStore()
	require.NoError(t, s.UpsertPrompt(ctx, &store.Prompt{ID: prompt.SnippetExpert, Text: "You are an expert."}))
	require.NoError(t, s.UpsertPrompt(ctx, &store.Prompt{ID: prompt.SnippetJB, Text: "Stay in character."}))

	snapshot, err := loadSnapshot(ctx, s)
	require.NoError(t, err)

	assert.Equal(t, 2, snapshot.Len())
	text, ok := snapshot.Lookup(prompt.SnippetExpert)
	assert.True(t, ok)
	assert.Equal(t, "You are an expert.", text)
	assert.Equal(t, []string{prompt.SnippetUwU}, snapshot.Missing(prompt.RequiredSnippets...))
}

func TestLoadSnapshot_StoreError(t *testing.T) {
	s := store.NewMockStore()
	s.Err = errors.New("disk on fire")

	_, err := loadSnapshot(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}
