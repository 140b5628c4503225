// ABOUTME: Entry point for the kirogpt Matrix bot
// ABOUTME: Wires config, SQLite history, prompt snippets, the completion client and the Matrix bridge

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/kirogpt/internal/completion"
	"github.com/2389/kirogpt/internal/config"
	"github.com/2389/kirogpt/internal/inflight"
	"github.com/2389/kirogpt/internal/matrix"
	"github.com/2389/kirogpt/internal/pipeline"
	"github.com/2389/kirogpt/internal/prompt"
	"github.com/2389/kirogpt/internal/store"
)

const banner = `
    ╭──────────────────────────────────╮
    │                                  │
    │   ╻┏ ╻┏━┓┏━┓┏━╸┏━┓╺┳╸            │
    │   ┣┻┓┃┣┳┛┃ ┃┃╺┓┣━┛ ┃             │
    │   ╹ ╹╹╹┗╸┗━┛┗━┛╹   ╹             │
    │                                  │
    │          kirogpt chat bot        │
    │                                  │
    ╰──────────────────────────────────╯
`

// getConfigPath returns the path to the kirogpt config file.
// Priority: KIROGPT_CONFIG env var > XDG_CONFIG_HOME/kirogpt/config.toml > ~/.config/kirogpt/config.toml
func getConfigPath() string {
	if envPath := os.Getenv("KIROGPT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "kirogpt", "config.toml")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.NewSQLiteStore(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer db.Close()

	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return err
	}
	if missing := snapshot.Missing(prompt.RequiredSnippets...); len(missing) > 0 {
		logger.Warn("prompt snippets missing, messages will fail until they are imported",
			"missing", strings.Join(missing, ","),
		)
	}

	mx, err := matrix.NewClient(cfg.Matrix.Homeserver, cfg.Matrix.UserID, cfg.Matrix.AccessToken, logger)
	if err != nil {
		return err
	}
	botID, err := mx.Identify(ctx)
	if err != nil {
		return fmt.Errorf("identifying bot account: %w", err)
	}

	completer := completion.New(completion.Config{
		APIKey:  cfg.Completion.APIKey,
		BaseURL: cfg.Completion.BaseURL,
		Model:   cfg.Completion.Model,
	}, logger)

	p := pipeline.New(pipeline.Config{
		BotID:          botID,
		Model:          completer.Model(),
		TypingInterval: cfg.Bot.TypingInterval,
		WarningTTL:     cfg.Bot.WarningTTL,
	}, pipeline.Deps{
		Registry:  inflight.New(),
		Store:     db,
		Templater: prompt.NewEngine(snapshot, mx.MentionTokens()...),
		Completer: completer,
		Messenger: mx,
	}, logger)

	bridge := matrix.NewBridge(mx, p, matrix.BridgeOptions{
		AllowedRooms: cfg.Matrix.AllowedRooms,
	}, logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:     %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Homeserver: %s\n", cfg.Matrix.Homeserver)
	green.Print("    ▶ ")
	fmt.Printf("User:       %s\n", botID)
	green.Print("    ▶ ")
	fmt.Printf("Database:   %s\n", cfg.DatabasePath())
	green.Print("    ▶ ")
	fmt.Printf("Model:      %s\n", completer.Model())
	if len(cfg.Matrix.AllowedRooms) > 0 {
		green.Print("    ▶ ")
		fmt.Printf("Rooms:      %s\n", strings.Join(cfg.Matrix.AllowedRooms, ", "))
	}
	fmt.Println()

	logger.Info("ready",
		"user_id", botID,
		"snippets", snapshot.Len(),
		"model", completer.Model(),
	)

	return bridge.Run(ctx)
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
