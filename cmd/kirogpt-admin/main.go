// ABOUTME: Admin CLI for kirogpt's SQLite store
// ABOUTME: Imports, lists and deletes prompt snippets and inspects stored conversations

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/kirogpt/internal/config"
	"github.com/2389/kirogpt/internal/store"
)

const banner = `
 _    _                         _                 _           _
| | _(_)_ __ ___   __ _ _ __ | |_       __ _  __| |_ __ ___ (_)_ __
| |/ / | '__/ _ \ / _' | '_ \| __|____ / _' |/ _' | '_ ' _ \| | '_ \
|   <| | | | (_) | (_| | |_) | ||_____| (_| | (_| | | | | | | | | | |
|_|\_\_|_|  \___/ \__, | .__/ \__|     \__,_|\__,_|_| |_| |_|_|_| |_|
                  |___/|_|
`

const usage = `Usage: kirogpt-admin [-db URL] <command> [args]

Commands:
  prompts import <file.yaml>   Create or replace prompt snippets from a YAML file
  prompts list                 List stored prompt snippets
  prompts delete <id>          Delete a prompt snippet
  conversations [limit]        List recent conversations (default 20)
  conversation <anchorId>      Show one conversation's messages
`

const defaultConversationLimit = 20

var errUsage = errors.New("invalid usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("kirogpt-admin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dbURL := fs.String("db", os.Getenv("DATABASE_URL"), "Database URL or SQLite path")
	quiet := fs.Bool("q", false, "Suppress the banner")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if fs.NArg() == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	if *dbURL == "" {
		return fmt.Errorf("no database: pass -db or set DATABASE_URL")
	}

	cfg := config.Config{Database: config.DatabaseConfig{URL: *dbURL}}
	s, err := store.NewSQLiteStore(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	if !*quiet {
		color.New(color.FgCyan).Fprint(out, banner)
		fmt.Fprintln(out)
	}

	return dispatch(ctx, s, fs.Args(), out)
}

// dispatch runs one admin command against s.
func dispatch(ctx context.Context, s store.Store, args []string, out io.Writer) error {
	switch args[0] {
	case "prompts":
		if len(args) < 2 {
			return fmt.Errorf("%w: prompts needs a subcommand", errUsage)
		}
		switch args[1] {
		case "import":
			if len(args) != 3 {
				return fmt.Errorf("%w: prompts import needs a file", errUsage)
			}
			return importPrompts(ctx, s, args[2], out)
		case "list":
			return listPrompts(ctx, s, out)
		case "delete":
			if len(args) != 3 {
				return fmt.Errorf("%w: prompts delete needs an id", errUsage)
			}
			return deletePrompt(ctx, s, args[2], out)
		default:
			return fmt.Errorf("%w: unknown prompts subcommand %q", errUsage, args[1])
		}

	case "conversations":
		limit := defaultConversationLimit
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: limit must be a positive number", errUsage)
			}
			limit = n
		}
		return listConversations(ctx, s, limit, out)

	case "conversation":
		if len(args) != 2 {
			return fmt.Errorf("%w: conversation needs an anchor id", errUsage)
		}
		return showConversation(ctx, s, args[1], out)

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}
