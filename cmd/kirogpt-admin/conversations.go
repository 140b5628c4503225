// ABOUTME: Conversation inspection commands for kirogpt-admin
// ABOUTME: Lists recent conversations and prints a single transcript

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/kirogpt/internal/store"
)

func listConversations(ctx context.Context, s store.Store, limit int, out io.Writer) error {
	convs, err := s.ListConversations(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	fmt.Fprintln(out, "  Conversations")
	fmt.Fprintln(out, "  -------------")
	if len(convs) == 0 {
		fmt.Fprintln(out, "  (none)")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ANCHOR\tMESSAGES\tUPDATED\tLAST")
	for _, c := range convs {
		last := ""
		if n := len(c.Messages); n > 0 {
			last = preview(c.Messages[n-1].Content, 40)
		}
		fmt.Fprintf(w, "  %s\t%d\t%s\t%s\n",
			c.AnchorID,
			len(c.Messages),
			c.UpdatedAt.Format("2006-01-02 15:04"),
			last,
		)
	}
	return w.Flush()
}

func showConversation(ctx context.Context, s store.Store, anchorID string, out io.Writer) error {
	conv, err := s.GetConversation(ctx, anchorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("conversation %q not found", anchorID)
		}
		return fmt.Errorf("loading conversation: %w", err)
	}

	fmt.Fprintf(out, "  Conversation %s\n", conv.AnchorID)
	fmt.Fprintf(out, "  created %s, updated %s\n\n",
		conv.CreatedAt.Format("2006-01-02 15:04:05"),
		conv.UpdatedAt.Format("2006-01-02 15:04:05"),
	)

	user := color.New(color.FgCyan, color.Bold)
	assistant := color.New(color.FgGreen, color.Bold)
	for _, m := range conv.Messages {
		label := user
		if m.Role == store.RoleAssistant {
			label = assistant
		}
		label.Fprintf(out, "  %s: ", m.Role)
		fmt.Fprintln(out, m.Content)
	}
	return nil
}
