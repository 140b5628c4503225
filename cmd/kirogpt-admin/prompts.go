// ABOUTME: Prompt snippet commands for kirogpt-admin
// ABOUTME: Parses the YAML import format and prints the stored snippets

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/2389/kirogpt/internal/prompt"
	"github.com/2389/kirogpt/internal/store"
)

// promptFile is the import format:
//
//	prompts:
//	  - id: expert
//	    text: |
//	      You are an expert...
type promptFile struct {
	Prompts []struct {
		ID   string `yaml:"id"`
		Text string `yaml:"text"`
	} `yaml:"prompts"`
}

// parsePromptFile decodes and validates an import file.
func parsePromptFile(data []byte) ([]*store.Prompt, error) {
	var f promptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing prompt file: %w", err)
	}
	if len(f.Prompts) == 0 {
		return nil, errors.New("prompt file has no prompts")
	}

	seen := make(map[string]bool, len(f.Prompts))
	prompts := make([]*store.Prompt, 0, len(f.Prompts))
	for i, p := range f.Prompts {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("prompt %d: id is required", i+1)
		}
		if strings.TrimSpace(p.Text) == "" {
			return nil, fmt.Errorf("prompt %q: text is required", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("prompt %q: duplicate id", id)
		}
		seen[id] = true
		prompts = append(prompts, &store.Prompt{ID: id, Text: strings.TrimRight(p.Text, "\n")})
	}
	return prompts, nil
}

func importPrompts(ctx context.Context, s store.Store, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	prompts, err := parsePromptFile(data)
	if err != nil {
		return err
	}

	for _, p := range prompts {
		if err := s.UpsertPrompt(ctx, p); err != nil {
			return fmt.Errorf("saving prompt %q: %w", p.ID, err)
		}
	}

	green := color.New(color.FgGreen)
	green.Fprintf(out, "  ✓ ")
	fmt.Fprintf(out, "Imported %d prompt(s) from %s\n", len(prompts), path)
	return warnMissing(ctx, s, out)
}

func listPrompts(ctx context.Context, s store.Store, out io.Writer) error {
	prompts, err := s.ListPrompts(ctx)
	if err != nil {
		return fmt.Errorf("listing prompts: %w", err)
	}

	fmt.Fprintln(out, "  Prompt Snippets")
	fmt.Fprintln(out, "  ---------------")
	if len(prompts) == 0 {
		fmt.Fprintln(out, "  (none)")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tLENGTH\tUPDATED\tPREVIEW")
		for _, p := range prompts {
			fmt.Fprintf(w, "  %s\t%d\t%s\t%s\n",
				p.ID,
				len(p.Text),
				p.UpdatedAt.Format("2006-01-02 15:04"),
				preview(p.Text, 40),
			)
		}
		w.Flush()
	}
	fmt.Fprintln(out)
	return warnMissing(ctx, s, out)
}

func deletePrompt(ctx context.Context, s store.Store, id string, out io.Writer) error {
	if err := s.DeletePrompt(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("prompt %q not found", id)
		}
		return fmt.Errorf("deleting prompt %q: %w", id, err)
	}
	fmt.Fprintf(out, "Deleted prompt %s\n", id)
	return warnMissing(ctx, s, out)
}

// warnMissing reports required snippets that the bot would fail without.
func warnMissing(ctx context.Context, s store.Store, out io.Writer) error {
	prompts, err := s.ListPrompts(ctx)
	if err != nil {
		return fmt.Errorf("listing prompts: %w", err)
	}
	have := make([]prompt.Snippet, 0, len(prompts))
	for _, p := range prompts {
		have = append(have, prompt.Snippet{ID: p.ID, Text: p.Text})
	}
	missing := prompt.NewSnapshot(have).Missing(prompt.RequiredSnippets...)
	if len(missing) > 0 {
		yellow := color.New(color.FgYellow)
		yellow.Fprintf(out, "  ! ")
		fmt.Fprintf(out, "Missing required snippets: %s\n", strings.Join(missing, ", "))
	}
	return nil
}

// preview returns the first line of s, cut to n runes.
func preview(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " ..."
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
