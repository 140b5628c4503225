// ABOUTME: Ordered text rewrite rules applied to user text before completion.
// ABOUTME: Strips the bot mention and expands !expert, !jb and !uwu macros from snippets.

package prompt

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// Snippet IDs the engine requires.
const (
	SnippetExpert = "expert"
	SnippetJB     = "jb"
	SnippetUwU    = "uwu"
)

// Macro tokens recognised in user text.
const (
	MacroExpert = "!expert"
	MacroJB     = "!jb"
	MacroUwU    = "!uwu"
)

// uwu snippet placeholders. All three collapse to namePlaceholder before the
// name is filled in.
const (
	placeholderFirstName = "{FIRST_NAME}"
	placeholderFullName  = "{FULL_NAME}"
	placeholderLastName  = "{LAST_NAME}"
	namePlaceholder      = "{NAME}"
)

// ErrSnippetMissing is returned when a required snippet is not in the snapshot.
var ErrSnippetMissing = errors.New("prompt snippet missing")

// ErrNameRequired is returned when !uwu is used without a quoted name.
var ErrNameRequired = errors.New("a quoted name is required")

// RequiredSnippets lists the snippet IDs every Render call needs.
var RequiredSnippets = []string{SnippetExpert, SnippetJB, SnippetUwU}

type rule struct {
	name  string
	apply func(text string) (string, error)
}

// Engine applies the rewrite rules. It is safe for concurrent use.
type Engine struct {
	snapshot      Snapshot
	mentionTokens []string // longest first
	rules         []rule
}

// NewEngine creates an engine over the given snapshot. mentionTokens are the
// literal texts a chat client inserts when the bot is mentioned, such as its
// user ID and display name. Empty tokens are skipped; with none the mention
// rule does nothing.
func NewEngine(snapshot Snapshot, mentionTokens ...string) *Engine {
	var tokens []string
	for _, t := range mentionTokens {
		if t != "" && !slices.Contains(tokens, t) {
			tokens = append(tokens, t)
		}
	}
	// A display name can be a substring of the user ID.
	slices.SortStableFunc(tokens, func(a, b string) int { return len(b) - len(a) })

	e := &Engine{
		snapshot:      snapshot,
		mentionTokens: tokens,
	}
	e.rules = []rule{
		{name: "mention", apply: e.stripMention},
		{name: "comma-space", apply: stripCommaSpace},
		{name: "expert", apply: e.expandSnippet(MacroExpert, SnippetExpert)},
		{name: "jb", apply: e.expandSnippet(MacroJB, SnippetJB)},
		{name: "uwu", apply: e.expandUwU},
	}
	return e
}

// Rules returns the rule names in the order they are applied.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.name
	}
	return names
}

// Render runs every rule over text in order.
func (e *Engine) Render(text string) (string, error) {
	if missing := e.snapshot.Missing(RequiredSnippets...); len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrSnippetMissing, strings.Join(missing, ", "))
	}

	var err error
	for _, r := range e.rules {
		text, err = r.apply(text)
		if err != nil {
			return "", fmt.Errorf("rule %s: %w", r.name, err)
		}
	}
	return text, nil
}

func (e *Engine) stripMention(text string) (string, error) {
	for _, token := range e.mentionTokens {
		text = strings.ReplaceAll(text, token, "")
	}
	return text, nil
}

// stripCommaSpace removes every ", " in the text, not only ones left behind by
// the mention. Anything that narrows it belongs here.
func stripCommaSpace(text string) (string, error) {
	return strings.ReplaceAll(text, ", ", ""), nil
}

func (e *Engine) expandSnippet(macro, id string) func(string) (string, error) {
	return func(text string) (string, error) {
		snippet, ok := e.snapshot.Lookup(id)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrSnippetMissing, id)
		}
		return strings.ReplaceAll(text, macro, snippet), nil
	}
}

func (e *Engine) expandUwU(text string) (string, error) {
	if !strings.Contains(text, MacroUwU) {
		return text, nil
	}

	args := splitArgs(text)
	if len(args) == 0 {
		return "", fmt.Errorf("no arguments after %s", MacroUwU)
	}
	last := args[len(args)-1]
	if !strings.Contains(last, `"`) {
		return "", ErrNameRequired
	}
	name := strings.Join(strings.Fields(strings.ReplaceAll(last, `"`, "")), " ")

	snippet, ok := e.snapshot.Lookup(SnippetUwU)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSnippetMissing, SnippetUwU)
	}
	for _, p := range []string{placeholderFirstName, placeholderFullName, placeholderLastName} {
		snippet = strings.ReplaceAll(snippet, p, namePlaceholder)
	}
	snippet = strings.ReplaceAll(snippet, namePlaceholder, name)

	return strings.ReplaceAll(text, MacroUwU, snippet), nil
}

// splitArgs splits text on whitespace, keeping a double-quoted run together as
// one argument. Quote characters stay in the argument. An unterminated quote
// runs to the end of the text.
func splitArgs(text string) []string {
	var args []string
	var cur strings.Builder
	inQuote := false

	flush := func() {
		if cur.Len() > 0 {
			args = append(args, cur.String())
			cur.Reset()
		}
	}

	for _, r := range text {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return args
}
