// Package prompt rewrites raw chat text into the user turn sent to the
// completion service.
//
// # Snapshot
//
// A Snapshot holds the named prompt snippets loaded from the store at startup.
// It is never modified after construction and is shared by value between
// pipelines without locking.
//
// # Rules
//
// Engine applies its rules in a fixed order:
//
//   - mention: strip the bot's mention token
//   - comma-space: strip every ", " (over-broad, kept as a separate rule)
//   - expert: expand !expert to the "expert" snippet
//   - jb: expand !jb to the "jb" snippet
//   - uwu: expand !uwu to the "uwu" snippet with a quoted name filled in
//
// The snippets "expert", "jb" and "uwu" must all be present. Render returns
// ErrSnippetMissing otherwise, and ErrNameRequired when !uwu is used without a
// quoted name as its last argument.
package prompt
