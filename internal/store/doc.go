// Package store provides persistent storage for kirogpt using SQLite.
//
// # Data Models
//
//   - Conversation: the message history behind one bot reply, keyed by the
//     reply's message ID (the anchor). Messages are stored as a JSON array and
//     replaced wholesale on update.
//   - Prompt: a named snippet used by the prompt engine. Prompts are read once
//     at startup; the admin CLI edits them.
//
// # SQLite Configuration
//
// The store uses modernc.org/sqlite (no cgo) with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//
// The schema is created on open if it does not exist.
//
// # Error Handling
//
//   - ErrNotFound: requested conversation or prompt does not exist
//   - ErrDuplicateConversation: a conversation with that anchor already exists
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore(path) with a t.TempDir()
// path for tests against real SQLite.
package store
