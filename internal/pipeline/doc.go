// Package pipeline turns an incoming chat message into a completion reply.
//
// # Flow
//
// Handle runs one message through these states:
//
//	Resolving -> Templating -> AwaitingCompletion -> Replying -> Persisting -> Done
//
// Any state can end in Aborted. The in-flight registry entry taken while
// resolving is held as an inflight.Lease whose release is deferred, so it is
// returned on every exit path. On success it is released as soon as the
// completion call returns, before the reply is sent.
//
// # Classification
//
//   - CONTINUATION: the message replies to a bot message that anchors a stored
//     conversation. The registry entry is the anchor ID.
//   - NEW: the message mentions the bot. The registry entry is the message ID.
//   - PING: the message is exactly "!ping". The caller answers it.
//   - IGNORE: anything else, including replies to bot messages with no stored
//     conversation and messages already in flight.
//
// # Keepalive
//
// While the completion call is outstanding a background goroutine refreshes
// the room's typing indicator every TypingInterval. It stops when the call
// returns and clears the indicator on the way out.
//
// Only one user-visible error exists: "!uwu" without a quoted name gets a
// short warning reply that deletes itself after WarningTTL. Every other failure
// is logged and returned to the caller without a reply.
package pipeline
