// Package matrix connects kirogpt to a Matrix homeserver using mautrix.
//
// Client is the outgoing side: it sends replies (markdown rendered to HTML),
// toggles typing, redacts messages, and looks up the sender of a replied-to
// event. It implements pipeline.Messenger.
//
// Bridge is the incoming side: it runs the sync loop, filters room messages,
// converts them into pipeline events and hands each one to the pipeline in its
// own goroutine. It also answers "!ping".
package matrix
