// Package audit delivers account lifecycle events asynchronously.
//
// # Components
//
//   - [Kind]: the closed set of lifecycle events, rendered by name in JSON.
//   - [Event]: one occurrence with its account, username, client IP and outcome.
//   - [Sink]: event consumer (channel, JSON lines, no-op).
//   - [Dispatcher]: ordered async relay that drops or blocks on a full
//     buffer and counts drops per [Kind].
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; that belongs to the engine.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import efficio or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
