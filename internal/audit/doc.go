// Package audit implements async event dispatching for credential lifecycle events.
//
// # Components
//
//   - [Sink] is the consumer interface (channel, JSON writer, no-op).
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event] is the structured record: timestamp, type, subject, ticket, outcome, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Manager does.
//
// # What this package must NOT do
//
//   - Carry access or refresh token values in any field.
//   - Import goAuthClient or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
