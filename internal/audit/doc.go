// Package audit implements async event dispatching for sign-in lifecycle steps.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record with timestamp, type, attempt, user, method, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the client does.
//
// # What this package must NOT do
//
//   - Carry credential secrets in [Event] fields.
//   - Import authsession or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
