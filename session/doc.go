// Package session persists the "a user is signed in on this device" marker that
// lets a client skip the sign-in form on the next start.
//
// # Binary encoding
//
// Records are stored as a compact, versioned binary blob. The encoder is
// append-only: new versions add fields but never reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns the [Store] contract, the Redis and in-memory implementations
// and the [Record] model. It does NOT talk to authentication providers or decide
// when a user is signed in; the client does.
//
// # What this package must NOT do
//
//   - Import authsession, idtoken or provider packages (no upward imports).
//   - Store credential secrets or provider tokens in [Record] fields.
package session
