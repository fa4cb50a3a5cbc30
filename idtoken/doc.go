// Package idtoken verifies and issues the identity tokens exchanged during
// federated ("one-tap") sign-in.
//
// Tokens are JWTs signed with Ed25519 (default) or HS256. [Verifier] enforces the
// expected algorithm, issuer, audience, key id and expiry before any claim is
// trusted; [Signer] exists for in-process providers and tests.
package idtoken
