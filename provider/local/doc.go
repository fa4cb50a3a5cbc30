// Package local is an in-process authsession provider backed by a table of
// users with argon2id password hashes. It also issues and accepts identity
// tokens for one-tap sign-in, which makes it suitable for development,
// demos and tests.
package local
