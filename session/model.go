package session

import (
	"errors"
	"time"
)

// ErrNotFound is returned by [Store.Load] when no live record exists.
var ErrNotFound = errors.New("session record not found")

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Record marks the user signed in on this device.
type Record struct {
	UserID    string
	Method    string
	AttemptID string

	SignedInAt int64
	ExpiresAt  int64
}

// Expired reports whether the record is no longer valid at now. A zero
// ExpiresAt never expires.
func (r *Record) Expired(now time.Time) bool {
	if r == nil {
		return true
	}
	return r.ExpiresAt != 0 && now.Unix() >= r.ExpiresAt
}
