package authsession

import (
	"io"

	"github.com/MrEthical07/authsession/internal/audit"
)

// AuditEvent is one structured record of a sign-in lifecycle step.
type AuditEvent = audit.Event

// AuditSink receives audit events on the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards audit events to a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// Audit event types emitted by the client.
const (
	AuditSignInSubmit           = "signin_submit"
	AuditSignInSuccess          = "signin_success"
	AuditSignInFailure          = "signin_failure"
	AuditSignInValidationFailed = "signin_validation_failed"
	AuditSignInThrottled        = "signin_throttled"
	AuditSignInCancelled        = "signin_cancelled"
	AuditSessionRestored        = "session_restored"
	AuditSessionReset           = "session_reset"
	AuditSessionSignedOut       = "session_signed_out"
)
