package authsession

import (
	"context"
	"strconv"
)

// Credentials is one email/password submission. It is never persisted and
// its String form never reveals the secret.
type Credentials struct {
	Identifier string
	Secret     string
}

func (c Credentials) String() string {
	return "Credentials{Identifier: " + strconv.Quote(redactIdentifier(c.Identifier)) + ", Secret: [redacted]}"
}

// StateKind tags the variant held by an [AuthState].
type StateKind uint8

const (
	// StateIdle means no attempt is running and nobody is signed in.
	StateIdle StateKind = iota
	// StateLoading means an attempt is waiting for its provider.
	StateLoading
	// StateAuthenticated means a user is signed in.
	StateAuthenticated
	// StateFailed means the last attempt was rejected by the provider.
	StateFailed
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ErrorKind classifies why an attempt ended without a signed-in user.
type ErrorKind uint8

const (
	ErrorNone ErrorKind = iota
	// ErrorValidation is a local input rejection; no provider call was made.
	ErrorValidation
	// ErrorProvider is a rejection or failure reported by the provider.
	ErrorProvider
	// ErrorCancelled means the user dismissed the federated picker.
	ErrorCancelled
	// ErrorThrottled means the failed-attempt budget was exhausted.
	ErrorThrottled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorValidation:
		return "validation"
	case ErrorProvider:
		return "provider"
	case ErrorCancelled:
		return "cancelled"
	case ErrorThrottled:
		return "throttled"
	}
	return "unknown"
}

// SignInMethod records how an attempt authenticated.
type SignInMethod string

const (
	MethodPassword  SignInMethod = "password"
	MethodFederated SignInMethod = "federated"
	// MethodRestored marks a sign-in recovered from the session store.
	MethodRestored SignInMethod = "restored"
)

// AuthState is the current step of the sign-in lifecycle. Exactly one state is
// current at any time. AuthState is comparable; use [AuthState.SameAs] to
// compare content regardless of the store version.
type AuthState struct {
	Kind StateKind

	// UserID is set for StateAuthenticated.
	UserID string

	// Message is the user-facing text for StateFailed, and for StateIdle
	// after a local rejection or a cancelled picker.
	Message string
	Error   ErrorKind

	Method    SignInMethod
	AttemptID string

	// Seq is assigned by the store; it strictly increases across published states.
	Seq uint64
}

// SameAs reports whether s and o carry the same content, ignoring Seq.
func (s AuthState) SameAs(o AuthState) bool {
	s.Seq, o.Seq = 0, 0
	return s == o
}

// HasMessage reports whether the state carries text to show the user.
func (s AuthState) HasMessage() bool {
	return s.Message != ""
}

func (s AuthState) String() string {
	out := s.Kind.String()
	switch {
	case s.Kind == StateAuthenticated:
		out += "(" + s.UserID + ")"
	case s.Message != "":
		out += "(" + s.Error.String() + ": " + s.Message + ")"
	}
	return out
}

func idleState() AuthState {
	return AuthState{Kind: StateIdle}
}

func rejectedState(kind ErrorKind, msg string) AuthState {
	return AuthState{Kind: StateIdle, Error: kind, Message: msg}
}

func loadingState(method SignInMethod, attemptID string) AuthState {
	return AuthState{Kind: StateLoading, Method: method, AttemptID: attemptID}
}

func authenticatedState(userID string, method SignInMethod, attemptID string) AuthState {
	return AuthState{Kind: StateAuthenticated, UserID: userID, Method: method, AttemptID: attemptID}
}

func failedState(kind ErrorKind, msg string, method SignInMethod, attemptID string) AuthState {
	return AuthState{Kind: StateFailed, Error: kind, Message: msg, Method: method, AttemptID: attemptID}
}

// IdentityToken is what a federated picker hands back: a provider-issued
// token (usually a JWT) and the id of the provider that issued it.
type IdentityToken struct {
	Value      string
	ProviderID string
}

// AuthProvider authenticates users. Implementations must be safe for
// concurrent use; each call runs on its own goroutine.
//
// A returned error is shown to the user through its Error text; return a
// *ProviderError to control the message and code.
type AuthProvider interface {
	SignInWithPassword(ctx context.Context, identifier, secret string) (userID string, err error)
	SignInWithIdentityToken(ctx context.Context, token IdentityToken) (userID string, err error)
}

// IdentityProvider drives a platform credential picker. It returns
// ErrCancelled (possibly wrapped) when the user dismisses it.
type IdentityProvider interface {
	BeginSignIn(ctx context.Context) (IdentityToken, error)
}
