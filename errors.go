package authsession

import (
	"errors"

	"github.com/MrEthical07/authsession/session"
)

var (
	// ErrValidation is matched by every local input rejection.
	ErrValidation = errors.New("invalid sign-in input")
	// ErrEmptyIdentifier is returned when the identifier is blank.
	ErrEmptyIdentifier = errors.New("identifier is empty")
	// ErrEmptySecret is returned when the secret is blank.
	ErrEmptySecret = errors.New("secret is empty")
	// ErrMalformedIdentifier is returned when the identifier is not an email address.
	ErrMalformedIdentifier = errors.New("identifier is not a valid email address")
	// ErrIdentifierTooLong is returned when the identifier exceeds the configured length.
	ErrIdentifierTooLong = errors.New("identifier too long")
	// ErrSecretTooLong is returned when the secret exceeds the configured length.
	ErrSecretTooLong = errors.New("secret too long")

	// ErrProvider is matched by every rejection or failure reported by an authentication provider.
	ErrProvider = errors.New("authentication provider error")
	// ErrProviderTimeout is returned when a provider call outlives Config.Provider.Timeout.
	ErrProviderTimeout = errors.New("authentication provider timed out")
	// ErrProviderPanic is returned when a provider call panics.
	ErrProviderPanic = errors.New("authentication provider panicked")
	// ErrCancelled is returned by an IdentityProvider when the user dismisses the picker.
	ErrCancelled = errors.New("sign-in cancelled")
	// ErrThrottled is returned when an identifier has too many recent failed attempts.
	ErrThrottled = errors.New("too many failed sign-in attempts")

	// ErrProviderRequired is returned by Build without an AuthProvider.
	ErrProviderRequired = errors.New("auth provider required")
	// ErrIdentityProviderRequired is reported when federated sign-in is requested without an IdentityProvider.
	ErrIdentityProviderRequired = errors.New("identity provider required for federated sign-in")
	// ErrSessionNotFound is what a session.Store returns from Load when no
	// record exists. Restore reports it as (false, nil).
	ErrSessionNotFound = session.ErrNotFound
	// ErrClientClosed is returned by context-bound operations after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrBuilderUsed is returned when Build is called twice.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrSubscriptionClosed is returned by Subscription.Next once the
	// subscription or its store is closed and every queued state was read.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// ValidationError reports which credential field was rejected.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrValidation) match every field error.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ProviderError is a provider rejection with a stable code and an optional
// user-facing message.
type ProviderError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Code != "":
		return e.Code
	case e.Err != nil:
		return e.Err.Error()
	}
	return ErrProvider.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProvider) match every provider error.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// CredentialsRejected reports whether the provider refused the credentials
// themselves, as opposed to failing for transport or availability reasons.
// Only rejections count against the failed-attempt budget.
func (e *ProviderError) CredentialsRejected() bool {
	switch e.Code {
	case CodeInvalidCredentials, CodeUserNotFound:
		return true
	}
	return false
}

// Provider error codes shared by the bundled providers.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeUserNotFound       = "user_not_found"
	CodeUserDisabled       = "user_disabled"
	CodeTooManyAttempts    = "too_many_attempts"
	CodeInvalidToken       = "invalid_identity_token"
	CodeUnavailable        = "unavailable"
)
