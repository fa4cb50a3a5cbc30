package navigation

import (
	authsession "github.com/MrEthical07/authsession"
)

// Destination is a screen the sign-in flow can lead to.
type Destination string

const (
	Home   Destination = "home"
	SignIn Destination = "sign_in"
	SignUp Destination = "sign_up"
)

// IntentKind tags an [Intent].
type IntentKind uint8

const (
	// IntentNavigate moves to Destination, optionally dropping the back stack.
	IntentNavigate IntentKind = iota + 1
	// IntentShowMessage shows Message briefly without blocking the screen.
	IntentShowMessage
)

func (k IntentKind) String() string {
	switch k {
	case IntentNavigate:
		return "navigate"
	case IntentShowMessage:
		return "show_message"
	}
	return "unknown"
}

// Intent is one side effect requested in response to a state.
type Intent struct {
	Kind           IntentKind
	Destination    Destination
	ClearBackStack bool
	Message        string
}

// NavigateTo returns a navigation intent.
func NavigateTo(dest Destination, clearBackStack bool) Intent {
	return Intent{Kind: IntentNavigate, Destination: dest, ClearBackStack: clearBackStack}
}

// ShowTransientMessage returns a message intent.
func ShowTransientMessage(msg string) Intent {
	return Intent{Kind: IntentShowMessage, Message: msg}
}

// Map returns the intents for state. It has no memory; see [Trigger] for
// duplicate suppression.
//
//	Authenticated        -> navigate Home, clearing the back stack
//	Failed               -> show the failure message
//	Idle with a message  -> show the message
//	Loading, plain Idle  -> nothing
func Map(state authsession.AuthState) []Intent {
	switch state.Kind {
	case authsession.StateAuthenticated:
		return []Intent{NavigateTo(Home, true)}
	case authsession.StateFailed, authsession.StateIdle:
		if state.HasMessage() {
			return []Intent{ShowTransientMessage(state.Message)}
		}
	}
	return nil
}
