package navigation

import (
	"sync"

	authsession "github.com/MrEthical07/authsession"
)

// Trigger maps states to intents at most once per state. A state whose Seq was
// already handled, or that equals the last handled state, yields nothing.
// Trigger is safe for concurrent use.
type Trigger struct {
	successMessage string

	mu      sync.Mutex
	handled bool
	lastSeq uint64
	last    authsession.AuthState
}

// Option configures a [Trigger].
type Option func(*Trigger)

// WithSuccessMessage shows msg right before navigating after a sign-in.
func WithSuccessMessage(msg string) Option {
	return func(t *Trigger) {
		t.successMessage = msg
	}
}

func NewTrigger(opts ...Option) *Trigger {
	t := &Trigger{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Handle returns the intents for state, or nil when state was already handled.
func (t *Trigger) Handle(state authsession.AuthState) []Intent {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handled {
		if state == t.last {
			return nil
		}
		// Stores number states from 1; zero means an unsequenced value.
		if state.Seq != 0 && state.Seq <= t.lastSeq {
			return nil
		}
	}

	t.handled = true
	t.last = state
	if state.Seq > t.lastSeq {
		t.lastSeq = state.Seq
	}

	intents := Map(state)
	if state.Kind == authsession.StateAuthenticated && t.successMessage != "" {
		intents = append([]Intent{ShowTransientMessage(t.successMessage)}, intents...)
	}
	return intents
}
