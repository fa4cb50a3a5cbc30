package navigation

import (
	"context"
	"errors"
	"log/slog"

	authsession "github.com/MrEthical07/authsession"
)

// Navigator changes the visible screen.
type Navigator interface {
	Navigate(ctx context.Context, dest Destination, clearBackStack bool) error
}

// Notifier shows a short, non-blocking message.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Driver applies the intents of a state stream. Navigator and notifier errors
// are logged and do not stop the stream.
type Driver struct {
	trigger   *Trigger
	navigator Navigator
	notifier  Notifier
	logger    *slog.Logger
}

// NewDriver builds a Driver. A nil trigger gets a default one; a nil logger
// discards output.
func NewDriver(trigger *Trigger, navigator Navigator, notifier Notifier, logger *slog.Logger) *Driver {
	if trigger == nil {
		trigger = NewTrigger()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		trigger:   trigger,
		navigator: navigator,
		notifier:  notifier,
		logger:    logger,
	}
}

// Run consumes sub until it is closed or ctx ends. A closed subscription ends
// Run with a nil error.
func (d *Driver) Run(ctx context.Context, sub *authsession.Subscription) error {
	for {
		state, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, authsession.ErrSubscriptionClosed) {
				return nil
			}
			return err
		}
		d.Apply(ctx, state)
	}
}

// Apply runs the intents for a single state through the trigger.
func (d *Driver) Apply(ctx context.Context, state authsession.AuthState) {
	for _, intent := range d.trigger.Handle(state) {
		d.apply(ctx, intent)
	}
}

// Navigate handles an explicit user action, such as tapping the sign-up link.
func (d *Driver) Navigate(ctx context.Context, dest Destination) error {
	if d.navigator == nil {
		return nil
	}
	return d.navigator.Navigate(ctx, dest, false)
}

func (d *Driver) apply(ctx context.Context, intent Intent) {
	switch intent.Kind {
	case IntentNavigate:
		if d.navigator == nil {
			return
		}
		if err := d.navigator.Navigate(ctx, intent.Destination, intent.ClearBackStack); err != nil {
			d.logger.Warn("navigation: navigate failed", "destination", string(intent.Destination), "error", err)
		}
	case IntentShowMessage:
		if d.notifier == nil {
			return
		}
		if err := d.notifier.Notify(ctx, intent.Message); err != nil {
			d.logger.Warn("navigation: notify failed", "error", err)
		}
	}
}
