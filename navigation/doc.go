// Package navigation turns authsession states into screen-level side effects.
//
// [Map] is the pure state-to-intent table. [Trigger] wraps it so that a state
// delivered twice causes its effects once. [Driver] reads a subscription and
// applies intents to a [Navigator] and a [Notifier] supplied by the host UI.
package navigation
