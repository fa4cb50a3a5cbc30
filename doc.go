// Package authsession is the client side of an interactive sign-in: it takes
// credentials from a form, runs the attempt against an [AuthProvider] and
// publishes every step as an [AuthState] that screens observe.
//
// A [Client] is assembled with [New] and [Builder.Build]. After that, all of
// its methods are safe to call from any goroutine.
//
// # State model
//
// The client is always in exactly one of Idle, Loading, Authenticated or
// Failed. Submit moves Idle or Failed to Loading; the provider's answer moves
// Loading to Authenticated or Failed; Reset and SignOut move back to Idle.
// Local input rejections and a dismissed one-tap picker leave the client Idle
// with a message attached.
//
// # Concurrency
//
// One event-loop goroutine applies every transition and feeds every
// [Subscription], so observers see states in the order they happened. Provider
// calls, the failed-attempt limiter and the session store run on worker
// goroutines and hand their results back to the loop. Results of an attempt
// that was reset are dropped.
//
// # What this package must NOT do
//
//   - Store or log the secret.
//   - Return provider errors from Submit; they are only ever observed as state.
//   - Block Submit, SubmitFederated or Reset on network I/O.
//
// Navigation in response to states lives in the navigation sub-package.
package authsession
