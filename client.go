package authsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authsession/idtoken"
	"github.com/MrEthical07/authsession/internal/audit"
	"github.com/MrEthical07/authsession/internal/loop"
	"github.com/MrEthical07/authsession/internal/rate"
	"github.com/MrEthical07/authsession/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// sessionIOTimeout bounds the background session save that follows a sign-in.
const sessionIOTimeout = 5 * time.Second

// TokenVerifier checks a federated identity token before it reaches the
// AuthProvider. *idtoken.Verifier satisfies it.
type TokenVerifier interface {
	Verify(token string) (*idtoken.Claims, error)
}

type failureLimiter interface {
	Check(ctx context.Context, identifier string) error
	Failure(ctx context.Context, identifier string) error
	Reset(ctx context.Context, identifier string) error
}

// Client drives sign-in attempts and publishes their progress as [AuthState]
// values. Every state change happens on one event-loop goroutine; provider,
// limiter and session I/O run on worker goroutines. All methods are safe for
// concurrent use.
type Client struct {
	config   Config
	provider AuthProvider
	identity IdentityProvider
	verifier TokenVerifier
	sessions session.Store
	limiter  failureLimiter

	store   *StateStore
	loop    *loop.Loop
	audit   *audit.Dispatcher
	metrics *Metrics
	logger  *slog.Logger
	tracer  trace.Tracer

	now          func() time.Time
	newAttemptID func() string

	// ctx is cancelled by Close to abandon in-flight provider calls.
	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup

	// sessionGen is bumped by SignOut; a save or restore started under an
	// older generation is dropped. The loop reads it without locking.
	sessionGen atomic.Uint64
	// sessionMu serializes store I/O. Never taken on the loop.
	sessionMu sync.Mutex

	// attempt is the id of the attempt allowed to complete. Loop-owned.
	attempt string

	closeOnce sync.Once
}

// outcome is what a worker reports back to the loop.
type outcome struct {
	attemptID string
	method    SignInMethod
	userID    string
	kind      ErrorKind
	message   string
	err       error
}

/*
====================================
OBSERVATION
====================================
*/

// Observe returns a subscription that yields the current state first and then
// every later state, in order. Close the subscription when done.
func (c *Client) Observe() *Subscription {
	return c.store.Subscribe()
}

// State returns the current state.
func (c *Client) State() AuthState {
	return c.store.Current()
}

/*
====================================
SUBMISSION
====================================
*/

// Submit starts an email/password sign-in. It never returns an error: the
// outcome is observed as state. Invalid input moves to Idle with a validation
// message without contacting the provider. Submitting while an attempt is
// running, or while signed in, does nothing.
func (c *Client) Submit(creds Credentials) {
	c.onLoop(func() { c.submitPassword(creds) })
}

// SubmitFederated starts a one-tap sign-in through the IdentityProvider.
// Dismissing the picker moves back to Idle with a cancellation message.
func (c *Client) SubmitFederated() {
	c.onLoop(c.submitFederated)
}

// Reset returns to Idle, clearing any message. A running attempt is
// abandoned and its late result discarded. The persisted session is kept.
func (c *Client) Reset() {
	c.onLoop(func() {
		c.attempt = ""
		if _, ok := c.store.publish(idleState()); ok {
			c.metrics.Inc(MetricReset)
			c.emitAudit(AuditEvent{EventType: AuditSessionReset, Success: true})
		}
	})
}

func (c *Client) onLoop(fn func()) {
	if err := c.loop.Do(context.Background(), fn); err != nil {
		c.logger.Debug("authsession: client closed, call ignored")
	}
}

func (c *Client) admit() bool {
	switch c.store.Current().Kind {
	case StateLoading:
		c.metrics.Inc(MetricSubmitRejectedInFlight)
		c.logger.Debug("authsession: submit ignored, attempt in flight")
		return false
	case StateAuthenticated:
		c.metrics.Inc(MetricSubmitRejectedAuthenticated)
		c.logger.Debug("authsession: submit ignored, already signed in")
		return false
	}
	return true
}

func (c *Client) submitPassword(creds Credentials) {
	if !c.admit() {
		return
	}

	valid, err := validateCredentials(c.config.Validation, creds)
	if err != nil {
		c.attempt = ""
		c.metrics.Inc(MetricValidationRejected)
		c.emitAudit(AuditEvent{
			EventType: AuditSignInValidationFailed,
			Method:    string(MethodPassword),
			Error:     err.Error(),
		})
		c.store.publish(rejectedState(ErrorValidation, validationMessage(c.config.Messages, err)))
		return
	}

	id := c.begin(MethodPassword)
	c.spawn(func(ctx context.Context) outcome {
		return c.passwordAttempt(ctx, id, valid)
	})
}

func (c *Client) submitFederated() {
	if !c.admit() {
		return
	}
	if c.identity == nil {
		c.logger.Warn("authsession: federated sign-in unavailable", "error", ErrIdentityProviderRequired)
		c.emitAudit(AuditEvent{
			EventType: AuditSignInFailure,
			Method:    string(MethodFederated),
			Error:     ErrIdentityProviderRequired.Error(),
		})
		c.store.publish(failedState(ErrorProvider, c.config.Messages.Unavailable, MethodFederated, ""))
		return
	}

	id := c.begin(MethodFederated)
	c.metrics.Inc(MetricFederatedSubmit)
	c.spawn(func(ctx context.Context) outcome {
		return c.federatedAttempt(ctx, id)
	})
}

func (c *Client) begin(method SignInMethod) string {
	id := c.newAttemptID()
	c.attempt = id
	c.store.publish(loadingState(method, id))
	c.metrics.Inc(MetricSubmit)
	c.emitAudit(AuditEvent{EventType: AuditSignInSubmit, AttemptID: id, Method: string(method), Success: true})
	return id
}

// spawn runs work on its own goroutine and posts the outcome back to the loop.
func (c *Client) spawn(work func(ctx context.Context) outcome) {
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		res := work(c.ctx)
		c.loop.Post(func() { c.complete(res) })
	}()
}

/*
====================================
WORKERS
====================================
*/

func (c *Client) passwordAttempt(ctx context.Context, attemptID string, creds Credentials) outcome {
	ctx, span := c.tracer.Start(ctx, "authsession.SignInWithPassword",
		trace.WithAttributes(
			attribute.String("authsession.attempt_id", attemptID),
			attribute.String("authsession.method", string(MethodPassword)),
		))
	defer span.End()

	res := outcome{attemptID: attemptID, method: MethodPassword}

	if c.limiter != nil {
		switch err := c.limiter.Check(ctx, creds.Identifier); {
		case errors.Is(err, rate.ErrRateLimited):
			span.SetStatus(codes.Error, "throttled")
			res.kind = ErrorThrottled
			res.message = c.config.Messages.Throttled
			res.err = ErrThrottled
			return res
		case err != nil:
			c.logger.Warn("authsession: throttle check failed, allowing attempt",
				"identifier", redactIdentifier(creds.Identifier), "error", err)
		}
	}

	userID, err := callProvider(ctx, c.config.Provider.Timeout, c.metrics, func(ctx context.Context) (string, error) {
		return c.provider.SignInWithPassword(ctx, creds.Identifier, creds.Secret)
	})
	if err == nil && userID == "" {
		err = &ProviderError{Code: CodeUserNotFound, Err: errors.New("provider returned an empty user id")}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sign-in failed")
		res.kind, res.message = c.classify(err)
		res.err = err
		if c.limiter != nil && countsAsFailure(err) {
			if ferr := c.limiter.Failure(ctx, creds.Identifier); ferr != nil && !errors.Is(ferr, rate.ErrRateLimited) {
				c.logger.Warn("authsession: recording failed attempt",
					"identifier", redactIdentifier(creds.Identifier), "error", ferr)
			}
		}
		return res
	}

	if c.limiter != nil {
		if err := c.limiter.Reset(ctx, creds.Identifier); err != nil {
			c.logger.Warn("authsession: clearing failed attempts",
				"identifier", redactIdentifier(creds.Identifier), "error", err)
		}
	}

	span.SetStatus(codes.Ok, "")
	res.userID = userID
	return res
}

func (c *Client) federatedAttempt(ctx context.Context, attemptID string) outcome {
	ctx, span := c.tracer.Start(ctx, "authsession.SignInWithIdentityToken",
		trace.WithAttributes(
			attribute.String("authsession.attempt_id", attemptID),
			attribute.String("authsession.method", string(MethodFederated)),
		))
	defer span.End()

	res := outcome{attemptID: attemptID, method: MethodFederated}

	// The picker waits on the user, so only the provider exchange is time-bounded.
	token, err := callProvider(ctx, 0, nil, c.identity.BeginSignIn)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrCancelled) {
			span.SetStatus(codes.Unset, "cancelled")
			res.kind = ErrorCancelled
			res.message = c.config.Messages.Cancelled
			res.err = err
			return res
		}
		span.SetStatus(codes.Error, "identity provider failed")
		res.kind, res.message = c.classify(err)
		res.err = err
		return res
	}
	span.SetAttributes(attribute.String("authsession.identity_provider", token.ProviderID))

	if c.verifier != nil && c.config.Provider.VerifyIdentityTokens {
		if _, err := c.verifier.Verify(token.Value); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "identity token rejected")
			res.err = &ProviderError{Code: CodeInvalidToken, Err: err}
			res.kind, res.message = c.classify(res.err)
			return res
		}
	}

	userID, err := callProvider(ctx, c.config.Provider.Timeout, c.metrics, func(ctx context.Context) (string, error) {
		return c.provider.SignInWithIdentityToken(ctx, token)
	})
	if err == nil && userID == "" {
		err = &ProviderError{Code: CodeUserNotFound, Err: errors.New("provider returned an empty user id")}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sign-in failed")
		res.kind, res.message = c.classify(err)
		res.err = err
		return res
	}

	span.SetStatus(codes.Ok, "")
	res.userID = userID
	return res
}

// callProvider runs fn with an optional timeout, turning a panic into
// ErrProviderPanic. A provider that ignores its context is abandoned once the
// deadline passes; its goroutine finishes on its own.
func callProvider[T any](ctx context.Context, timeout time.Duration, metrics *Metrics, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	start := time.Now()

	go func() {
		var r result
		defer func() {
			if p := recover(); p != nil {
				r = result{err: fmt.Errorf("%w: %v", ErrProviderPanic, p)}
			}
			done <- r
		}()
		r.value, r.err = fn(ctx)
	}()

	select {
	case r := <-done:
		metrics.Observe(MetricProviderLatency, time.Since(start))
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() != nil {
			r.err = fmt.Errorf("%w: %v", ErrProviderTimeout, r.err)
		}
		return r.value, r.err
	case <-ctx.Done():
		metrics.Observe(MetricProviderLatency, time.Since(start))
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrProviderTimeout
		}
		return zero, ctx.Err()
	}
}

// classify picks the error kind and the user-facing message for a failed call.
func (c *Client) classify(err error) (ErrorKind, string) {
	msgs := c.config.Messages

	switch {
	case errors.Is(err, ErrProviderTimeout):
		c.metrics.Inc(MetricProviderTimeout)
		return ErrorProvider, msgs.ProviderTimeout
	case errors.Is(err, ErrProviderPanic):
		c.metrics.Inc(MetricProviderPanic)
		return ErrorProvider, msgs.ProviderFailure
	case errors.Is(err, context.Canceled):
		return ErrorProvider, msgs.ProviderFailure
	case errors.Is(err, ErrThrottled):
		return ErrorThrottled, msgs.Throttled
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		kind := ErrorProvider
		if pe.Code == CodeTooManyAttempts {
			kind = ErrorThrottled
		}
		switch {
		case pe.Message != "":
			return kind, pe.Message
		case kind == ErrorThrottled:
			return kind, msgs.Throttled
		case pe.Code == CodeUnavailable:
			return kind, msgs.Unavailable
		}
		return kind, msgs.ProviderFailure
	}

	if msg := err.Error(); msg != "" {
		return ErrorProvider, msg
	}
	return ErrorProvider, msgs.ProviderFailure
}

// countsAsFailure reports whether err spends the identifier's failed-attempt
// budget. Outages and timeouts do not.
func countsAsFailure(err error) bool {
	if errors.Is(err, ErrProviderTimeout) || errors.Is(err, ErrProviderPanic) || errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.CredentialsRejected()
	}
	return true
}

/*
====================================
COMPLETION
====================================
*/

func (c *Client) complete(res outcome) {
	if res.attemptID == "" || res.attemptID != c.attempt || c.store.Current().Kind != StateLoading {
		c.metrics.Inc(MetricStaleCompletion)
		c.logger.Debug("authsession: discarding result of abandoned attempt", "attempt_id", res.attemptID)
		return
	}
	c.attempt = ""

	event := AuditEvent{AttemptID: res.attemptID, Method: string(res.method)}

	switch {
	case res.err == nil:
		c.store.publish(authenticatedState(res.userID, res.method, res.attemptID))
		c.metrics.Inc(MetricSignInSuccess)
		event.EventType = AuditSignInSuccess
		event.UserID = res.userID
		event.Success = true
		c.emitAudit(event)
		c.scheduleSave(res)
		return

	case res.kind == ErrorCancelled:
		c.store.publish(AuthState{
			Kind:      StateIdle,
			Error:     ErrorCancelled,
			Message:   res.message,
			Method:    res.method,
			AttemptID: res.attemptID,
		})
		c.metrics.Inc(MetricCancelled)
		event.EventType = AuditSignInCancelled

	case res.kind == ErrorThrottled:
		c.store.publish(failedState(ErrorThrottled, res.message, res.method, res.attemptID))
		c.metrics.Inc(MetricThrottled)
		event.EventType = AuditSignInThrottled

	default:
		c.store.publish(failedState(ErrorProvider, res.message, res.method, res.attemptID))
		c.metrics.Inc(MetricSignInFailure)
		event.EventType = AuditSignInFailure
	}

	event.Error = res.err.Error()
	c.emitAudit(event)
}

/*
====================================
SESSION PERSISTENCE
====================================
*/

func (c *Client) scheduleSave(res outcome) {
	if c.sessions == nil {
		return
	}

	gen := c.sessionGen.Load()

	now := c.now()
	rec := &session.Record{
		UserID:     res.userID,
		Method:     string(res.method),
		AttemptID:  res.attemptID,
		SignedInAt: now.Unix(),
		ExpiresAt:  now.Add(c.config.Session.TTL).Unix(),
	}

	c.workers.Add(1)
	go func() {
		defer c.workers.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sessionIOTimeout)
		defer cancel()

		c.sessionMu.Lock()
		defer c.sessionMu.Unlock()
		if gen != c.sessionGen.Load() {
			return
		}
		if err := c.sessions.Save(ctx, rec); err != nil {
			c.metrics.Inc(MetricSessionSaveFailure)
			c.logger.Warn("authsession: saving session", "attempt_id", rec.AttemptID, "error", err)
		}
	}()
}

// Restore recovers a persisted sign-in. When a live record exists and no
// attempt is running or signed in, the client moves to Authenticated with
// MethodRestored and Restore reports true.
func (c *Client) Restore(ctx context.Context) (bool, error) {
	if c.loop.Closed() {
		return false, ErrClientClosed
	}
	if c.sessions == nil {
		return false, nil
	}

	c.sessionMu.Lock()
	gen := c.sessionGen.Load()
	rec, err := c.sessions.Load(ctx)
	c.sessionMu.Unlock()
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	restored := false
	err = c.loop.Do(ctx, func() {
		if gen != c.sessionGen.Load() {
			return
		}
		switch c.store.Current().Kind {
		case StateLoading, StateAuthenticated:
			return
		}

		c.attempt = ""
		c.store.publish(authenticatedState(rec.UserID, MethodRestored, rec.AttemptID))
		c.metrics.Inc(MetricSessionRestored)
		c.emitAudit(AuditEvent{
			EventType: AuditSessionRestored,
			AttemptID: rec.AttemptID,
			UserID:    rec.UserID,
			Method:    string(MethodRestored),
			Success:   true,
		})
		restored = true
	})
	if errors.Is(err, loop.ErrClosed) {
		return false, ErrClientClosed
	}
	return restored, err
}

// SignOut forgets the persisted session and returns to Idle. The state is
// reset even when clearing the store fails; that error is returned.
func (c *Client) SignOut(ctx context.Context) error {
	if c.loop.Closed() {
		return ErrClientClosed
	}

	var clearErr error
	c.sessionGen.Add(1)
	if c.sessions != nil {
		c.sessionMu.Lock()
		clearErr = c.sessions.Clear(ctx)
		c.sessionMu.Unlock()
	}

	err := c.loop.Do(ctx, func() {
		prev := c.store.Current()
		c.attempt = ""
		c.store.publish(idleState())
		c.metrics.Inc(MetricSignOut)
		c.emitAudit(AuditEvent{
			EventType: AuditSessionSignedOut,
			UserID:    prev.UserID,
			Success:   clearErr == nil,
		})
	})
	if errors.Is(err, loop.ErrClosed) {
		return ErrClientClosed
	}
	if err != nil {
		return err
	}
	if clearErr != nil {
		return fmt.Errorf("clear session: %w", clearErr)
	}
	return nil
}

/*
====================================
LIFECYCLE
====================================
*/

// Close abandons running attempts, stops the event loop and flushes audit
// events. Subscriptions end with ErrSubscriptionClosed. Close is idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.loop.Close()
		c.workers.Wait()
		c.store.close()
		c.audit.Close()
	})
}

// AuditDropped returns the number of audit events dropped because the buffer was full.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// AuditSinkPanics returns the number of audit events whose sink panicked.
func (c *Client) AuditSinkPanics() uint64 {
	return c.audit.Panicked()
}

// MetricsSnapshot copies the in-process counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

func (c *Client) emitAudit(event AuditEvent) {
	c.audit.Emit(context.Background(), event)
}
