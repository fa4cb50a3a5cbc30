package authsession

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authsession/idtoken"
	"github.com/MrEthical07/authsession/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeProvider struct {
	calls      atomic.Int64
	mu         sync.Mutex
	identifier string
	password   func(ctx context.Context, identifier, secret string) (string, error)
	token      func(ctx context.Context, token IdentityToken) (string, error)
}

func (p *fakeProvider) SignInWithPassword(ctx context.Context, identifier, secret string) (string, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.identifier = identifier
	p.mu.Unlock()
	if p.password == nil {
		return "42", nil
	}
	return p.password(ctx, identifier, secret)
}

func (p *fakeProvider) SignInWithIdentityToken(ctx context.Context, token IdentityToken) (string, error) {
	p.calls.Add(1)
	if p.token == nil {
		return "", errors.New("federated sign-in not scripted")
	}
	return p.token(ctx, token)
}

func (p *fakeProvider) lastIdentifier() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identifier
}

type fakeIdentity struct {
	token IdentityToken
	err   error
}

func (f fakeIdentity) BeginSignIn(context.Context) (IdentityToken, error) {
	return f.token, f.err
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Provider.Timeout = time.Second
	cfg.Provider.VerifyIdentityTokens = false
	return cfg
}

func newTestClient(t *testing.T, cfg Config, p AuthProvider, configure ...func(*Builder)) *Client {
	t.Helper()
	b := New().WithConfig(cfg).WithAuthProvider(p)
	for _, fn := range configure {
		fn(b)
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// collectUntil reads states until one of kind final arrives.
func collectUntil(t *testing.T, sub *Subscription, final StateKind) []AuthState {
	t.Helper()
	var out []AuthState
	for {
		s := nextWithin(t, sub)
		out = append(out, s)
		if s.Kind == final && len(out) > 1 {
			return out
		}
	}
}

func kinds(states []AuthState) []StateKind {
	out := make([]StateKind, len(states))
	for i, s := range states {
		out[i] = s.Kind
	}
	return out
}

func equalKinds(a, b []StateKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubmitSuccessReachesAuthenticated(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(t, testConfig(), p)
	sub := c.Observe()
	defer sub.Close()

	c.Submit(Credentials{Identifier: " user@x.com ", Secret: "secret"})

	states := collectUntil(t, sub, StateAuthenticated)
	if !equalKinds(kinds(states), []StateKind{StateIdle, StateLoading, StateAuthenticated}) {
		t.Fatalf("unexpected sequence %v", states)
	}
	final := states[2]
	if final.UserID != "42" || final.Method != MethodPassword || final.AttemptID == "" {
		t.Fatalf("unexpected final state %+v", final)
	}
	if final.AttemptID != states[1].AttemptID {
		t.Fatal("attempt id changed between loading and authenticated")
	}
	if p.lastIdentifier() != "user@x.com" {
		t.Fatalf("provider saw identifier %q", p.lastIdentifier())
	}
	for i := 1; i < len(states); i++ {
		if states[i].SameAs(states[i-1]) {
			t.Fatalf("consecutive identical states at %d", i)
		}
	}
	if got := c.MetricsSnapshot().Counters[MetricSignInSuccess]; got != 1 {
		t.Fatalf("expected one success, got %d", got)
	}
}

func TestSubmitEmptyFieldsNeverLoads(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(t, testConfig(), p)
	sub := c.Observe()
	defer sub.Close()

	c.Submit(Credentials{})

	first := nextWithin(t, sub)
	got := nextWithin(t, sub)
	if first.Kind != StateIdle || got.Kind != StateIdle {
		t.Fatalf("expected idle states, got %v then %v", first, got)
	}
	if got.Error != ErrorValidation || got.Message != DefaultConfig().Messages.InvalidIdentifier {
		t.Fatalf("unexpected validation state %+v", got)
	}
	if p.calls.Load() != 0 {
		t.Fatal("provider called for invalid input")
	}

	c.Submit(Credentials{Identifier: "user@x.com"})
	got = nextWithin(t, sub)
	if got.Kind != StateIdle || got.Message != DefaultConfig().Messages.InvalidSecret {
		t.Fatalf("unexpected secret validation state %+v", got)
	}
	if c.MetricsSnapshot().Counters[MetricSubmit] != 0 {
		t.Fatal("invalid submits must not enter loading")
	}
}

func TestSubmitProviderFailureShowsMessage(t *testing.T) {
	p := &fakeProvider{password: func(context.Context, string, string) (string, error) {
		return "", errors.New("bad password")
	}}
	c := newTestClient(t, testConfig(), p)
	sub := c.Observe()
	defer sub.Close()

	c.Submit(Credentials{Identifier: "user@x.com", Secret: "wrong"})

	states := collectUntil(t, sub, StateFailed)
	final := states[len(states)-1]
	if final.Message != "bad password" || final.Error != ErrorProvider {
		t.Fatalf("unexpected failed state %+v", final)
	}
}

func TestSubmitProviderErrorMessages(t *testing.T) {
	msgs := DefaultConfig().Messages
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
		wantMsg  string
	}{
		{name: "explicit message", err: &ProviderError{Code: CodeInvalidCredentials, Message: "Wrong password"}, wantKind: ErrorProvider, wantMsg: "Wrong password"},
		{name: "code only", err: &ProviderError{Code: CodeUserDisabled}, wantKind: ErrorProvider, wantMsg: msgs.ProviderFailure},
		{name: "unavailable", err: &ProviderError{Code: CodeUnavailable}, wantKind: ErrorProvider, wantMsg: msgs.Unavailable},
		{name: "provider throttled", err: &ProviderError{Code: CodeTooManyAttempts}, wantKind: ErrorThrottled, wantMsg: msgs.Throttled},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakeProvider{password: func(context.Context, string, string) (string, error) {
				return "", tc.err
			}}
			c := newTestClient(t, testConfig(), p)
			sub := c.Observe()
			defer sub.Close()

			c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
			states := collectUntil(t, sub, StateFailed)
			final := states[len(states)-1]
			if final.Error != tc.wantKind || final.Message != tc.wantMsg {
				t.Fatalf("got %+v", final)
			}
		})
	}
}

func TestSubmitWhileLoadingIsIgnored(t *testing.T) {
	release := make(chan struct{})
	p := &fakeProvider{password: func(context.Context, string, string) (string, error) {
		<-release
		return "42", nil
	}}
	c := newTestClient(t, testConfig(), p)

	c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
	if c.State().Kind != StateLoading {
		t.Fatalf("expected loading, got %v", c.State())
	}
	c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
	close(release)

	waitFor(t, func() bool { return c.State().Kind == StateAuthenticated })
	if p.calls.Load() != 1 {
		t.Fatalf("expected one provider call, got %d", p.calls.Load())
	}
	if got := c.MetricsSnapshot().Counters[MetricSubmitRejectedInFlight]; got != 1 {
		t.Fatalf("expected one rejected submit, got %d", got)
	}

	c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
	if p.calls.Load() != 1 || c.State().Kind != StateAuthenticated {
		t.Fatal("submit while authenticated must be a no-op")
	}
}

func TestResetDuringLoadingDiscardsLateResult(t *testing.T) {
	release := make(chan struct{})
	returned := make(chan struct{})
	p := &fakeProvider{password: func(context.Context, string, string) (string, error) {
		<-release
		defer close(returned)
		return "42", nil
	}}
	c := newTestClient(t, testConfig(), p)

	c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
	c.Reset()
	if c.State().Kind != StateIdle {
		t.Fatalf("expected idle after reset, got %v", c.State())
	}

	close(release)
	<-returned
	waitFor(t, func() bool { return c.MetricsSnapshot().Counters[MetricStaleCompletion] == 1 })
	if c.State().Kind != StateIdle {
		t.Fatalf("late result applied: %v", c.State())
	}
}

func TestResubmitAfterFailure(t *testing.T) {
	var n atomic.Int64
	p := &fakeProvider{password: func(context.Context, string, string) (string, error) {
		if n.Add(1) == 1 {
			return "", errors.New("bad password")
		}
		return "42", nil
	}}
	c := newTestClient(t, testConfig(), p)

	c.Submit(Credentials{Identifier: "user@x.com", Secret: "wrong"})
	waitFor(t, func() bool { return c.State().Kind == StateFailed })

	c.Submit(Credentials{Identifier: "user@x.com", Secret: "right"})
	waitFor(t, func() bool { return c.State().Kind == StateAuthenticated })
}

func TestProviderTimeout(t *testing.T) {
	p := &fakeProvider{password: func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	cfg := testConfig()
	cfg.Provider.Timeout = 20 * time.Millisecond
	c := newTestClient(t, cfg, p)

	c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
	waitFor(t, func() bool { return c.State().Kind == StateFailed })

	if got := c.State().Message; got != cfg.Messages.ProviderTimeout {
		t.Fatalf("unexpected message %q", got)
	}
	if c.MetricsSnapshot().Counters[MetricProviderTimeout] != 1 {
		t.Fatal("timeout not counted")
	}
}

func TestProviderIgnoringContextIsAbandoned(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	p := &fakeProvider{password: func(context.Context, string, string) (string, error) {
		<-block
		return "42", nil
	}}
	cfg := testConfig()
	cfg.Provider.Timeout = 20 * time.Millisecond
	c := newTestClient(t, cfg, p)

	c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
	waitFor(t, func() bool { return c.State().Kind == StateFailed })
}

func TestProviderPanicBecomesFailure(t *testing.T) {
	p := &fakeProvider{password: func(context.Context, string, string) (string, error) {
		panic("boom")
	}}
	c := newTestClient(t, testConfig(), p)

	c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
	waitFor(t, func() bool { return c.State().Kind == StateFailed })

	if c.State().Message != DefaultConfig().Messages.ProviderFailure {
		t.Fatalf("unexpected message %q", c.State().Message)
	}
	if c.MetricsSnapshot().Counters[MetricProviderPanic] != 1 {
		t.Fatal("panic not counted")
	}
}

func TestThrottleStopsProviderCalls(t *testing.T) {
	p := &fakeProvider{password: func(context.Context, string, string) (string, error) {
		return "", &ProviderError{Code: CodeInvalidCredentials, Message: "Wrong password"}
	}}
	cfg := testConfig()
	cfg.Throttle.MaxFailedAttempts = 2
	c := newTestClient(t, cfg, p)

	for i := 0; i < 2; i++ {
		c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
		waitFor(t, func() bool { return c.State().Kind == StateFailed })
		c.Reset()
	}

	c.Submit(Credentials{Identifier: "USER@x.com", Secret: "pw"})
	waitFor(t, func() bool { return c.State().Kind == StateFailed })

	if got := c.State(); got.Error != ErrorThrottled || got.Message != cfg.Messages.Throttled {
		t.Fatalf("expected throttled state, got %+v", got)
	}
	if p.calls.Load() != 2 {
		t.Fatalf("provider called %d times", p.calls.Load())
	}
}

func TestOutagesDoNotSpendAttemptBudget(t *testing.T) {
	p := &fakeProvider{password: func(context.Context, string, string) (string, error) {
		return "", &ProviderError{Code: CodeUnavailable}
	}}
	cfg := testConfig()
	cfg.Throttle.MaxFailedAttempts = 1
	c := newTestClient(t, cfg, p)

	for i := 0; i < 3; i++ {
		c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
		waitFor(t, func() bool { return c.State().Kind == StateFailed })
		if c.State().Error != ErrorProvider {
			t.Fatalf("attempt %d throttled", i)
		}
		c.Reset()
	}
}

func newTokenPair(t *testing.T) (*idtoken.Signer, *idtoken.Verifier) {
	t.Helper()
	signer, err := idtoken.NewSigner(idtoken.Config{
		SigningMethod: idtoken.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "accounts.local",
		TTL:           time.Minute,
	})
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	verifier, err := idtoken.NewVerifier(signer.VerifierConfig())
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	return signer, verifier
}

func TestSubmitFederatedSuccess(t *testing.T) {
	signer, verifier := newTokenPair(t)
	tok, err := signer.Sign(idtoken.Identity{Subject: "fed-7", Email: "user@x.com"})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	p := &fakeProvider{token: func(_ context.Context, token IdentityToken) (string, error) {
		claims, err := verifier.Verify(token.Value)
		if err != nil {
			return "", err
		}
		return claims.Subject, nil
	}}
	cfg := testConfig()
	cfg.Provider.VerifyIdentityTokens = true
	c := newTestClient(t, cfg, p, func(b *Builder) {
		b.WithIdentityProvider(fakeIdentity{token: IdentityToken{Value: tok, ProviderID: "local"}}).
			WithTokenVerifier(verifier)
	})

	c.SubmitFederated()
	waitFor(t, func() bool { return c.State().Kind == StateAuthenticated })

	if got := c.State(); got.UserID != "fed-7" || got.Method != MethodFederated {
		t.Fatalf("unexpected state %+v", got)
	}
}

func TestSubmitFederatedRejectsBadToken(t *testing.T) {
	_, verifier := newTokenPair(t)
	p := &fakeProvider{token: func(context.Context, IdentityToken) (string, error) { return "1", nil }}
	cfg := testConfig()
	cfg.Provider.VerifyIdentityTokens = true
	c := newTestClient(t, cfg, p, func(b *Builder) {
		b.WithIdentityProvider(fakeIdentity{token: IdentityToken{Value: "not-a-jwt"}}).
			WithTokenVerifier(verifier)
	})

	c.SubmitFederated()
	waitFor(t, func() bool { return c.State().Kind == StateFailed })
	if p.calls.Load() != 0 {
		t.Fatal("provider saw an unverified token")
	}
}

func TestSubmitFederatedCancelledReturnsToIdle(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(t, testConfig(), p, func(b *Builder) {
		b.WithIdentityProvider(fakeIdentity{err: ErrCancelled})
	})
	sub := c.Observe()
	defer sub.Close()

	c.SubmitFederated()

	nextWithin(t, sub)
	if got := nextWithin(t, sub); got.Kind != StateLoading || got.Method != MethodFederated {
		t.Fatalf("expected federated loading, got %+v", got)
	}
	got := nextWithin(t, sub)
	if got.Kind != StateIdle || got.Error != ErrorCancelled || got.Message != DefaultConfig().Messages.Cancelled {
		t.Fatalf("unexpected state %+v", got)
	}
}

func TestSubmitFederatedWithoutIdentityProvider(t *testing.T) {
	sink := NewChannelSink(8)
	cfg := testConfig()
	cfg.Audit.Enabled = true
	c := newTestClient(t, cfg, &fakeProvider{}, func(b *Builder) { b.WithAuditSink(sink) })

	c.SubmitFederated()
	if got := c.State(); got.Kind != StateFailed || got.Message != DefaultConfig().Messages.Unavailable {
		t.Fatalf("unexpected state %+v", got)
	}

	select {
	case ev := <-sink.Events():
		if ev.EventType != AuditSignInFailure || ev.Error != ErrIdentityProviderRequired.Error() {
			t.Fatalf("unexpected audit event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event for missing identity provider")
	}
}

func TestRestoreAndSignOut(t *testing.T) {
	store := session.NewMemoryStore()
	cfg := testConfig()

	first := newTestClient(t, cfg, &fakeProvider{}, func(b *Builder) { b.WithSessionStore(store) })
	first.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
	waitFor(t, func() bool {
		_, err := store.Load(context.Background())
		return err == nil
	})
	first.Close()

	second := newTestClient(t, cfg, &fakeProvider{}, func(b *Builder) { b.WithSessionStore(store) })
	ok, err := second.Restore(context.Background())
	if err != nil || !ok {
		t.Fatalf("Restore = %v, %v", ok, err)
	}
	if got := second.State(); got.Kind != StateAuthenticated || got.UserID != "42" || got.Method != MethodRestored {
		t.Fatalf("unexpected restored state %+v", got)
	}

	if err := second.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if second.State().Kind != StateIdle {
		t.Fatal("expected idle after sign out")
	}
	if ok, err := second.Restore(context.Background()); ok || err != nil {
		t.Fatalf("Restore after sign out = %v, %v", ok, err)
	}
}

// blockingStore parks Load and Save until release is closed.
type blockingStore struct {
	release chan struct{}
	once    sync.Once
	loads   atomic.Int64
	saves   atomic.Int64
}

func (s *blockingStore) unblock() { s.once.Do(func() { close(s.release) }) }

func (s *blockingStore) Load(ctx context.Context) (*session.Record, error) {
	s.loads.Add(1)
	select {
	case <-s.release:
		return nil, ErrSessionNotFound
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *blockingStore) Save(ctx context.Context, _ *session.Record) error {
	s.saves.Add(1)
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *blockingStore) Clear(context.Context) error { return nil }

func TestSlowSessionStoreDoesNotStallSubmitOrReset(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	c := newTestClient(t, testConfig(), &fakeProvider{}, func(b *Builder) { b.WithSessionStore(store) })
	// Runs before the client's own cleanup so Close can drain the save goroutine.
	t.Cleanup(store.unblock)

	restored := make(chan error, 1)
	go func() {
		_, err := c.Restore(context.Background())
		restored <- err
	}()
	waitFor(t, func() bool { return store.loads.Load() == 1 })

	c.Submit(Credentials{Identifier: "user@x.com", Secret: "secret"})
	waitFor(t, func() bool { return c.State().Kind == StateAuthenticated })

	done := make(chan struct{})
	go func() {
		c.Reset()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Reset blocked behind session store I/O")
	}
	if c.State().Kind != StateIdle {
		t.Fatalf("expected idle after reset, got %v", c.State())
	}

	store.unblock()
	if err := <-restored; err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
}

func TestRestoreTreatsMissingSessionAsSignedOut(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	store.unblock()
	c := newTestClient(t, testConfig(), &fakeProvider{}, func(b *Builder) { b.WithSessionStore(store) })

	if ok, err := c.Restore(context.Background()); ok || err != nil {
		t.Fatalf("Restore = %v, %v", ok, err)
	}
	if c.State().Kind != StateIdle {
		t.Fatalf("expected idle, got %v", c.State())
	}
}

func TestRestoreWithoutPersistence(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Persist = false
	c := newTestClient(t, cfg, &fakeProvider{})

	if ok, err := c.Restore(context.Background()); ok || err != nil {
		t.Fatalf("Restore = %v, %v", ok, err)
	}
}

func TestClientWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	p := &fakeProvider{password: func(_ context.Context, _, secret string) (string, error) {
		if secret != "right" {
			return "", &ProviderError{Code: CodeInvalidCredentials, Message: "Wrong password"}
		}
		return "42", nil
	}}
	cfg := testConfig()
	cfg.Session.DeviceID = "phone"
	c := newTestClient(t, cfg, p, func(b *Builder) { b.WithRedis(rdb) })

	c.Submit(Credentials{Identifier: "user@x.com", Secret: "wrong"})
	waitFor(t, func() bool { return c.State().Kind == StateFailed })
	if got, _ := mr.Get("as:sf:user@x.com"); got != "1" {
		t.Fatalf("expected one failure recorded, got %q", got)
	}

	c.Submit(Credentials{Identifier: "user@x.com", Secret: "right"})
	waitFor(t, func() bool { return c.State().Kind == StateAuthenticated })
	waitFor(t, func() bool { return mr.Exists("as:current:phone") })
	if mr.Exists("as:sf:user@x.com") {
		t.Fatal("failure counter not cleared after success")
	}
}

func TestAuditEventsFollowAttempt(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	sink := &lockedWriterSink{mu: &mu, sink: NewJSONWriterSink(&buf)}

	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	c := newTestClient(t, cfg, &fakeProvider{}, func(b *Builder) { b.WithAuditSink(sink) })

	c.Submit(Credentials{})
	c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
	waitFor(t, func() bool { return c.State().Kind == StateAuthenticated })
	c.Reset()
	c.Close()

	mu.Lock()
	out := buf.String()
	mu.Unlock()

	want := []string{AuditSignInValidationFailed, AuditSignInSubmit, AuditSignInSuccess, AuditSessionReset}
	last := -1
	for _, ev := range want {
		idx := strings.Index(out, `"event_type":"`+ev+`"`)
		if idx < 0 || idx < last {
			t.Fatalf("event %s missing or out of order in:\n%s", ev, out)
		}
		last = idx
	}
	if strings.Contains(out, `"pw"`) {
		t.Fatal("secret leaked into audit log")
	}
	if c.AuditDropped() != 0 {
		t.Fatalf("unexpected drops: %d", c.AuditDropped())
	}
}

type lockedWriterSink struct {
	mu   *sync.Mutex
	sink *JSONWriterSink
}

func (s *lockedWriterSink) Emit(ctx context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.Emit(ctx, event)
}

func TestProviderCallsAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	c := newTestClient(t, testConfig(), &fakeProvider{}, func(b *Builder) { b.WithTracerProvider(tp) })
	c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
	waitFor(t, func() bool { return len(recorder.Ended()) == 1 })

	span := recorder.Ended()[0]
	if span.Name() != "authsession.SignInWithPassword" {
		t.Fatalf("unexpected span %q", span.Name())
	}
	for _, kv := range span.Attributes() {
		if strings.Contains(kv.Value.Emit(), "pw") {
			t.Fatal("secret recorded on span")
		}
	}
}

func TestCloseEndsSubscriptionsAndRejectsCalls(t *testing.T) {
	c := newTestClient(t, testConfig(), &fakeProvider{})
	sub := c.Observe()
	nextWithin(t, sub)

	c.Close()
	c.Close()

	if _, err := sub.Next(context.Background()); !errors.Is(err, ErrSubscriptionClosed) {
		t.Fatalf("expected ErrSubscriptionClosed, got %v", err)
	}
	c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
	if c.State().Kind != StateIdle {
		t.Fatal("closed client changed state")
	}
	if _, err := c.Restore(context.Background()); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
	if err := c.SignOut(context.Background()); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}

func TestBuildRequiresProvider(t *testing.T) {
	if _, err := New().Build(); !errors.Is(err, ErrProviderRequired) {
		t.Fatalf("expected ErrProviderRequired, got %v", err)
	}

	b := New().WithAuthProvider(&fakeProvider{}).WithIdentityProvider(fakeIdentity{})
	if _, err := b.Build(); err == nil {
		t.Fatal("expected verifier requirement error")
	}

	b = New().WithAuthProvider(&fakeProvider{})
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer c.Close()
	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}
}

type panickingAuditSink struct{}

func (panickingAuditSink) Emit(context.Context, AuditEvent) { panic("audit backend down") }

func TestPanickingAuditSinkIsCounted(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	c := newTestClient(t, cfg, &fakeProvider{}, func(b *Builder) { b.WithAuditSink(panickingAuditSink{}) })

	c.Submit(Credentials{Identifier: "user@x.com", Secret: "pw"})
	waitFor(t, func() bool { return c.State().Kind == StateAuthenticated })
	c.Close()

	if got := c.AuditSinkPanics(); got != 2 {
		t.Fatalf("expected submit and success events to be counted, got %d", got)
	}
}
