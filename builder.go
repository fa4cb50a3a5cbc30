package authsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/authsession/internal/audit"
	"github.com/MrEthical07/authsession/internal/loop"
	"github.com/MrEthical07/authsession/internal/rate"
	"github.com/MrEthical07/authsession/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/authsession"

// Builder assembles a [Client]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	provider     AuthProvider
	identity     IdentityProvider
	verifier     TokenVerifier
	sessionStore session.Store
	auditSink    AuditSink
	logger       *slog.Logger
	tracers      trace.TracerProvider

	built bool
}

// New returns a Builder holding the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the session store and the failed-attempt limiter with
// Redis. Without it both live in process memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuthProvider sets the provider that authenticates credentials and
// identity tokens. It is required.
func (b *Builder) WithAuthProvider(p AuthProvider) *Builder {
	b.provider = p
	return b
}

// WithIdentityProvider enables SubmitFederated.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identity = p
	return b
}

func (b *Builder) WithTokenVerifier(v TokenVerifier) *Builder {
	b.verifier = v
	return b
}

// WithSessionStore overrides the store chosen from WithRedis.
func (b *Builder) WithSessionStore(s session.Store) *Builder {
	b.sessionStore = s
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithTracerProvider sets where provider-call spans go. The global otel
// provider is used otherwise.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracers = tp
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and starts the client's event loop.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.provider == nil {
		return nil, ErrProviderRequired
	}
	if cfg.Provider.VerifyIdentityTokens && b.verifier == nil && b.identity != nil {
		return nil, errors.New("Provider VerifyIdentityTokens requires a token verifier when an identity provider is set")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tracers := b.tracers
	if tracers == nil {
		tracers = otel.GetTracerProvider()
	}

	// -------- SESSION STORE --------
	var sessions session.Store
	switch {
	case !cfg.Session.Persist:
	case b.sessionStore != nil:
		sessions = b.sessionStore
	case b.redis != nil:
		sessions = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.DeviceID, cfg.Session.JitterRange)
	default:
		sessions = session.NewMemoryStore()
	}

	// -------- THROTTLE --------
	var limiter failureLimiter
	if cfg.Throttle.Enabled {
		rc := rate.Config{
			MaxFailedAttempts: cfg.Throttle.MaxFailedAttempts,
			Cooldown:          cfg.Throttle.Cooldown,
			Prefix:            cfg.Throttle.RedisPrefix,
		}
		if b.redis != nil {
			limiter = rate.NewRedis(b.redis, rc)
		} else {
			limiter = rate.NewMemory(rc)
		}
	}

	dispatcher := audit.NewDispatcher(audit.Config(cfg.Audit), b.auditSink,
		audit.WithPanicHandler(func(ev audit.Event, p any) {
			logger.Error("authsession: audit sink panicked", "event_type", ev.EventType, "panic", fmt.Sprint(p))
		}))

	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		config:       cfg,
		provider:     b.provider,
		identity:     b.identity,
		verifier:     b.verifier,
		sessions:     sessions,
		limiter:      limiter,
		store:        newStateStore(idleState()),
		audit:        dispatcher,
		metrics:      NewMetrics(cfg.Metrics),
		logger:       logger,
		tracer:       tracers.Tracer(tracerName),
		now:          time.Now,
		newAttemptID: uuid.NewString,
		ctx:          ctx,
		cancel:       cancel,
	}
	c.loop = loop.New(loop.WithPanicHandler(func(p any) {
		logger.Error("authsession: event loop recovered from panic", "panic", fmt.Sprint(p))
	}))

	logger.Debug("authsession: client started",
		"persist_session", sessions != nil,
		"throttle", limiter != nil,
		"federated", b.identity != nil,
	)

	b.built = true

	return c, nil
}
