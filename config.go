package authsession

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Config holds every tunable of a [Client].
//
// Config instances are configured once, passed to [Builder.WithConfig] and then
// treated as immutable; the builder keeps its own copy.
type Config struct {
	Validation ValidationConfig `koanf:"validation"`
	Provider   ProviderConfig   `koanf:"provider"`
	Throttle   ThrottleConfig   `koanf:"throttle"`
	Session    SessionConfig    `koanf:"session"`
	Audit      AuditConfig      `koanf:"audit"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Messages   MessagesConfig   `koanf:"messages"`
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig bounds the credentials accepted by Submit before any
// provider is contacted.
type ValidationConfig struct {
	RequireEmail        bool `koanf:"require_email"`
	MaxIdentifierLength int  `koanf:"max_identifier_length"`
	MaxSecretLength     int  `koanf:"max_secret_length"`
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderConfig controls calls into the AuthProvider and IdentityProvider.
type ProviderConfig struct {
	// Timeout bounds one provider call. Zero disables the bound.
	Timeout              time.Duration `koanf:"timeout"`
	// VerifyIdentityTokens rejects federated tokens that fail the configured
	// idtoken.Verifier before the AuthProvider sees them.
	VerifyIdentityTokens bool          `koanf:"verify_identity_tokens"`
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig limits failed sign-in attempts per identifier.
type ThrottleConfig struct {
	Enabled           bool          `koanf:"enabled"`
	MaxFailedAttempts int           `koanf:"max_failed_attempts"`
	Cooldown          time.Duration `koanf:"cooldown"`
	RedisPrefix       string        `koanf:"redis_prefix"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls persistence of the signed-in marker.
type SessionConfig struct {
	Persist     bool          `koanf:"persist"`
	TTL         time.Duration `koanf:"ttl"`
	RedisPrefix string        `koanf:"redis_prefix"`
	DeviceID    string        `koanf:"device_id"`
	JitterRange time.Duration `koanf:"jitter_range"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
	DropIfFull bool `koanf:"drop_if_full"`
}

// MetricsConfig toggles in-process counters and the provider latency histogram.
type MetricsConfig struct {
	Enabled                 bool `koanf:"enabled"`
	EnableLatencyHistograms bool `koanf:"enable_latency_histograms"`
}

/*
====================================
MESSAGES CONFIG
====================================
*/

// MessagesConfig holds the user-facing text placed in AuthState.Message.
type MessagesConfig struct {
	InvalidIdentifier string `koanf:"invalid_identifier"`
	InvalidSecret     string `koanf:"invalid_secret"`
	ProviderFailure   string `koanf:"provider_failure"`
	ProviderTimeout   string `koanf:"provider_timeout"`
	Cancelled         string `koanf:"cancelled"`
	Throttled         string `koanf:"throttled"`
	Unavailable       string `koanf:"unavailable"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when Builder.WithConfig is not called.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Validation: ValidationConfig{
			RequireEmail:        true,
			MaxIdentifierLength: 254,
			MaxSecretLength:     1024,
		},
		Provider: ProviderConfig{
			Timeout:              30 * time.Second,
			VerifyIdentityTokens: true,
		},
		Throttle: ThrottleConfig{
			Enabled:           true,
			MaxFailedAttempts: 5,
			Cooldown:          15 * time.Minute,
			RedisPrefix:       "as",
		},
		Session: SessionConfig{
			Persist:     true,
			TTL:         30 * 24 * time.Hour,
			RedisPrefix: "as",
			DeviceID:    "default",
			JitterRange: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Messages: MessagesConfig{
			InvalidIdentifier: "*Enter valid email address",
			InvalidSecret:     "*Enter valid password",
			ProviderFailure:   "Sign in failed",
			ProviderTimeout:   "Sign in timed out, try again",
			Cancelled:         "Sign in cancelled",
			Throttled:         "Too many attempts, try again later",
			Unavailable:       "Sign in is unavailable right now",
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistent setting, if any.
func (c *Config) Validate() error {
	// Validation
	if c.Validation.MaxIdentifierLength <= 0 {
		return errors.New("Validation MaxIdentifierLength must be > 0")
	}
	if c.Validation.MaxSecretLength <= 0 {
		return errors.New("Validation MaxSecretLength must be > 0")
	}

	// Provider
	if c.Provider.Timeout < 0 {
		return errors.New("Provider Timeout must be >= 0")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxFailedAttempts <= 0 {
			return errors.New("Throttle MaxFailedAttempts must be > 0 when Enabled is true")
		}
		if c.Throttle.Cooldown <= 0 {
			return errors.New("Throttle Cooldown must be > 0 when Enabled is true")
		}
		if strings.ContainsAny(c.Throttle.RedisPrefix, " :") {
			return errors.New("Throttle RedisPrefix must not contain spaces or colons")
		}
	}

	// Session
	if c.Session.Persist {
		if c.Session.TTL <= 0 {
			return errors.New("Session TTL must be > 0 when Persist is true")
		}
		if strings.TrimSpace(c.Session.DeviceID) == "" {
			return errors.New("Session DeviceID must not be empty when Persist is true")
		}
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " :") {
		return errors.New("Session RedisPrefix must not contain spaces or colons")
	}
	if c.Session.JitterRange < 0 {
		return errors.New("Session JitterRange must be >= 0")
	}
	if c.Session.JitterRange > time.Duration((math.MaxInt64-1)/2) {
		return errors.New("Session JitterRange is too large")
	}
	if c.Session.JitterRange >= c.Session.TTL && c.Session.Persist {
		return errors.New("Session JitterRange must be smaller than TTL")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Enabled is true")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Enabled")
	}

	// Messages
	if c.Messages.InvalidIdentifier == "" || c.Messages.InvalidSecret == "" {
		return errors.New("Messages for validation failures must not be empty")
	}
	if c.Messages.ProviderFailure == "" {
		return errors.New("Messages ProviderFailure must not be empty")
	}

	return nil
}
