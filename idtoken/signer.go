package idtoken

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the subject data embedded in an issued token.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Signer issues identity tokens.
type Signer struct {
	config Config
	key    interface{}
	now    func() time.Time
}

// NewSigner validates cfg and returns a Signer. cfg.PrivateKey is required.
func NewSigner(cfg Config) (*Signer, error) {
	if len(cfg.PrivateKey) == 0 {
		return nil, errors.New("signer requires private key")
	}
	if cfg.SigningMethod == MethodEd25519 || cfg.SigningMethod == "" {
		if len(cfg.PublicKey) == 0 && len(cfg.VerifyKeys) == 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			cfg.PublicKey = []byte(priv.Public().(ed25519.PublicKey))
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}

	s := &Signer{config: cfg, now: time.Now}
	if cfg.SigningMethod == MethodHS256 {
		s.key = cfg.PrivateKey
	} else {
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		s.key = priv
	}
	return s, nil
}

// Sign issues a token for id.
func (s *Signer) Sign(id Identity) (string, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return "", ErrMissingSubject
	}

	now := s.now()
	claims := Claims{
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		Name:          id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
		},
	}
	if s.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.config.Audience}
	}

	token := jwt.NewWithClaims(signingMethod(s.config.SigningMethod), claims)
	if s.config.KeyID != "" {
		token.Header["kid"] = s.config.KeyID
	}
	return token.SignedString(s.key)
}

// VerifierConfig returns the configuration a [Verifier] needs to accept this
// signer's tokens.
func (s *Signer) VerifierConfig() Config {
	cfg := s.config
	if cfg.SigningMethod != MethodHS256 {
		cfg.PrivateKey = nil
	}
	return cfg
}
