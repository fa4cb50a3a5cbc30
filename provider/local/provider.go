package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	authsession "github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/idtoken"
)

const (
	msgUserNotFound    = "There is no user record corresponding to this identifier."
	msgWrongPassword   = "The password is invalid or the user does not have a password."
	msgUserDisabled    = "The user account has been disabled by an administrator."
	msgInvalidIdentity = "The supplied auth credential is malformed or has expired."
)

// User is one account known to the provider.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Disabled     bool
}

// Config configures a [Provider].
type Config struct {
	Hash  HashConfig
	Users []User
	// Verifier checks identity tokens. Without it federated sign-in is refused.
	Verifier authsession.TokenVerifier
}

// Provider implements authsession.AuthProvider against an in-memory user
// table. It is safe for concurrent use.
type Provider struct {
	hash     HashConfig
	verifier authsession.TokenVerifier

	// dummyHash is verified when the user is unknown so that both outcomes
	// cost the same.
	dummyHash string

	mu      sync.RWMutex
	byEmail map[string]User
}

var _ authsession.AuthProvider = (*Provider)(nil)

// NewProvider validates cfg and returns a Provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Hash == (HashConfig{}) {
		cfg.Hash = DefaultHashConfig()
	}
	dummy, err := HashPassword(cfg.Hash, "local-provider-dummy")
	if err != nil {
		return nil, err
	}

	p := &Provider{
		hash:      cfg.Hash,
		verifier:  cfg.Verifier,
		dummyHash: dummy,
		byEmail:   make(map[string]User, len(cfg.Users)),
	}
	for _, u := range cfg.Users {
		if err := p.put(u); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// AddUser hashes password and stores the account, replacing any account with
// the same email.
func (p *Provider) AddUser(id, email, password string) error {
	hash, err := HashPassword(p.hash, password)
	if err != nil {
		return err
	}
	return p.put(User{ID: id, Email: email, PasswordHash: hash})
}

// SetDisabled toggles an account. It reports whether the account exists.
func (p *Provider) SetDisabled(email string, disabled bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := emailKey(email)
	u, ok := p.byEmail[key]
	if ok {
		u.Disabled = disabled
		p.byEmail[key] = u
	}
	return ok
}

func (p *Provider) put(u User) error {
	if strings.TrimSpace(u.ID) == "" || strings.TrimSpace(u.Email) == "" {
		return errors.New("local: user needs an id and an email")
	}
	if u.PasswordHash != "" {
		if _, err := decodeHash(u.PasswordHash); err != nil {
			return fmt.Errorf("local: user %s: %w", u.ID, err)
		}
	}

	p.mu.Lock()
	p.byEmail[emailKey(u.Email)] = u
	p.mu.Unlock()
	return nil
}

func (p *Provider) lookup(email string) (User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.byEmail[emailKey(email)]
	return u, ok
}

func (p *Provider) SignInWithPassword(ctx context.Context, identifier, secret string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	u, ok := p.lookup(identifier)
	hash := u.PasswordHash
	if !ok || hash == "" {
		hash = p.dummyHash
	}
	match, err := verifyPassword(secret, hash)
	if err != nil {
		return "", &authsession.ProviderError{Code: authsession.CodeUnavailable, Err: err}
	}

	switch {
	case !ok:
		return "", &authsession.ProviderError{Code: authsession.CodeUserNotFound, Message: msgUserNotFound}
	case u.PasswordHash == "" || !match:
		return "", &authsession.ProviderError{Code: authsession.CodeInvalidCredentials, Message: msgWrongPassword}
	case u.Disabled:
		return "", &authsession.ProviderError{Code: authsession.CodeUserDisabled, Message: msgUserDisabled}
	}
	return u.ID, nil
}

// SignInWithIdentityToken accepts a token from the configured verifier. A
// verified email links the token to an existing account; otherwise the token
// subject becomes the user id.
func (p *Provider) SignInWithIdentityToken(ctx context.Context, token authsession.IdentityToken) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.verifier == nil {
		return "", &authsession.ProviderError{Code: authsession.CodeUnavailable, Err: errors.New("local: no token verifier configured")}
	}

	claims, err := p.verifier.Verify(token.Value)
	if err != nil {
		return "", &authsession.ProviderError{Code: authsession.CodeInvalidToken, Message: msgInvalidIdentity, Err: err}
	}

	if claims.Email != "" && claims.EmailVerified {
		if u, ok := p.lookup(claims.Email); ok {
			if u.Disabled {
				return "", &authsession.ProviderError{Code: authsession.CodeUserDisabled, Message: msgUserDisabled}
			}
			return u.ID, nil
		}
	}
	return federatedUserID(token.ProviderID, claims), nil
}

func federatedUserID(providerID string, claims *idtoken.Claims) string {
	if providerID == "" {
		providerID = "local"
	}
	return providerID + ":" + claims.Subject
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
