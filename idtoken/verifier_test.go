package idtoken

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	_, priv := newEdKeys(t)
	signer, err := NewSigner(Config{
		PrivateKey: priv,
		Issuer:     "accounts.local",
		Audience:   "jetbee",
		TTL:        time.Minute,
	})
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	tok, err := signer.Sign(Identity{Subject: "42", Email: "user@x.com", EmailVerified: true})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	v, err := NewVerifier(signer.VerifierConfig())
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	claims, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "42" || claims.Email != "user@x.com" || !claims.EmailVerified {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	v, err := NewVerifier(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := v.Verify(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyEnforcesIssuerAudienceAndExpiry(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	signer, err := NewSigner(Config{SigningMethod: MethodHS256, PrivateKey: secret, Issuer: "other", Audience: "jetbee"})
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	wrongIssuer, err := signer.Sign(Identity{Subject: "42"})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	v, err := NewVerifier(Config{SigningMethod: MethodHS256, PrivateKey: secret, Issuer: "accounts.local", Audience: "jetbee"})
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	if _, err := v.Verify(wrongIssuer); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected issuer mismatch to fail, got %v", err)
	}

	expiredSigner, err := NewSigner(Config{SigningMethod: MethodHS256, PrivateKey: secret, Issuer: "accounts.local", Audience: "jetbee"})
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	expiredSigner.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredSigner.Sign(Identity{Subject: "42"})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if _, err := v.Verify(expired); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestVerifyKeyIDRotation(t *testing.T) {
	pubA, privA := newEdKeys(t)
	pubB, _ := newEdKeys(t)

	signer, err := NewSigner(Config{PrivateKey: privA, PublicKey: pubA, KeyID: "a"})
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	tok, err := signer.Sign(Identity{Subject: "42"})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	v, err := NewVerifier(Config{VerifyKeys: map[string][]byte{"a": pubA, "b": pubB}})
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	if _, err := v.Verify(tok); err != nil {
		t.Fatalf("expected kid a to verify: %v", err)
	}

	onlyB, err := NewVerifier(Config{VerifyKeys: map[string][]byte{"b": pubB}})
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	if _, err := onlyB.Verify(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected unknown kid to fail, got %v", err)
	}
}

func TestNewVerifierRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "ed25519 without key", cfg: Config{SigningMethod: MethodEd25519}},
		{name: "hs256 without secret", cfg: Config{SigningMethod: MethodHS256}},
		{name: "unknown method", cfg: Config{SigningMethod: "rs256", PrivateKey: []byte("x")}},
		{name: "leeway too large", cfg: Config{SigningMethod: MethodHS256, PrivateKey: []byte("x"), Leeway: time.Hour}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewVerifier(tc.cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

func TestSignRequiresSubject(t *testing.T) {
	signer, err := NewSigner(Config{SigningMethod: MethodHS256, PrivateKey: []byte("0123456789abcdef")})
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	if _, err := signer.Sign(Identity{}); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}
