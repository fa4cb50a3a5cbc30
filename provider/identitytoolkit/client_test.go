package identitytoolkit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	authsession "github.com/MrEthical07/authsession"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, APIKey: "test-key", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func TestSignInWithPassword(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/accounts:signInWithPassword" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key")
		}
		var req passwordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Email != "user@x.com" || req.Password != "secret" || !req.ReturnSecureToken {
			t.Errorf("unexpected body %+v", req)
		}
		_ = json.NewEncoder(w).Encode(signInResponse{LocalID: "42", Email: req.Email})
	})

	uid, err := c.SignInWithPassword(context.Background(), "user@x.com", "secret")
	if err != nil || uid != "42" {
		t.Fatalf("SignInWithPassword = %q, %v", uid, err)
	}
}

func TestSignInWithIdentityToken(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts:signInWithIdp" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req idpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		form, err := url.ParseQuery(req.PostBody)
		if err != nil || form.Get("id_token") != "tok" || form.Get("providerId") != "google.com" {
			t.Errorf("unexpected post body %q", req.PostBody)
		}
		_ = json.NewEncoder(w).Encode(signInResponse{LocalID: "fed-1"})
	})

	uid, err := c.SignInWithIdentityToken(context.Background(), authsession.IdentityToken{Value: "tok"})
	if err != nil || uid != "fed-1" {
		t.Fatalf("SignInWithIdentityToken = %q, %v", uid, err)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		message  string
		wantCode string
		rejected bool
	}{
		{name: "unknown email", status: 400, message: "EMAIL_NOT_FOUND", wantCode: authsession.CodeUserNotFound, rejected: true},
		{name: "wrong password", status: 400, message: "INVALID_PASSWORD", wantCode: authsession.CodeInvalidCredentials, rejected: true},
		{name: "merged credentials error", status: 400, message: "INVALID_LOGIN_CREDENTIALS", wantCode: authsession.CodeInvalidCredentials, rejected: true},
		{name: "disabled", status: 400, message: "USER_DISABLED", wantCode: authsession.CodeUserDisabled},
		{name: "with detail", status: 400, message: "TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled", wantCode: authsession.CodeTooManyAttempts},
		{name: "server error", status: 503, message: "BACKEND_ERROR", wantCode: authsession.CodeUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				writeAPIError(w, tc.status, tc.message)
			})

			_, err := c.SignInWithPassword(context.Background(), "user@x.com", "pw")
			var pe *authsession.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if pe.Code != tc.wantCode || pe.CredentialsRejected() != tc.rejected {
				t.Fatalf("got code %q rejected=%v", pe.Code, pe.CredentialsRejected())
			}
			if !errors.Is(err, authsession.ErrProvider) {
				t.Fatal("expected ErrProvider match")
			}
		})
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := c.SignInWithPassword(context.Background(), "user@x.com", "pw")
	var pe *authsession.ProviderError
	if !errors.As(err, &pe) || pe.Code != authsession.CodeUnavailable {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestContextCancellation(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.SignInWithPassword(ctx, "user@x.com", "pw"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without api key")
	}
	if _, err := New(Config{APIKey: "k", BaseURL: "::bad"}); err == nil {
		t.Fatal("expected error for bad base url")
	}
}
