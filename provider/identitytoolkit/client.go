package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	authsession "github.com/MrEthical07/authsession"
)

const (
	// DefaultBaseURL is the public Identity Toolkit endpoint.
	DefaultBaseURL = "https://identitytoolkit.googleapis.com"

	maxResponseBytes = 1 << 20
)

// Config describes the endpoint and credentials of the REST API.
type Config struct {
	BaseURL string
	APIKey  string
	// RequestURI is echoed to the API on federated sign-in.
	RequestURI string
	HTTPClient *http.Client
}

// Client implements authsession.AuthProvider over HTTP. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	requestURI string
	http       *http.Client
}

var _ authsession.AuthProvider = (*Client)(nil)

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("identitytoolkit: api key required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("identitytoolkit: invalid base url: %w", err)
	}
	requestURI := cfg.RequestURI
	if requestURI == "" {
		requestURI = "http://localhost"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		requestURI: requestURI,
		http:       httpClient,
	}, nil
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type idpRequest struct {
	PostBody          string `json:"postBody"`
	RequestURI        string `json:"requestUri"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email,omitempty"`
	IDToken string `json:"idToken,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignInWithPassword exchanges an email and password for the account id.
func (c *Client) SignInWithPassword(ctx context.Context, identifier, secret string) (string, error) {
	return c.signIn(ctx, "accounts:signInWithPassword", passwordRequest{
		Email:             identifier,
		Password:          secret,
		ReturnSecureToken: true,
	})
}

// SignInWithIdentityToken exchanges a federated id token for the account id.
func (c *Client) SignInWithIdentityToken(ctx context.Context, token authsession.IdentityToken) (string, error) {
	providerID := token.ProviderID
	if providerID == "" {
		providerID = "google.com"
	}
	body := url.Values{}
	body.Set("id_token", token.Value)
	body.Set("providerId", providerID)

	return c.signIn(ctx, "accounts:signInWithIdp", idpRequest{
		PostBody:          body.Encode(),
		RequestURI:        c.requestURI,
		ReturnSecureToken: true,
	})
}

func (c *Client) signIn(ctx context.Context, method string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/v1/" + method + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &authsession.ProviderError{Code: authsession.CodeUnavailable, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &authsession.ProviderError{Code: authsession.CodeUnavailable, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp.StatusCode, body)
	}

	var out signInResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &authsession.ProviderError{Code: authsession.CodeUnavailable, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.LocalID == "" {
		return "", &authsession.ProviderError{Code: authsession.CodeUnavailable, Err: errors.New("response has no localId")}
	}
	return out.LocalID, nil
}
