// Package authclient calls the external identity provider for the few
// operations that cannot be done from the JWT alone.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"bookkreate/pkg/domain"
)

// Client calls the identity provider over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents an identity provider error response.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs an identity provider client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// AnonymousSession is a provider-issued guest identity and its token.
type AnonymousSession struct {
	Token    string          `json:"token"`
	Identity domain.Identity `json:"identity"`
}

// CreateAnonymousSession mints a guest identity so visitors can try the
// product before signing up.
func (c *Client) CreateAnonymousSession(ctx context.Context) (AnonymousSession, error) {
	var resp AnonymousSession
	if err := c.doJSON(ctx, http.MethodPost, "/auth/anonymous", "", nil, &resp); err != nil {
		return AnonymousSession{}, err
	}
	resp.Identity.Anonymous = true
	return resp, nil
}

// Me resolves a bearer token to its identity on the provider side. Used as
// the fallback when local JWKS verification is unavailable.
func (c *Client) Me(ctx context.Context, token string) (domain.Identity, error) {
	var ident domain.Identity
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", token, nil, &ident); err != nil {
		return domain.Identity{}, err
	}
	return ident, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Code: strings.TrimSpace(errResp.Code)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
