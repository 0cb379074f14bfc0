package authsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"casaro.io/internal/auth"
)

var _ Service = (*Client)(nil)

// Client implements Service over the platform's REST auth API.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures Client behavior.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a REST client rooted at baseURL (e.g. https://api.casaro.io).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type credentialsPayload struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Identity  identityPayload `json:"identity"`
}

type identityPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

func (p identityPayload) toIdentity(now time.Time) (auth.Identity, error) {
	role, ok := auth.ParseRole(p.Role)
	if !ok {
		return auth.Identity{}, fmt.Errorf("%w: unknown role %q", ErrUnavailable, p.Role)
	}
	return auth.Identity{
		ID:          p.ID,
		Email:       auth.NormalizeEmail(p.Email),
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Role:        role,
		Permissions: auth.PermissionsForRole(role),
		LastActive:  now,
	}, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (Credentials, error) {
	body := map[string]string{"email": email, "password": password}
	return c.credentialsCall(ctx, http.MethodPost, "/v1/auth/login", body, "")
}

func (c *Client) Register(ctx context.Context, reg Registration) (Credentials, error) {
	if err := reg.Validate(); err != nil {
		return Credentials{}, err
	}
	body := map[string]string{
		"email":            reg.Email,
		"password":         reg.Password,
		"confirm_password": reg.ConfirmPassword,
		"first_name":       reg.FirstName,
		"last_name":        reg.LastName,
		"role":             string(reg.Role),
	}
	return c.credentialsCall(ctx, http.MethodPost, "/v1/auth/register", body, "")
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/auth/forgot-password", map[string]string{"email": email}, "")
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}
	return c.statusError(resp)
}

func (c *Client) Refresh(ctx context.Context, token string) (Credentials, error) {
	return c.credentialsCall(ctx, http.MethodPost, "/v1/auth/refresh", nil, token)
}

func (c *Client) VerifyToken(ctx context.Context, token string) (auth.Identity, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/auth/me", nil, token)
	if err != nil {
		return auth.Identity{}, err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return auth.Identity{}, c.statusError(resp)
	}
	var payload identityPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return payload.toIdentity(time.Now().UTC())
}

func (c *Client) credentialsCall(ctx context.Context, method, path string, body any, token string) (Credentials, error) {
	resp, err := c.do(ctx, method, path, body, token)
	if err != nil {
		return Credentials{}, err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Credentials{}, c.statusError(resp)
	}
	var payload credentialsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	id, err := payload.Identity.toIdentity(time.Now().UTC())
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Token: payload.Token, ExpiresAt: payload.ExpiresAt, Identity: id}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// statusError maps HTTP status codes onto the service error taxonomy.
func (c *Client) statusError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if payload.Error == "invalid token" {
			return auth.ErrInvalidToken
		}
		return ErrInvalidCredentials
	case http.StatusNotFound:
		return ErrAccountNotFound
	case http.StatusConflict:
		return ErrEmailExists
	case http.StatusBadRequest:
		if payload.Error != "" {
			return fmt.Errorf("%w: %s", ErrValidation, payload.Error)
		}
		return ErrValidation
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
