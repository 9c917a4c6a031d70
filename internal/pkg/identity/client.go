package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/CodeLensApp/CodeLens/internal/pkg/env"
)

// ErrUnauthorized marks credentials or tokens the identity provider rejected.
var ErrUnauthorized = errors.New("identity: unauthorized")

// AuthUser is the provider-side identity record. Its ID becomes the uid of
// our own user row.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the token bundle the provider issues on signup and login.
type Session struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	RefreshToken string   `json:"refresh_token"`
	User         AuthUser `json:"user"`
}

// Client talks to the hosted identity provider's auth REST API. Account
// storage lives in our own database; the provider only owns credentials and
// token verification.
type Client struct {
	BaseURL    string
	AnonKey    string
	HTTPClient *http.Client
}

// NewClientFromEnv builds the identity client from environment config.
func NewClientFromEnv() *Client {
	return &Client{
		BaseURL:    strings.TrimRight(env.GetEnv("SUPABASE_URL", ""), "/"),
		AnonKey:    strings.TrimSpace(env.GetEnv("SUPABASE_ANON_KEY", "")),
		HTTPClient: &http.Client{},
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp creates a credential record at the provider and returns the new
// identity plus an initial session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	if err := c.postJSON(ctx, "/auth/v1/signup", credentials{Email: email, Password: password}, &session); err != nil {
		return nil, err
	}
	if session.User.ID == "" {
		return nil, fmt.Errorf("identity: signup response carries no user id")
	}
	return &session, nil
}

// SignInWithPassword exchanges email/password credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	if err := c.postJSON(ctx, "/auth/v1/token?grant_type=password", credentials{Email: email, Password: password}, &session); err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, ErrUnauthorized
	}
	return &session, nil
}

// GetUser resolves a bearer token to the identity it was issued for. An
// expired or forged token comes back as ErrUnauthorized.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*AuthUser, error) {
	if accessToken == "" {
		return nil, ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, accessToken)

	var user AuthUser
	if err := c.do(req, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, ErrUnauthorized
	}
	return &user, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req, c.AnonKey)

	return c.do(req, out)
}

func (c *Client) setHeaders(req *http.Request, bearer string) {
	req.Header.Set("apikey", c.AnonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.BaseURL == "" || c.AnonKey == "" {
		return errors.New("identity: SUPABASE_URL or SUPABASE_ANON_KEY is not configured")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusBadRequest && bytes.Contains(raw, []byte("invalid")):
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("identity: status=%d body=%s", resp.StatusCode, truncate(string(raw), 256))
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
