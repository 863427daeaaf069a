// Package authclient is a Go client for the timetrack auth API. It
// holds the current bearer token, refreshes it proactively before
// expiry, and collapses concurrent refresh attempts into a single
// in-flight call so callers never end up holding a token older than
// one issued elsewhere in the same process.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNotAuthenticated is returned when no login has succeeded or the
// session was lost.
var ErrNotAuthenticated = errors.New("not authenticated")

// DefaultRefreshLead is how long before token expiry the proactive
// refresh fires.
const DefaultRefreshLead = 5 * time.Minute

// User is the public account payload returned by the API.
type User struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	Username   string   `json:"username"`
	Department string   `json:"department"`
	Roles      []string `json:"roles"`
}

type authPayload struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    User   `json:"user"`
	Error   string `json:"error"`
}

// Client is a token-holding API client. All methods are safe for
// concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	refreshLead time.Duration
	tokenExpiry time.Duration

	group singleflight.Group

	mu    sync.Mutex
	token string
	user  *User
	timer *time.Timer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRefreshLead sets how long before expiry the proactive refresh
// runs.
func WithRefreshLead(lead time.Duration) Option {
	return func(c *Client) { c.refreshLead = lead }
}

// WithTokenExpiry tells the client the server's token lifetime so it
// can schedule the proactive refresh.
func WithTokenExpiry(expiry time.Duration) Option {
	return func(c *Client) { c.tokenExpiry = expiry }
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
		refreshLead: DefaultRefreshLead,
		tokenExpiry: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login authenticates and starts the proactive refresh cycle.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	payload, err := c.post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	c.adopt(payload)
	return c.User()
}

// Token returns the current bearer token.
func (c *Client) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return "", ErrNotAuthenticated
	}
	return c.token, nil
}

// User returns the account the client is logged in as.
func (c *Client) User() (*User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil, ErrNotAuthenticated
	}
	user := *c.user
	return &user, nil
}

// Refresh exchanges the current token for a fresh one. Concurrent
// callers share a single in-flight refresh. A failed refresh is a
// hard logout: the client returns to the anonymous state rather than
// retrying.
func (c *Client) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		token, err := c.Token()
		if err != nil {
			return nil, err
		}

		payload, err := c.post(ctx, "/auth/refresh", map[string]string{"token": token})
		if err != nil {
			c.reset()
			return nil, err
		}

		c.adopt(payload)
		return nil, nil
	})
	return err
}

// Logout invalidates the server-side session, clears the held token
// and cancels the pending proactive refresh.
func (c *Client) Logout(ctx context.Context) error {
	token, err := c.Token()
	if err != nil {
		return nil
	}
	defer c.reset()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// adopt installs a fresh token and reschedules the proactive refresh
// at (expiry - lead). The timer fires once per token lifetime.
func (c *Client) adopt(payload *authPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = payload.Token
	user := payload.User
	c.user = &user

	if c.timer != nil {
		c.timer.Stop()
	}
	delay := c.tokenExpiry - c.refreshLead
	if delay <= 0 {
		delay = c.tokenExpiry / 2
	}
	c.timer = time.AfterFunc(delay, func() {
		// Best effort; a failure already reset the client.
		_ = c.Refresh(context.Background())
	})
}

// reset returns the client to the anonymous state.
func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.user = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*authPayload, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload authPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !payload.Success {
		if payload.Error != "" {
			return nil, errors.New(payload.Error)
		}
		return nil, fmt.Errorf("auth request failed with status %d", resp.StatusCode)
	}
	return &payload, nil
}
