// Package auth verifies session tokens against the auth sidecar.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "better-auth.session_token"

// User is the authenticated user of a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type sessionResponse struct {
	User *User `json:"user"`
}

// Client asks the auth sidecar who owns a session token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. timeout defaults to 5s.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// TokenFromRequest returns the session token from the session cookie or,
// failing that, a Bearer Authorization header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// Verify returns the user owning token, or nil when there is no valid session.
// Sidecar failures are logged and treated as no session.
func (c *Client) Verify(ctx context.Context, token string) *User {
	if token == "" {
		return nil
	}
	user, err := c.verify(ctx, token)
	if err != nil {
		c.logger.Error("auth sidecar unavailable", "error", err)
		return nil
	}
	return user
}

func (c *Client) verify(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/session", nil)
	if err != nil {
		return nil, fmt.Errorf("creating session request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode != http.StatusUnauthorized {
			c.logger.Warn("unexpected auth sidecar response", "status", resp.StatusCode)
		}
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}

	var s sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if s.User == nil || s.User.ID == "" {
		return nil, nil
	}
	return s.User, nil
}

type userKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the user stored in ctx, or nil.
func UserFrom(ctx context.Context) *User {
	u, _ := ctx.Value(userKey{}).(*User)
	return u
}
