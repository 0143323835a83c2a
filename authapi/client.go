package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-session-client/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Paths are the backend routes the client talks to.
type Paths struct {
	Refresh string
	Logout  string
	Me      string
	Login   string
}

// DefaultPaths are the storefront's auth routes.
var DefaultPaths = Paths{
	Refresh: "/api/auth/refresh-token",
	Logout:  "/api/auth/logout",
	Me:      "/api/auth/me",
	Login:   "/api/auth/login",
}

// User is the user object returned by the auth endpoints.
type User struct {
	ID         string `json:"id,omitempty"`
	LegacyID   string `json:"_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	IsVerified bool   `json:"isVerified,omitempty"`
}

// Session converts the user object into a session without timestamps.
func (u *User) Session() sessions.Session {
	id := u.ID
	if id == "" {
		id = u.LegacyID
	}
	return sessions.Session{
		UserID:      id,
		Email:       u.Email,
		DisplayName: u.Name,
		Role:        sessions.ParseRole(u.Role),
		Verified:    u.IsVerified,
	}
}

// Response is the outcome of a call that reached the backend. User is nil when
// the body did not carry one.
type Response struct {
	StatusCode int
	User       *User
	Message    string
	// URL and Cookies are the request URL and the Set-Cookie values of the
	// response. With WithHeldRefreshCookies they have not reached the jar yet.
	URL     *url.URL
	Cookies []*http.Cookie
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// envelope accepts both {data:{user}} and {user} bodies.
type envelope struct {
	Data *struct {
		User *User `json:"user"`
	} `json:"data"`
	User    *User  `json:"user"`
	Message string `json:"message"`
}

// Client calls the auth endpoints. Cookies travel through the HTTP client's jar.
type Client struct {
	baseURL       string
	paths         Paths
	httpClient    *http.Client
	refreshClient *http.Client
	holdRefresh   bool
	logger        zerolog.Logger
}

type ClientOption func(*Client)

func WithPaths(paths Paths) ClientOption {
	return func(c *Client) {
		c.paths = paths
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHeldRefreshCookies makes RefreshToken send the jar's cookies without
// storing the ones the backend sets. The caller commits Response.Cookies
// itself, so a response for a session torn down meanwhile can be dropped.
func WithHeldRefreshCookies() ClientOption {
	return func(c *Client) {
		c.holdRefresh = true
	}
}

// sendOnlyJar supplies cookies but ignores Set-Cookie.
type sendOnlyJar struct {
	http.CookieJar
}

func (sendOnlyJar) SetCookies(*url.URL, []*http.Cookie) {}

// NewClient creates a client for baseURL. httpClient must carry the cookie jar
// that holds the session cookies.
func NewClient(baseURL string, httpClient *http.Client, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		paths:      DefaultPaths,
		httpClient: httpClient,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c.refreshClient = c.httpClient
	if c.holdRefresh && c.httpClient.Jar != nil {
		held := *c.httpClient
		held.Jar = sendOnlyJar{c.httpClient.Jar}
		c.refreshClient = &held
	}
	c.logger = c.logger.With().Str("component", "authapi").Logger()
	return c
}

func (c *Client) Paths() Paths {
	return c.paths
}

// RefreshToken exchanges the refresh cookie for a new access cookie.
func (c *Client) RefreshToken(ctx context.Context) (*Response, error) {
	return c.doWith(ctx, c.refreshClient, http.MethodPost, c.paths.Refresh, nil)
}

// Logout asks the backend to revoke the refresh token and clear its cookies.
func (c *Client) Logout(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodPost, c.paths.Logout, nil)
}

// Me probes the current session.
func (c *Client) Me(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodGet, c.paths.Me, nil)
}

// Login signs in with email and password. On success the backend sets both cookies.
func (c *Client) Login(ctx context.Context, email, password string) (*Response, error) {
	return c.do(ctx, http.MethodPost, c.paths.Login, map[string]string{"email": email, "password": password})
}

// do performs the request. A non-nil error means the backend was not reached
// or the response could not be read; HTTP error statuses are returned in Response.
func (c *Client) do(ctx context.Context, method, path string, body any) (*Response, error) {
	return c.doWith(ctx, c.httpClient, method, path, body)
}

func (c *Client) doWith(ctx context.Context, httpClient *http.Client, method, path string, body any) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("HTTP request")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Msg("HTTP response")

	out := &Response{StatusCode: resp.StatusCode, URL: req.URL, Cookies: resp.Cookies()}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Error pages are not JSON; the status code is what matters.
		c.logger.Debug().Err(err).Str("path", path).Msg("non-JSON response body")
		return out, nil
	}
	out.Message = env.Message
	switch {
	case env.Data != nil && env.Data.User != nil:
		out.User = env.Data.User
	case env.User != nil:
		out.User = env.User
	}
	return out, nil
}
