package authapi

import (
	"context"
	"net/http"
	"strings"
)

// Refresher is the subset of the refresh executor the transport needs.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// TokenFunc returns the current access token, or "" when there is none.
type TokenFunc func() string

// Transport attaches the access token as a bearer header and, when a
// non-auth request comes back 401, refreshes once and replays it. Many
// requests failing together share a single refresh through the Refresher.
type Transport struct {
	Base      http.RoundTripper
	Token     TokenFunc
	Refresher Refresher
	// Jar, when set, re-supplies cookies on the replayed request so it carries
	// the refreshed credentials rather than the ones that were rejected.
	Jar http.CookieJar
	// AuthPrefix marks the auth routes, which are never retried (default "/api/auth/").
	AuthPrefix string
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(t.authorize(req))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || t.Refresher == nil || t.isAuthRoute(req) {
		return resp, err
	}

	// The body must be replayable to retry.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	if refreshErr := t.Refresher.Refresh(req.Context()); refreshErr != nil {
		return resp, nil
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	if t.Jar != nil {
		retry.Header.Del("Cookie")
		for _, c := range t.Jar.Cookies(retry.URL) {
			retry.AddCookie(c)
		}
	}
	resp.Body.Close()

	return base.RoundTrip(t.authorize(retry))
}

func (t *Transport) authorize(req *http.Request) *http.Request {
	if t.Token == nil || req.Header.Get("Authorization") != "" {
		return req
	}
	token := t.Token()
	if token == "" {
		return req
	}
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}

func (t *Transport) isAuthRoute(req *http.Request) bool {
	prefix := t.AuthPrefix
	if prefix == "" {
		prefix = "/api/auth/"
	}
	return strings.HasPrefix(req.URL.Path, prefix)
}
