package devserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-client/authapi"
	"github.com/jrsteele09/go-session-client/credentials"
	"github.com/jrsteele09/go-session-client/devserver"
	"github.com/jrsteele09/go-session-client/internal/config"
	"github.com/jrsteele09/go-session-client/sessions"
	"github.com/jrsteele09/go-session-client/token"
	refreshrepofake "github.com/jrsteele09/go-session-client/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-session-client/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	email    = "shopper@example.com"
	password = "Passw0rd!"
)

type harness struct {
	server  *devserver.Server
	users   *fakeuserrepo.FakeUserRepo
	http    *httptest.Server
	cookies *credentials.Cookies
	api     *authapi.Client
	client  *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.New()
	userRepo := fakeuserrepo.NewFakeUserRepo()
	srv, err := devserver.New(cfg, userRepo, refreshrepofake.NewFakeRefreshTokenRepo())
	require.NoError(t, err)
	_, err = srv.Seed(email, "Shopper", password, sessions.RoleUser)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar := credentials.NewJar()
	cookies, err := credentials.NewCookies(jar, ts.URL, cfg.GetAccessCookieName(), cfg.GetRefreshCookieName())
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	return &harness{
		server:  srv,
		users:   userRepo,
		http:    ts,
		cookies: cookies,
		api:     authapi.NewClient(ts.URL, client),
		client:  client,
	}
}

func TestLoginSetsCookies(t *testing.T) {
	h := newHarness(t)

	resp, err := h.api.Login(context.Background(), email, password)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, resp.User)
	require.Equal(t, email, resp.User.Email)

	payload, err := token.Decode(h.cookies.AccessToken())
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, payload.UserID)
	require.True(t, h.cookies.HasRefreshToken())
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h := newHarness(t)

	resp, err := h.api.Login(context.Background(), email, "nope")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Nil(t, resp.User)
	require.Equal(t, "Invalid email or password", resp.Message)
	require.Empty(t, h.cookies.AccessToken())
}

func TestRefreshRotatesTokens(t *testing.T) {
	h := newHarness(t)
	_, err := h.api.Login(context.Background(), email, password)
	require.NoError(t, err)

	jar := h.cookies.Jar()
	u := mustParse(t, h.http.URL)
	oldRefresh := cookieValue(jar.Cookies(u), "refreshToken")

	resp, err := h.api.RefreshToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, email, resp.User.Email)

	newRefresh := cookieValue(jar.Cookies(u), "refreshToken")
	require.NotEqual(t, oldRefresh, newRefresh)

	// Replaying the rotated-out token fails.
	req, err := http.NewRequest(http.MethodPost, h.http.URL+"/api/auth/refresh-token", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: oldRefresh})
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	require.Equal(t, http.StatusUnauthorized, raw.StatusCode)
}

func TestRefreshWithoutCookieIsUnauthorized(t *testing.T) {
	h := newHarness(t)

	resp, err := h.api.RefreshToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMeAndLogout(t *testing.T) {
	h := newHarness(t)
	_, err := h.api.Login(context.Background(), email, password)
	require.NoError(t, err)
	access := h.cookies.AccessToken()

	resp, err := h.api.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, email, resp.User.Email)

	resp, err = h.api.Logout(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, h.cookies.AccessToken())
	require.False(t, h.cookies.HasRefreshToken())

	// The old access token was revoked server side.
	req, err := http.NewRequest(http.MethodGet, h.http.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+access)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	require.Equal(t, http.StatusUnauthorized, raw.StatusCode)
}

func TestFailNext(t *testing.T) {
	h := newHarness(t)
	_, err := h.api.Login(context.Background(), email, password)
	require.NoError(t, err)

	h.server.FailNext("/api/auth/refresh-token", http.StatusServiceUnavailable, 2)
	for i := 0; i < 2; i++ {
		resp, err := h.api.RefreshToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}

	resp, err := h.api.RefreshToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRevokeRefreshTokens(t *testing.T) {
	h := newHarness(t)
	resp, err := h.api.Login(context.Background(), email, password)
	require.NoError(t, err)

	h.server.RevokeRefreshTokens(resp.User.ID)

	// The access token still in the jar is revoked as well.
	resp, err = h.api.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = h.api.RefreshToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Signing in again issues tokens at the new version.
	_, err = h.api.Login(context.Background(), email, password)
	require.NoError(t, err)
	resp, err = h.api.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginAndLogoutAreRecorded(t *testing.T) {
	h := newHarness(t)
	before := time.Now()

	_, err := h.api.Login(context.Background(), email, password)
	require.NoError(t, err)

	u, err := h.users.GetByEmail(email)
	require.NoError(t, err)
	require.True(t, u.LoggedIn)
	require.False(t, u.LastLogin.Before(before))
	require.True(t, u.Authenticate(password), "the stored user keeps its password hash")

	_, err = h.api.Logout(context.Background())
	require.NoError(t, err)

	u, err = h.users.GetByEmail(email)
	require.NoError(t, err)
	require.False(t, u.LoggedIn)
}

func TestOrdersRequireAuth(t *testing.T) {
	h := newHarness(t)

	raw, err := h.client.Get(h.http.URL + devserver.Orders)
	require.NoError(t, err)
	raw.Body.Close()
	require.Equal(t, http.StatusUnauthorized, raw.StatusCode)

	_, err = h.api.Login(context.Background(), email, password)
	require.NoError(t, err)

	raw, err = h.client.Get(h.http.URL + devserver.Orders)
	require.NoError(t, err)
	raw.Body.Close()
	require.Equal(t, http.StatusOK, raw.StatusCode)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func cookieValue(cookies []*http.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
