package invalidator_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-client/authapi"
	"github.com/jrsteele09/go-session-client/credentials"
	"github.com/jrsteele09/go-session-client/invalidator"
	"github.com/jrsteele09/go-session-client/sessions"
	storagerepofake "github.com/jrsteele09/go-session-client/storage/repofake"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu        sync.Mutex
	notices   []string
	redirects []string
}

func (r *recorder) notify(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, message)
}

func (r *recorder) redirect(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects = append(r.redirects, route)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices), len(r.redirects)
}

// manualTimers holds AfterFunc callbacks until fire is called.
type manualTimers struct {
	mu      sync.Mutex
	pending []func()
}

func (m *manualTimers) AfterFunc(_ time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, f)
}

func (m *manualTimers) fire() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

type countingCanceler struct {
	calls atomic.Int32
}

func (c *countingCanceler) Cancel() { c.calls.Add(1) }

type fakeLogoutAPI struct {
	calls atomic.Int32
	err   error
}

func (f *fakeLogoutAPI) Logout(context.Context) (*authapi.Response, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &authapi.Response{StatusCode: http.StatusOK}, nil
}

type fixture struct {
	cookies  *credentials.Cookies
	local    *storagerepofake.FakeStorageRepo
	session  *storagerepofake.FakeStorageRepo
	store    *sessions.Store
	rec      *recorder
	timers   *manualTimers
	canceler *countingCanceler
	api      *fakeLogoutAPI
	inv      *invalidator.Invalidator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cookies, err := credentials.NewCookies(credentials.NewJar(), "http://shop.test", "accessToken", "refreshToken")
	require.NoError(t, err)
	cookies.SetAccessToken("a.b.c")
	cookies.Jar().SetCookies(mustURL(t, "http://shop.test"), []*http.Cookie{{Name: "refreshToken", Value: "opaque", Path: "/"}})

	f := &fixture{
		cookies:  cookies,
		local:    storagerepofake.NewFakeStorageRepo(),
		session:  storagerepofake.NewFakeStorageRepo(),
		store:    sessions.NewStore(),
		rec:      &recorder{},
		timers:   &manualTimers{},
		canceler: &countingCanceler{},
		api:      &fakeLogoutAPI{},
	}
	for _, kv := range [][2]string{
		{"authUser", "1"}, {"Access_TOKEN", "x"}, {"cartItems", "[]"}, {"userPreferences", "{}"},
		{"shopx_flags", "1"}, {"theme", "dark"}, {"lastVisited", "/"},
	} {
		require.NoError(t, f.local.Set(kv[0], kv[1]))
	}
	require.NoError(t, f.session.Set("loginRedirect", "/orders"))
	require.NoError(t, f.session.Set("scroll", "100"))
	f.store.SetUser(sessions.Session{UserID: "u-1"})

	f.inv = invalidator.New(cookies, f.store,
		invalidator.WithStorage("local", f.local),
		invalidator.WithStorage("session", f.session),
		invalidator.WithPatterns(append(append([]string{}, invalidator.DefaultPatterns...), "shopx")),
		invalidator.WithNotifier(invalidator.NotifierFunc(f.rec.notify)),
		invalidator.WithRedirector(invalidator.RedirectorFunc(f.rec.redirect), "/login"),
		invalidator.WithAfterFunc(f.timers.AfterFunc),
		invalidator.WithLogoutAPI(f.api),
	)
	f.inv.Register(f.canceler)
	return f
}

func TestInvalidateClearsEverything(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.inv.Invalidate(context.Background(), invalidator.ReasonSessionExpired))

	require.Empty(t, f.cookies.AccessToken())
	require.False(t, f.cookies.HasRefreshToken())

	keys, err := f.local.Keys()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"theme", "lastVisited"}, keys)
	keys, err = f.session.Keys()
	require.NoError(t, err)
	require.Equal(t, []string{"scroll"}, keys)

	require.Equal(t, sessions.State{}, f.store.State())
	require.EqualValues(t, 1, f.canceler.calls.Load())

	notices, redirects := f.rec.counts()
	require.Equal(t, 1, notices)
	require.Zero(t, redirects)
	require.True(t, f.inv.Redirecting())

	f.timers.fire()
	_, redirects = f.rec.counts()
	require.Equal(t, 1, redirects)
	require.Equal(t, []string{"/login"}, f.rec.redirects)
	require.False(t, f.inv.Redirecting())
}

func TestInvalidateTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.inv.Invalidate(context.Background(), invalidator.ReasonSessionExpired))
	keysAfterFirst, err := f.local.Keys()
	require.NoError(t, err)

	require.NoError(t, f.inv.Invalidate(context.Background(), invalidator.ReasonSessionExpired))
	keysAfterSecond, err := f.local.Keys()
	require.NoError(t, err)

	require.ElementsMatch(t, keysAfterFirst, keysAfterSecond)
	require.Equal(t, sessions.State{}, f.store.State())
	require.EqualValues(t, 2, f.canceler.calls.Load())
}

func TestConcurrentInvalidateRedirectsOnce(t *testing.T) {
	f := newFixture(t)

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for n := 0; n < callers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.inv.Invalidate(context.Background(), invalidator.ReasonSessionExpired)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	f.timers.fire()

	notices, redirects := f.rec.counts()
	require.Equal(t, 1, notices)
	require.Equal(t, 1, redirects)
}

func TestNotificationDeduplicatedAcrossRedirects(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.inv.Invalidate(context.Background(), invalidator.ReasonSessionExpired))
	f.timers.fire()
	require.NoError(t, f.inv.Invalidate(context.Background(), invalidator.ReasonSessionExpired))
	f.timers.fire()

	notices, redirects := f.rec.counts()
	require.Equal(t, 1, notices)
	require.Equal(t, 2, redirects)
}

func TestLogoutIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.api.err = errors.New("connection refused")

	require.NoError(t, f.inv.Logout(context.Background()))

	require.EqualValues(t, 1, f.api.calls.Load())
	require.False(t, f.store.State().IsAuthenticated)
	require.Equal(t, []string{invalidator.Message(invalidator.ReasonLogout)}, f.rec.notices)
}

func TestMessage(t *testing.T) {
	require.Equal(t, "You have been signed out.", invalidator.Message(invalidator.ReasonLogout))
	require.Equal(t, invalidator.Message(invalidator.ReasonSessionExpired), invalidator.Message(invalidator.ReasonProbeFailed))
	require.Contains(t, invalidator.Message("account locked"), "account locked")
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
