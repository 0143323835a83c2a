// Package sessionmanager wires the session lifecycle together: cookie jar,
// refresh executor, scheduler, invalidator and the observable auth state.
package sessionmanager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-client/authapi"
	"github.com/jrsteele09/go-session-client/credentials"
	"github.com/jrsteele09/go-session-client/internal/config"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/internal/metrics"
	"github.com/jrsteele09/go-session-client/invalidator"
	"github.com/jrsteele09/go-session-client/refresher"
	"github.com/jrsteele09/go-session-client/scheduler"
	"github.com/jrsteele09/go-session-client/sessions"
	"github.com/jrsteele09/go-session-client/storage"
	storagerepofake "github.com/jrsteele09/go-session-client/storage/repofake"
	"github.com/jrsteele09/go-session-client/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrLoginFailed is returned when the backend rejects the credentials.
var ErrLoginFailed = errors.New("login failed")

type Config interface {
	config.ClientConfig
	config.RefreshConfig
	config.CleanupConfig
}

type options struct {
	transport      http.RoundTripper
	jar            http.CookieJar
	localStorage   storage.Repo
	sessionStorage storage.Repo
	notifier       invalidator.Notifier
	redirector     invalidator.Redirector
	registerer     prometheus.Registerer
	logger         *zerolog.Logger
	nowFunc        func() time.Time
}

type Option func(*options)

// WithTransport sets the round tripper under the cookie jar. Defaults to
// http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// WithCookieJar sets the jar holding the session cookies. Defaults to an
// empty in-memory jar; a credentials.PersistentJar lets a session outlive the process.
func WithCookieJar(jar http.CookieJar) Option {
	return func(o *options) {
		o.jar = jar
	}
}

// WithLocalStorage sets the persistent storage area. Defaults to in-memory.
func WithLocalStorage(repo storage.Repo) Option {
	return func(o *options) {
		o.localStorage = repo
	}
}

func WithSessionStorage(repo storage.Repo) Option {
	return func(o *options) {
		o.sessionStorage = repo
	}
}

func WithNotifier(n invalidator.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

func WithRedirector(r invalidator.Redirector) Option {
	return func(o *options) {
		o.redirector = r
	}
}

// WithMetrics registers the lifecycle collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		o.nowFunc = now
	}
}

type Manager struct {
	cfg     Config
	logger  zerolog.Logger
	nowFunc func() time.Time

	cookies        *credentials.Cookies
	store          *sessions.Store
	api            *authapi.Client
	refresher      *refresher.Refresher
	scheduler      *scheduler.Scheduler
	invalidator    *invalidator.Invalidator
	metrics        *metrics.Metrics
	localStorage   storage.Repo
	sessionStorage storage.Repo
	transport      http.RoundTripper

	mu         sync.Mutex
	probeStop  context.CancelFunc
	probeDone  chan struct{}
	runContext context.Context
}

// New builds a manager. Nothing runs until Start.
func New(cfg Config, opts ...Option) (*Manager, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.Logger
	if o.logger != nil {
		logger = *o.logger
	}
	if o.transport == nil {
		o.transport = http.DefaultTransport
	}
	if o.localStorage == nil {
		o.localStorage = storagerepofake.NewFakeStorageRepo()
	}
	if o.sessionStorage == nil {
		o.sessionStorage = storagerepofake.NewFakeStorageRepo()
	}
	if o.nowFunc == nil {
		o.nowFunc = time.Now
	}
	var m *metrics.Metrics
	if o.registerer != nil {
		m = metrics.New(o.registerer)
	}

	jar := o.jar
	if jar == nil {
		jar = credentials.NewJar()
	}
	cookies, err := credentials.NewCookies(jar, cfg.GetBaseURL(), cfg.GetAccessCookieName(), cfg.GetRefreshCookieName())
	if err != nil {
		return nil, fmt.Errorf("[sessionmanager New] %w", err)
	}

	store := sessions.NewStore()
	api := authapi.NewClient(cfg.GetBaseURL(), &http.Client{Jar: jar, Transport: o.transport, Timeout: 15 * time.Second},
		authapi.WithLogger(logger),
		authapi.WithHeldRefreshCookies(),
		authapi.WithPaths(authapi.Paths{
			Refresh: cfg.GetRefreshPath(),
			Logout:  cfg.GetLogoutPath(),
			Me:      cfg.GetMePath(),
			Login:   cfg.GetLoginPath(),
		}),
	)

	ref := refresher.New(api, cookies, store,
		refresher.WithRetryPolicy(cfg.GetMaxRefreshAttempts(), cfg.GetRetryWindow()),
		refresher.WithBackoff(cfg.GetRetryMinBackoff(), cfg.GetRetryMaxBackoff()),
		refresher.WithAttemptLog(refresher.NewAttemptLog(cfg.GetAttemptRetention(), o.nowFunc)),
		refresher.WithMetrics(m),
		refresher.WithLogger(logger),
		refresher.WithNowFunc(o.nowFunc),
	)

	sched := scheduler.New(ref, cookies,
		scheduler.WithMargin(cfg.GetRefreshMargin(), cfg.GetMinRefreshDelay()),
		scheduler.WithFallbackInterval(cfg.GetFallbackRefreshInterval()),
		scheduler.WithNowFunc(o.nowFunc),
		scheduler.WithLogger(logger),
	)

	invOpts := []invalidator.Option{
		invalidator.WithStorage("local", o.localStorage),
		invalidator.WithStorage("session", o.sessionStorage),
		invalidator.WithPatterns(cfg.GetStorageKeyPatterns()),
		invalidator.WithTiming(cfg.GetRedirectDelay(), cfg.GetNotificationDedupWindow()),
		invalidator.WithLogoutAPI(api),
		invalidator.WithMetrics(m),
		invalidator.WithLogger(logger),
		invalidator.WithNowFunc(o.nowFunc),
	}
	if o.notifier != nil {
		invOpts = append(invOpts, invalidator.WithNotifier(o.notifier))
	}
	invOpts = append(invOpts, invalidator.WithRedirector(o.redirector, cfg.GetLoginRoute()))
	inv := invalidator.New(cookies, store, invOpts...)
	inv.Register(sched)
	inv.Register(ref)
	ref.SetInvalidator(inv)

	return &Manager{
		cfg:            cfg,
		logger:         logger.With().Str("component", "sessionmanager").Logger(),
		nowFunc:        o.nowFunc,
		cookies:        cookies,
		store:          store,
		api:            api,
		refresher:      ref,
		scheduler:      sched,
		invalidator:    inv,
		metrics:        m,
		localStorage:   o.localStorage,
		sessionStorage: o.sessionStorage,
		transport:      o.transport,
	}, nil
}

// Start restores any session held in the cookie jar and begins refreshing.
// ctx bounds all background work; Stop ends it early.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.runContext = ctx
	m.mu.Unlock()

	if payload, err := token.Decode(m.cookies.AccessToken()); err == nil && !m.store.State().IsAuthenticated {
		m.store.SetUser(payload.Session())
	}
	m.scheduler.Start(ctx)

	if interval := m.cfg.GetProbeInterval(); interval > 0 {
		m.startProbe(ctx, interval)
	}
}

// Stop halts refreshing and probing. The session itself is left intact.
func (m *Manager) Stop() {
	m.scheduler.Stop()
	m.refresher.Stop()
	m.stopProbe()
}

// Login signs in and (re)arms the scheduler for the new session.
func (m *Manager) Login(ctx context.Context, email, password string) (sessions.State, error) {
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		return sessions.State{}, fmt.Errorf("login: %w", err)
	}
	if !resp.OK() {
		msg := resp.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return sessions.State{}, fmt.Errorf("%w: %s (status %d)", ErrLoginFailed, msg, resp.StatusCode)
	}

	m.applyUser(resp.User)
	m.refresher.Reset()
	m.scheduler.Stop()
	m.scheduler.Start(m.context(ctx))
	m.logger.Info().Str("user_id", m.userID()).Msg("signed in")
	return m.store.State(), nil
}

// Logout ends the session on the backend (best-effort) and locally.
func (m *Manager) Logout(ctx context.Context) error {
	return m.invalidator.Logout(ctx)
}

// Invalidate tears the session down locally without calling the backend.
func (m *Manager) Invalidate(ctx context.Context, reason string) error {
	return m.invalidator.Invalidate(ctx, reason)
}

// Refresh runs a refresh now, joining one already in flight.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.refresher.Refresh(ctx)
}

// Probe asks the backend whether the session is still valid. A 401 ends the
// session; a transport or server error is returned without touching it.
func (m *Manager) Probe(ctx context.Context) (sessions.State, error) {
	resp, err := m.api.Me(ctx)
	if err != nil {
		m.metrics.ObserveProbe("error")
		return m.store.State(), fmt.Errorf("probe: %w", err)
	}

	switch {
	case resp.OK():
		m.metrics.ObserveProbe("ok")
		m.applyUser(resp.User)
		return m.store.State(), nil
	case resp.StatusCode == http.StatusUnauthorized:
		m.metrics.ObserveProbe("unauthorized")
		if err := m.invalidator.Invalidate(ctx, invalidator.ReasonProbeFailed); err != nil {
			m.logger.Error().Err(err).Msg("invalidate after probe")
		}
		return m.store.State(), apperrors.ErrSessionExpired
	default:
		m.metrics.ObserveProbe("error")
		return m.store.State(), fmt.Errorf("probe: %w", refresher.Classify(resp.StatusCode, nil))
	}
}

func (m *Manager) State() sessions.State {
	return m.store.State()
}

func (m *Manager) Subscribe() (<-chan sessions.State, func()) {
	return m.store.Subscribe()
}

// Reader is the read-only store handed to UI code.
func (m *Manager) Reader() sessions.Reader {
	return m.store
}

func (m *Manager) SchedulerState() scheduler.State {
	return m.scheduler.State()
}

func (m *Manager) Attempts() []refresher.Attempt {
	return m.refresher.Attempts()
}

func (m *Manager) Cookies() *credentials.Cookies {
	return m.cookies
}

func (m *Manager) LocalStorage() storage.Repo {
	return m.localStorage
}

func (m *Manager) SessionStorage() storage.Repo {
	return m.sessionStorage
}

// HTTPClient returns a client for the backend's other APIs. It shares the
// session cookies, sends the access token as a bearer header and recovers
// from an expired token by refreshing once and replaying the request.
func (m *Manager) HTTPClient() *http.Client {
	jar := m.cookies.Jar()
	return &http.Client{
		Jar: jar,
		Transport: &authapi.Transport{
			Base:      m.transport,
			Token:     m.cookies.AccessToken,
			Refresher: m.refresher,
			Jar:       jar,
		},
	}
}

// applyUser records the session from a backend user object, taking the
// timestamps from the access cookie. Without a user object the cookie alone is used.
func (m *Manager) applyUser(u *authapi.User) {
	payload, decodeErr := token.Decode(m.cookies.AccessToken())
	switch {
	case u != nil:
		s := u.Session()
		if decodeErr == nil {
			s = s.WithTimes(payload.Session())
		}
		m.store.SetUser(s)
	case decodeErr == nil:
		m.store.SetUser(payload.Session())
	}
}

func (m *Manager) userID() string {
	if s := m.store.State(); s.User != nil {
		return s.User.UserID
	}
	return ""
}

// context is the lifetime passed to Start, or a detached copy of ctx when the
// manager was never started.
func (m *Manager) context(ctx context.Context) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runContext != nil {
		return m.runContext
	}
	return context.WithoutCancel(ctx)
}
