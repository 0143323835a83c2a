// Package invalidator tears a session down: it stops refreshing, removes every
// client-held credential, tells the user once and sends them to the login route.
package invalidator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-client/authapi"
	"github.com/jrsteele09/go-session-client/internal/metrics"
	"github.com/jrsteele09/go-session-client/sessions"
	"github.com/jrsteele09/go-session-client/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	ReasonSessionExpired = "session expired"
	ReasonLogout         = "logout"
	ReasonProbeFailed    = "session no longer valid"
)

// DefaultPatterns are the storage key fragments removed on invalidation.
var DefaultPatterns = []string{"auth", "token", "user", "session", "login", "cart", "preferences"}

// Canceler stops pending or in-flight refresh work.
type Canceler interface {
	Cancel()
}

// CookieDeleter removes the credential cookies.
type CookieDeleter interface {
	DeleteAll()
}

// LogoutAPI is the backend logout endpoint.
type LogoutAPI interface {
	Logout(ctx context.Context) (*authapi.Response, error)
}

type Notifier interface {
	Notify(message string)
}

type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

type Redirector interface {
	Redirect(route string)
}

type RedirectorFunc func(route string)

func (f RedirectorFunc) Redirect(route string) { f(route) }

// AfterFunc runs f once d has elapsed.
type AfterFunc func(d time.Duration, f func())

type area struct {
	name string
	repo storage.Repo
}

type Invalidator struct {
	cookies    CookieDeleter
	store      *sessions.Store
	api        LogoutAPI
	areas      []area
	patterns   []string
	notifier   Notifier
	redirector Redirector
	loginRoute string

	redirectDelay time.Duration
	dedupWindow   time.Duration
	afterFunc     AfterFunc
	nowFunc       func() time.Time
	metrics       *metrics.Metrics
	logger        zerolog.Logger

	mu          sync.Mutex
	cancelers   []Canceler
	redirecting bool
	lastMessage string
	lastNotice  time.Time
}

type Option func(*Invalidator)

// WithStorage registers a storage area to scrub. Areas are scrubbed in
// registration order.
func WithStorage(name string, repo storage.Repo) Option {
	return func(i *Invalidator) {
		i.areas = append(i.areas, area{name: name, repo: repo})
	}
}

// WithPatterns replaces DefaultPatterns.
func WithPatterns(patterns []string) Option {
	return func(i *Invalidator) {
		i.patterns = patterns
	}
}

func WithNotifier(n Notifier) Option {
	return func(i *Invalidator) {
		i.notifier = n
	}
}

func WithRedirector(r Redirector, loginRoute string) Option {
	return func(i *Invalidator) {
		i.redirector = r
		i.loginRoute = loginRoute
	}
}

func WithLogoutAPI(api LogoutAPI) Option {
	return func(i *Invalidator) {
		i.api = api
	}
}

// WithTiming sets the redirect delay and the window in which identical
// notifications are suppressed.
func WithTiming(redirectDelay, dedupWindow time.Duration) Option {
	return func(i *Invalidator) {
		i.redirectDelay = redirectDelay
		i.dedupWindow = dedupWindow
	}
}

func WithAfterFunc(f AfterFunc) Option {
	return func(i *Invalidator) {
		i.afterFunc = f
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(i *Invalidator) {
		i.nowFunc = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Invalidator) {
		i.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(i *Invalidator) {
		i.logger = logger
	}
}

func New(cookies CookieDeleter, store *sessions.Store, options ...Option) *Invalidator {
	i := &Invalidator{
		cookies:       cookies,
		store:         store,
		patterns:      DefaultPatterns,
		loginRoute:    "/login",
		redirectDelay: 1500 * time.Millisecond,
		dedupWindow:   5 * time.Second,
		nowFunc:       time.Now,
		logger:        log.Logger,
	}
	for _, opt := range options {
		opt(i)
	}
	if i.afterFunc == nil {
		i.afterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	i.logger = i.logger.With().Str("component", "invalidator").Logger()
	if i.notifier == nil {
		logger := i.logger
		i.notifier = NotifierFunc(func(message string) {
			logger.Warn().Msg(message)
		})
	}
	if i.redirector == nil {
		logger := i.logger
		i.redirector = RedirectorFunc(func(route string) {
			logger.Info().Str("route", route).Msg("redirect to login")
		})
	}
	return i
}

// Register adds work to cancel on every invalidation.
func (i *Invalidator) Register(c Canceler) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cancelers = append(i.cancelers, c)
}

// Invalidate clears every trace of the session. It is safe to call any number
// of times concurrently; cleanup always runs, but only one notification and one
// redirect happen until that redirect has fired.
func (i *Invalidator) Invalidate(ctx context.Context, reason string) error {
	i.mu.Lock()
	cancelers := append([]Canceler(nil), i.cancelers...)
	i.mu.Unlock()

	for _, c := range cancelers {
		c.Cancel()
	}

	i.cookies.DeleteAll()

	var errs []error
	for _, a := range i.areas {
		removed, err := storage.DeleteMatching(a.repo, i.patterns)
		if err != nil {
			i.logger.Error().Err(err).Str("area", a.name).Msg("clear storage")
			errs = append(errs, err)
		}
		if len(removed) > 0 {
			i.logger.Debug().Str("area", a.name).Strs("keys", removed).Msg("cleared storage keys")
		}
	}

	i.store.Clear()
	i.metrics.ObserveInvalidation(reason)
	i.logger.Info().Str("reason", reason).Msg("session invalidated")

	i.announce(reason)
	return errors.Join(errs...)
}

// Logout tells the backend to end the session, then invalidates locally. The
// backend call is best-effort: its failure is logged and never returned.
func (i *Invalidator) Logout(ctx context.Context) error {
	if i.api != nil {
		resp, err := i.api.Logout(ctx)
		switch {
		case err != nil:
			i.logger.Warn().Err(err).Msg("backend logout failed")
		case !resp.OK():
			i.logger.Warn().Int("status", resp.StatusCode).Msg("backend logout rejected")
		}
	}
	return i.Invalidate(ctx, ReasonLogout)
}

// Redirecting reports whether a redirect is pending.
func (i *Invalidator) Redirecting() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.redirecting
}

func (i *Invalidator) announce(reason string) {
	message := Message(reason)

	i.mu.Lock()
	if i.redirecting {
		i.mu.Unlock()
		return
	}
	i.redirecting = true
	now := i.nowFunc()
	notify := message != i.lastMessage || now.Sub(i.lastNotice) >= i.dedupWindow
	if notify {
		i.lastMessage = message
		i.lastNotice = now
	}
	i.mu.Unlock()

	if notify {
		i.notifier.Notify(message)
	}
	i.afterFunc(i.redirectDelay, func() {
		i.redirector.Redirect(i.loginRoute)
		i.mu.Lock()
		i.redirecting = false
		i.mu.Unlock()
	})
}

// Message is the user-facing text for an invalidation reason.
func Message(reason string) string {
	switch reason {
	case ReasonLogout:
		return "You have been signed out."
	case ReasonSessionExpired, ReasonProbeFailed:
		return "Your session has expired. Please sign in again."
	default:
		return "You have been signed out: " + reason
	}
}
