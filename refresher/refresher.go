package refresher

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/jrsteele09/go-session-client/authapi"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/internal/metrics"
	"github.com/jrsteele09/go-session-client/sessions"
	"github.com/jrsteele09/go-session-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const flightKey = "refresh"

// ReasonSessionExpired is passed to the invalidator when a refresh ends the session.
const ReasonSessionExpired = "session expired"

// API is the refresh endpoint.
type API interface {
	RefreshToken(ctx context.Context) (*authapi.Response, error)
}

// Credentials reads the access token cookie and stores the cookies a refresh
// response sets.
type Credentials interface {
	AccessToken() string
	SetCookies(u *url.URL, cookies []*http.Cookie)
}

// Invalidator tears the session down after a terminal failure.
type Invalidator interface {
	Invalidate(ctx context.Context, reason string) error
}

// Refresher exchanges the refresh cookie for a new access cookie. Concurrent
// callers share one in-flight request and all see its result.
type Refresher struct {
	api         API
	cookies     Credentials
	store       *sessions.Store
	invalidator Invalidator
	log         *AttemptLog
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	maxAttempts int
	retryWindow time.Duration
	minBackoff  time.Duration
	maxBackoff  time.Duration
	nowFunc     func() time.Time

	group singleflight.Group

	// generation moves on Cancel and Stop; a result from an older generation
	// does not touch the store. epoch moves on Cancel only; cookies from an
	// older epoch are dropped.
	mu         sync.Mutex
	generation uint64
	epoch      uint64
	cancelled  chan struct{}
}

type cycle struct {
	generation uint64
	epoch      uint64
	cancelled  <-chan struct{}
}

type Option func(*Refresher)

// WithRetryPolicy bounds retryable failures to maxAttempts inside window.
func WithRetryPolicy(maxAttempts int, window time.Duration) Option {
	return func(r *Refresher) {
		r.maxAttempts = maxAttempts
		r.retryWindow = window
	}
}

// WithBackoff sets the delay range between retries.
func WithBackoff(min, max time.Duration) Option {
	return func(r *Refresher) {
		r.minBackoff = min
		r.maxBackoff = max
	}
}

// WithAttemptLog replaces the default attempt log (10 minute retention).
func WithAttemptLog(l *AttemptLog) Option {
	return func(r *Refresher) {
		r.log = l
	}
}

func WithInvalidator(inv Invalidator) Option {
	return func(r *Refresher) {
		r.invalidator = inv
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Refresher) {
		r.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Refresher) {
		r.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(r *Refresher) {
		r.nowFunc = now
	}
}

func New(api API, cookies Credentials, store *sessions.Store, options ...Option) *Refresher {
	r := &Refresher{
		api:       api,
		cookies:   cookies,
		store:     store,
		logger:    log.Logger,
		cancelled: make(chan struct{}),
	}
	for _, opt := range options {
		opt(r)
	}

	if r.nowFunc == nil {
		r.nowFunc = time.Now
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = 3
	}
	if r.retryWindow <= 0 {
		r.retryWindow = 5 * time.Minute
	}
	if r.minBackoff <= 0 {
		r.minBackoff = 500 * time.Millisecond
	}
	if r.maxBackoff < r.minBackoff {
		r.maxBackoff = r.minBackoff
	}
	if r.log == nil {
		r.log = NewAttemptLog(10*time.Minute, r.nowFunc)
	}
	r.logger = r.logger.With().Str("component", "refresher").Logger()
	return r
}

// SetInvalidator wires the invalidator after construction; the two depend on each other.
func (r *Refresher) SetInvalidator(inv Invalidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidator = inv
}

// Refresh runs (or joins) the current refresh. It returns nil on success,
// an *Error on failure, or ErrCancelled when Cancel was called meanwhile.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	c := cycle{generation: r.generation, epoch: r.epoch, cancelled: r.cancelled}
	r.mu.Unlock()

	// The flight outlives any single caller; Cancel is what stops it.
	flightCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(flightKey, func() (any, error) {
		return nil, r.run(flightCtx, c)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel drops the in-flight refresh because the session is being torn
// down. A request already on the wire is not aborted; its result is ignored
// and the cookies it carries are never stored.
func (r *Refresher) Cancel() {
	r.abandon(true)
}

// Stop drops the in-flight refresh without ending the session. Cookies from a
// response still on the wire are kept, since the backend has already rotated
// the refresh token they replace.
func (r *Refresher) Stop() {
	r.abandon(false)
}

func (r *Refresher) abandon(discardCookies bool) {
	r.mu.Lock()
	r.generation++
	if discardCookies {
		r.epoch++
	}
	close(r.cancelled)
	r.cancelled = make(chan struct{})
	r.mu.Unlock()

	r.group.Forget(flightKey)
}

// Attempts returns the retained attempt log.
func (r *Refresher) Attempts() []Attempt {
	return r.log.Snapshot()
}

// Reset clears the attempt log so a new session starts with a full retry budget.
func (r *Refresher) Reset() {
	r.log.Reset()
}

func (r *Refresher) run(ctx context.Context, c cycle) error {
	err := r.attempt(ctx, c)

	var rerr *Error
	if !apperrors.As(err, &rerr) || !rerr.EndsSession() || r.stale(c.generation) {
		return err
	}

	r.mu.Lock()
	inv := r.invalidator
	r.mu.Unlock()
	if inv == nil {
		r.store.Clear()
		return err
	}
	if invErr := inv.Invalidate(ctx, ReasonSessionExpired); invErr != nil {
		r.logger.Error().Err(invErr).Msg("invalidate after refresh failure")
	}
	return err
}

func (r *Refresher) attempt(ctx context.Context, c cycle) error {
	b := &backoff.Backoff{Min: r.minBackoff, Max: r.maxBackoff, Factor: 2, Jitter: true}
	attempts := 0

	for {
		if failures := r.log.RecentFailures(r.retryWindow); failures >= r.maxAttempts {
			kind := KindServer
			if last, ok := r.log.Last(); ok && last.ErrorKind != 0 {
				kind = last.ErrorKind
			}
			r.logger.Warn().Int("failures", failures).Msg("refresh retry budget exhausted")
			return &Error{Kind: kind, Attempts: attempts, Exhausted: true}
		}

		attempts++
		start := r.nowFunc()
		resp, callErr := r.api.RefreshToken(ctx)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		rerr := Classify(status, callErr)
		elapsed := r.nowFunc().Sub(start).Seconds()

		if !r.commit(c, resp, rerr == nil) {
			r.logger.Debug().Msg("discarding refresh result from cancelled cycle")
			return apperrors.ErrCancelled
		}
		if rerr == nil {
			r.log.Record(OutcomeSuccess, 0)
			r.metrics.ObserveRefresh(string(OutcomeSuccess), "", elapsed)
			r.logger.Debug().Int("attempts", attempts).Msg("refresh succeeded")
			return nil
		}

		r.log.Record(OutcomeFailure, rerr.Kind)
		r.metrics.ObserveRefresh(string(OutcomeFailure), rerr.Kind.String(), elapsed)
		rerr.Attempts = attempts

		if !rerr.Retryable() {
			r.logger.Warn().Err(rerr).Msg("refresh failed")
			return rerr
		}
		if r.log.RecentFailures(r.retryWindow) >= r.maxAttempts {
			rerr.Exhausted = true
			r.logger.Warn().Err(rerr).Msg("refresh failed")
			return rerr
		}

		wait := b.Duration()
		r.logger.Debug().Err(rerr).Dur("backoff", wait).Msg("refresh failed, retrying")
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-c.cancelled:
			timer.Stop()
			return apperrors.ErrCancelled
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// commit stores the response cookies and, on success, the session, unless
// the cycle was cancelled. It holds the lock Cancel takes, so a teardown
// either runs after the commit or makes it a no-op. It reports whether the
// cycle is still current.
func (r *Refresher) commit(c cycle, resp *authapi.Response, ok bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if resp != nil && c.epoch == r.epoch {
		r.cookies.SetCookies(resp.URL, resp.Cookies)
	}
	if c.generation != r.generation {
		return false
	}
	if ok {
		r.apply(resp)
	}
	return true
}

// apply updates the store from the response user, falling back to the new access token.
func (r *Refresher) apply(resp *authapi.Response) {
	payload, decodeErr := token.Decode(r.cookies.AccessToken())

	switch {
	case resp != nil && resp.User != nil:
		s := resp.User.Session()
		if decodeErr == nil {
			s = s.WithTimes(payload.Session())
		}
		r.store.SetUser(s)
	case decodeErr == nil:
		r.store.SetUser(payload.Session())
	default:
		r.logger.Debug().Err(decodeErr).Msg("refresh response carried no readable session")
	}
}

func (r *Refresher) stale(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return gen != r.generation
}
