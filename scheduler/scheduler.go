// Package scheduler decides when the next silent refresh runs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type State string

const (
	StateIdle       State = "idle"
	StateScheduled  State = "scheduled"
	StateRefreshing State = "refreshing"
	StateStopped    State = "stopped"
)

const (
	DefaultMargin           = 60 * time.Second
	DefaultMinDelay         = 30 * time.Second
	DefaultFallbackInterval = 4 * time.Minute
)

// Refresher runs one refresh cycle. Retryable failures are handled inside it,
// so any error it returns is final for that cycle.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Credentials reports which credential cookies are present.
type Credentials interface {
	AccessToken() string
	HasRefreshToken() bool
}

// Timer is the part of *time.Timer the scheduler uses.
type Timer interface {
	Stop() bool
}

// AfterFunc arranges for f to run once d has elapsed.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// NextDelay is how long to wait before refreshing a token that expires at exp.
// It returns 0 when the token is already expired or expires within minDelay,
// and never a delay that lands after exp.
func NextDelay(now, exp time.Time, margin, minDelay time.Duration) time.Duration {
	untilExpiry := exp.Sub(now)
	if untilExpiry <= minDelay {
		return 0
	}
	delay := untilExpiry - margin
	if delay < minDelay {
		delay = minDelay
	}
	return delay
}

type Scheduler struct {
	refresher   Refresher
	credentials Credentials
	logger      zerolog.Logger

	margin    time.Duration
	minDelay  time.Duration
	fallback  time.Duration
	afterFunc AfterFunc
	nowFunc   func() time.Time

	mu         sync.Mutex
	state      State
	started    bool
	generation uint64
	timer      Timer
	ctx        context.Context
	cancel     context.CancelFunc
}

type Option func(*Scheduler)

// WithMargin sets how long before expiry the refresh fires, and the shortest
// delay ever scheduled.
func WithMargin(margin, minDelay time.Duration) Option {
	return func(s *Scheduler) {
		s.margin = margin
		s.minDelay = minDelay
	}
}

// WithFallbackInterval is used when a successful refresh leaves no readable token.
func WithFallbackInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.fallback = d
	}
}

func WithAfterFunc(f AfterFunc) Option {
	return func(s *Scheduler) {
		s.afterFunc = f
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func New(refresher Refresher, credentials Credentials, options ...Option) *Scheduler {
	s := &Scheduler{
		refresher:   refresher,
		credentials: credentials,
		logger:      log.Logger,
		margin:      DefaultMargin,
		minDelay:    DefaultMinDelay,
		fallback:    DefaultFallbackInterval,
		afterFunc:   realAfterFunc,
		nowFunc:     time.Now,
		state:       StateIdle,
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "scheduler").Logger()
	return s
}

// Start inspects the credential cookies and arms the scheduler. Calling it
// while already started does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true
	s.generation++
	s.ctx, s.cancel = context.WithCancel(ctx)
	gen := s.generation

	payload, err := token.Decode(s.credentials.AccessToken())
	switch {
	case err == nil:
		s.scheduleLocked(gen, NextDelay(s.nowFunc(), payload.ExpiresAt, s.margin, s.minDelay))
	case s.credentials.HasRefreshToken():
		s.logger.Debug().Msg("no access token, restoring session from refresh token")
		s.scheduleLocked(gen, 0)
	default:
		s.state = StateIdle
	}
}

// Stop cancels any pending refresh and ignores the result of one in progress.
// A later Start arms the scheduler again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.started = false
	s.state = StateStopped
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Cancel is Stop, so the scheduler can be handed to the invalidator.
func (s *Scheduler) Cancel() {
	s.Stop()
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// scheduleLocked arms the timer, or starts refreshing now when delay is 0.
func (s *Scheduler) scheduleLocked(gen uint64, delay time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if delay <= 0 {
		s.state = StateRefreshing
		go s.refresh(gen)
		return
	}
	s.state = StateScheduled
	s.timer = s.afterFunc(delay, func() { s.fire(gen) })
	s.logger.Debug().Dur("delay", delay).Msg("refresh scheduled")
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state != StateScheduled {
		s.mu.Unlock()
		return
	}
	s.state = StateRefreshing
	s.timer = nil
	s.mu.Unlock()

	s.refresh(gen)
}

func (s *Scheduler) refresh(gen uint64) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	err := s.refresher.Refresh(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}

	if err != nil {
		s.logger.Warn().Err(err).Msg("refresh failed, scheduler stopped")
		s.state = StateStopped
		s.started = false
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		return
	}

	delay := s.fallback
	if payload, decodeErr := token.Decode(s.credentials.AccessToken()); decodeErr == nil {
		delay = NextDelay(s.nowFunc(), payload.ExpiresAt, s.margin, s.minDelay)
	} else {
		s.logger.Debug().Err(decodeErr).Dur("fallback", delay).Msg("new access token unreadable")
	}
	// A refreshed token that is already due would spin; wait at least minDelay.
	if delay <= 0 {
		delay = s.minDelay
	}
	s.scheduleLocked(gen, delay)
}
