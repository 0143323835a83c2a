package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-client/scheduler"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped atomic.Bool
}

func (t *fakeTimer) Stop() bool {
	return !t.stopped.Swap(true)
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) scheduler.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) last() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return nil
	}
	return c.timers[len(c.timers)-1]
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

type fakeCredentials struct {
	mu      sync.Mutex
	access  string
	refresh bool
}

func (c *fakeCredentials) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access
}

func (c *fakeCredentials) HasRefreshToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refresh
}

func (c *fakeCredentials) setAccess(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = raw
}

type fakeRefresher struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
	onOK  func()
}

func (r *fakeRefresher) Refresh(ctx context.Context) error {
	r.calls.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	if r.err == nil && r.onOK != nil {
		r.onOK()
	}
	return r.err
}

func tokenExpiring(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"userId": "u-1",
		"exp":    exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return raw
}

func newScheduler(r scheduler.Refresher, c scheduler.Credentials, clock *fakeClock) *scheduler.Scheduler {
	return scheduler.New(r, c,
		scheduler.WithAfterFunc(clock.AfterFunc),
		scheduler.WithNowFunc(func() time.Time { return epoch }),
		scheduler.WithFallbackInterval(4*time.Minute),
	)
}

func TestNextDelayFiresBeforeExpiry(t *testing.T) {
	for secs := -120; secs <= 3600; secs++ {
		exp := epoch.Add(time.Duration(secs) * time.Second)
		delay := scheduler.NextDelay(epoch, exp, scheduler.DefaultMargin, scheduler.DefaultMinDelay)

		require.GreaterOrEqual(t, delay, time.Duration(0))
		if secs > 0 {
			require.False(t, epoch.Add(delay).After(exp), "expiry in %ds", secs)
		}
		if secs <= 30 {
			require.Zero(t, delay, "expiry in %ds", secs)
		} else {
			require.GreaterOrEqual(t, delay, scheduler.DefaultMinDelay, "expiry in %ds", secs)
		}
	}
}

func TestNextDelayValues(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{in: 5 * time.Minute, want: 4 * time.Minute},
		{in: 90 * time.Second, want: 30 * time.Second},
		{in: 45 * time.Second, want: 30 * time.Second},
		{in: 10 * time.Second, want: 0},
		{in: -time.Minute, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			require.Equal(t, tt.want, scheduler.NextDelay(epoch, epoch.Add(tt.in), scheduler.DefaultMargin, scheduler.DefaultMinDelay))
		})
	}
}

func TestStartSchedulesFromAccessToken(t *testing.T) {
	clock := &fakeClock{}
	creds := &fakeCredentials{access: tokenExpiring(t, epoch.Add(5*time.Minute))}
	s := newScheduler(&fakeRefresher{}, creds, clock)

	s.Start(context.Background())

	require.Equal(t, scheduler.StateScheduled, s.State())
	require.Equal(t, 4*time.Minute, clock.last().delay)

	// Already started.
	s.Start(context.Background())
	require.Equal(t, 1, clock.count())
}

func TestStartIdleWithoutCredentials(t *testing.T) {
	r := &fakeRefresher{}
	s := newScheduler(r, &fakeCredentials{}, &fakeClock{})

	s.Start(context.Background())

	require.Equal(t, scheduler.StateIdle, s.State())
	require.Zero(t, r.calls.Load())
}

func TestStartRestoresFromRefreshToken(t *testing.T) {
	r := &fakeRefresher{gate: make(chan struct{})}
	defer close(r.gate)
	s := newScheduler(r, &fakeCredentials{refresh: true}, &fakeClock{})

	s.Start(context.Background())

	require.Equal(t, scheduler.StateRefreshing, s.State())
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
}

func TestNearExpiryRefreshesThenReschedules(t *testing.T) {
	clock := &fakeClock{}
	creds := &fakeCredentials{access: tokenExpiring(t, epoch.Add(10*time.Second))}
	r := &fakeRefresher{}
	r.onOK = func() { creds.setAccess(tokenExpiring(t, epoch.Add(5*time.Minute))) }
	s := newScheduler(r, creds, clock)

	s.Start(context.Background())

	require.Eventually(t, func() bool { return s.State() == scheduler.StateScheduled }, time.Second, time.Millisecond)
	require.EqualValues(t, 1, r.calls.Load())
	require.Equal(t, 4*time.Minute, clock.last().delay)
}

func TestTimerFireRefreshes(t *testing.T) {
	clock := &fakeClock{}
	creds := &fakeCredentials{access: tokenExpiring(t, epoch.Add(5*time.Minute))}
	r := &fakeRefresher{}
	s := newScheduler(r, creds, clock)
	s.Start(context.Background())

	// The refreshed token cannot be read, so the fallback interval applies.
	r.onOK = func() { creds.setAccess("garbage") }
	clock.last().f()

	require.EqualValues(t, 1, r.calls.Load())
	require.Equal(t, scheduler.StateScheduled, s.State())
	require.Equal(t, 2, clock.count())
	require.Equal(t, 4*time.Minute, clock.last().delay)
}

func TestFailureStopsAndAllowsRestart(t *testing.T) {
	clock := &fakeClock{}
	creds := &fakeCredentials{access: tokenExpiring(t, epoch.Add(5*time.Minute))}
	r := &fakeRefresher{err: errors.New("refresh failed: unauthorized")}
	s := newScheduler(r, creds, clock)
	s.Start(context.Background())

	clock.last().f()
	require.Equal(t, scheduler.StateStopped, s.State())

	s.Start(context.Background())
	require.Equal(t, scheduler.StateScheduled, s.State())
}

func TestStopCancelsTimerAndIgnoresLateResult(t *testing.T) {
	clock := &fakeClock{}
	creds := &fakeCredentials{access: tokenExpiring(t, epoch.Add(5*time.Minute))}
	s := newScheduler(&fakeRefresher{}, creds, clock)
	s.Start(context.Background())
	timer := clock.last()

	s.Stop()
	require.True(t, timer.stopped.Load())
	require.Equal(t, scheduler.StateStopped, s.State())

	// A timer that raced Stop does nothing.
	timer.f()
	require.Equal(t, scheduler.StateStopped, s.State())
	require.Equal(t, 1, clock.count())
}

func TestStopDuringRefresh(t *testing.T) {
	clock := &fakeClock{}
	r := &fakeRefresher{gate: make(chan struct{})}
	creds := &fakeCredentials{refresh: true}
	r.onOK = func() { creds.setAccess(tokenExpiring(t, epoch.Add(5*time.Minute))) }
	s := newScheduler(r, creds, clock)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)

	s.Cancel()
	close(r.gate)

	// The late success must not re-arm a stopped scheduler.
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, scheduler.StateStopped, s.State())
	require.Zero(t, clock.count())
}
