package refresher

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Attempt is one request sent to the refresh endpoint.
type Attempt struct {
	ID        string
	Timestamp time.Time
	Outcome   Outcome
	ErrorKind Kind
}

// AttemptLog is an append-only record of refresh attempts, pruned to a
// trailing retention window. It lives only in memory.
type AttemptLog struct {
	mu        sync.Mutex
	attempts  []Attempt
	retention time.Duration
	nowFunc   func() time.Time
}

func NewAttemptLog(retention time.Duration, nowFunc func() time.Time) *AttemptLog {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &AttemptLog{retention: retention, nowFunc: nowFunc}
}

// Record appends an attempt stamped with the current time.
func (l *AttemptLog) Record(outcome Outcome, kind Kind) Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := Attempt{
		ID:        uuid.New().String(),
		Timestamp: l.nowFunc(),
		Outcome:   outcome,
		ErrorKind: kind,
	}
	l.attempts = append(l.attempts, a)
	l.pruneLocked(a.Timestamp)
	return a
}

// RecentFailures counts failures inside the trailing window that happened
// after the most recent success.
func (l *AttemptLog) RecentFailures(window time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	l.pruneLocked(now)

	cutoff := now.Add(-window)
	failures := 0
	for i := len(l.attempts) - 1; i >= 0; i-- {
		a := l.attempts[i]
		if a.Timestamp.Before(cutoff) || a.Outcome == OutcomeSuccess {
			break
		}
		failures++
	}
	return failures
}

// Last returns the most recent retained attempt.
func (l *AttemptLog) Last() (Attempt, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.attempts) == 0 {
		return Attempt{}, false
	}
	return l.attempts[len(l.attempts)-1], true
}

// Reset forgets every attempt, e.g. after a fresh login.
func (l *AttemptLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = nil
}

// Snapshot returns the retained attempts, oldest first.
func (l *AttemptLog) Snapshot() []Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.nowFunc())
	return append([]Attempt(nil), l.attempts...)
}

func (l *AttemptLog) pruneLocked(now time.Time) {
	if l.retention <= 0 {
		return
	}
	cutoff := now.Add(-l.retention)
	i := 0
	for i < len(l.attempts) && l.attempts[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		l.attempts = append(l.attempts[:0], l.attempts[i:]...)
	}
}
