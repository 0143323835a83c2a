package jwt

import "sync"

// SessionVersions counts sign-outs per user. Each access token carries the
// version current when it was issued, so bumping the version revokes every
// token the user holds without tracking them one by one.
type SessionVersions struct {
	mu      sync.RWMutex
	current map[string]int
}

func NewSessionVersions() *SessionVersions {
	return &SessionVersions{current: make(map[string]int)}
}

// Current is the version stamped on new tokens for userID.
func (v *SessionVersions) Current(userID string) int {
	if v == nil {
		return 0
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current[userID]
}

// Revoke invalidates every token issued to userID so far and returns the new version.
func (v *SessionVersions) Revoke(userID string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current[userID]++
	return v.current[userID]
}

// IsCurrent reports whether a token stamped with version is still honoured.
func (v *SessionVersions) IsCurrent(userID string, version int) bool {
	return v == nil || v.Current(userID) == version
}
