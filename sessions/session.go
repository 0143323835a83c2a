package sessions

import (
	"strings"
	"time"
)

// Role is the storefront role carried in the access token.
type Role string

const (
	RoleUser   Role = "USER"
	RoleSeller Role = "SELLER"
	RoleAdmin  Role = "ADMIN"
)

// ParseRole normalises a role claim. Unknown or empty values map to RoleUser.
func ParseRole(s string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleSeller:
		return RoleSeller
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Session is the client's view of the signed-in user. It is derived from the
// access token (and the user object the backend returns alongside it) and is
// never persisted on its own.
type Session struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	Role        Role      `json:"role"`
	Verified    bool      `json:"verified"`
	IssuedAt    time.Time `json:"issuedAt,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the session's access token has expired at now.
// Sessions without an expiry never expire on their own.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// WithTimes returns a copy of s carrying the issue and expiry times of other.
func (s Session) WithTimes(other Session) Session {
	s.IssuedAt = other.IssuedAt
	s.ExpiresAt = other.ExpiresAt
	return s
}

// State is what UI code observes.
type State struct {
	User            *Session `json:"user"`
	IsAuthenticated bool     `json:"isAuthenticated"`
}
