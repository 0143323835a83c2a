package token

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/sessions"
)

// ErrDecode is returned for any access token that cannot be turned into a Payload.
// Callers treat it the same as having no token at all.
var ErrDecode = apperrors.ErrDecode

// Claims mirrors the JSON body of the storefront's access token.
type Claims struct {
	UserID   string `json:"userId,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	Verified bool   `json:"isVerified,omitempty"`
	// SessionVersion is checked by the backend only.
	SessionVersion int `json:"sv,omitempty"`
	jwtlib.RegisteredClaims
}

// Payload is the decoded, unverified content of an access token.
type Payload struct {
	UserID    string
	Email     string
	Name      string
	Role      sessions.Role
	Verified  bool
	IssuedAt  time.Time
	ExpiresAt time.Time
}

var parser = jwtlib.NewParser(jwtlib.WithPaddingAllowed())

// Decode reads the claims of an access token without checking its signature.
// The server has already validated the token; the result is only used for
// expiry bookkeeping and display, never for authorization.
func Decode(raw string) (*Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrDecode)
	}
	if strings.Count(raw, ".") != 2 {
		return nil, fmt.Errorf("%w: expected 3 segments", ErrDecode)
	}

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: missing userId", ErrDecode)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrDecode)
	}

	p := &Payload{
		UserID:    userID,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      sessions.ParseRole(claims.Role),
		Verified:  claims.Verified,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	return p, nil
}

// ExpiresIn is the remaining lifetime at now. Negative once expired.
func (p *Payload) ExpiresIn(now time.Time) time.Duration {
	return p.ExpiresAt.Sub(now)
}

// Session converts the payload into the session shown to the UI.
func (p *Payload) Session() sessions.Session {
	return sessions.Session{
		UserID:      p.UserID,
		Email:       p.Email,
		DisplayName: p.Name,
		Role:        p.Role,
		Verified:    p.Verified,
		IssuedAt:    p.IssuedAt,
		ExpiresAt:   p.ExpiresAt,
	}
}
