package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-client/token"
	"github.com/jrsteele09/go-session-client/token/keys"
	"github.com/jrsteele09/go-session-client/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Creator issues access tokens.
type Creator struct {
	signer   keys.Signer
	expiry   time.Duration
	versions *SessionVersions
}

// NewCreator stamps tokens with the user's current session version; versions may be nil.
func NewCreator(signer keys.Signer, expiry time.Duration, versions *SessionVersions) *Creator {
	return &Creator{
		signer:   signer,
		expiry:   expiry,
		versions: versions,
	}
}

// CreateAccessToken signs a short-lived access token for user. The claims
// carry what the client needs to render the session without another request.
func (c *Creator) CreateAccessToken(user *users.User) (string, *token.Claims, error) {
	now := NowTimeFunc()
	claims := &token.Claims{
		UserID:         user.ID,
		Email:          user.Email,
		Name:           user.Name,
		Role:           string(user.Role),
		Verified:       user.Verified,
		SessionVersion: c.versions.Current(user.ID),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(c.expiry)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, claims, nil
}
