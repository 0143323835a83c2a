package jwt

import (
	"errors"
	"fmt"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-client/token"
	"github.com/jrsteele09/go-session-client/token/keys"
)

var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrRevokedToken = errors.New("access token revoked")
)

// Inspector validates access tokens presented to the backend.
type Inspector struct {
	signer   keys.Signer
	versions *SessionVersions
}

// NewInspector verifies with signer; a nil versions skips the revocation check.
func NewInspector(signer keys.Signer, versions *SessionVersions) *Inspector {
	return &Inspector{
		signer:   signer,
		versions: versions,
	}
}

// Verify checks signature, expiry and the session version, returning the claims.
func (i *Inspector) Verify(rawToken string) (*token.Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInvalidToken
	}

	claims := &token.Claims{}
	_, err := jwtlib.ParseWithClaims(rawToken, claims, i.signer.GetVerificationKey,
		jwtlib.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(NowTimeFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}

	if !i.versions.IsCurrent(claims.UserID, claims.SessionVersion) {
		return nil, ErrRevokedToken
	}
	return claims, nil
}
