package refresh

import (
	"time"

	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
)

var ErrNotFound = apperrors.ErrNotFound

// StoredRefreshToken is the server-side record behind an opaque refresh
// cookie. The client only ever holds Token.
type StoredRefreshToken struct {
	Token  string
	UserID string
	Iat    time.Time
}

// Repo manages server-side storage of refresh tokens, keyed by the token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	GetByUserID(userID string) (*StoredRefreshToken, error)
}
