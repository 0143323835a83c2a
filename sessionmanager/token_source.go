package sessionmanager

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/token"
	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

// TokenSource exposes the access cookie as an oauth2.TokenSource. A token
// inside the refresh margin is refreshed before it is handed out.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	payload, err := token.Decode(ts.m.cookies.AccessToken())
	if err != nil || payload.ExpiresIn(ts.m.nowFunc()) <= ts.m.cfg.GetRefreshMargin() {
		if !ts.m.cookies.HasRefreshToken() && err != nil {
			return nil, apperrors.ErrNoAccessToken
		}
		if refreshErr := ts.m.refresher.Refresh(ts.ctx); refreshErr != nil {
			return nil, fmt.Errorf("refresh access token: %w", refreshErr)
		}
		if payload, err = token.Decode(ts.m.cookies.AccessToken()); err != nil {
			return nil, err
		}
	}

	return &oauth2.Token{
		AccessToken: ts.m.cookies.AccessToken(),
		TokenType:   "Bearer",
		Expiry:      payload.ExpiresAt,
	}, nil
}
