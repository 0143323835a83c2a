package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/jrsteele09/go-session-client/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const jarKey = "cookies"

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PersistentJar is a cookie jar that mirrors the cookies of one origin into a
// storage area, so a later process can resume the session. Only names and
// values survive; the backend still enforces expiry.
type PersistentJar struct {
	http.CookieJar
	repo   storage.Repo
	origin *url.URL
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewPersistentJar loads any cookies saved in repo for baseURL.
func NewPersistentJar(repo storage.Repo, baseURL string) (*PersistentJar, error) {
	origin, err := url.Parse(baseURL)
	if err != nil || origin.Host == "" {
		return nil, fmt.Errorf("base url %q must include scheme and host", baseURL)
	}
	j := &PersistentJar{
		CookieJar: NewJar(),
		repo:      repo,
		origin:    origin,
		logger:    log.Logger.With().Str("component", "cookiejar").Logger(),
	}

	raw, err := repo.Get(jarKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return j, nil
	case err != nil:
		return nil, fmt.Errorf("load cookies: %w", err)
	}

	var saved []savedCookie
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		j.logger.Warn().Err(err).Msg("ignoring unreadable saved cookies")
		return j, nil
	}
	cookies := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	j.CookieJar.SetCookies(origin, cookies)
	return j, nil
}

// SetCookies updates the jar and then the saved copy.
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.CookieJar.SetCookies(u, cookies)
	if err := j.save(); err != nil {
		j.logger.Error().Err(err).Msg("save cookies")
	}
}

func (j *PersistentJar) save() error {
	current := j.CookieJar.Cookies(j.origin)
	if len(current) == 0 {
		if err := j.repo.Delete(jarKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return nil
	}

	saved := make([]savedCookie, 0, len(current))
	for _, c := range current {
		saved = append(saved, savedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	return j.repo.Set(jarKey, string(data))
}
