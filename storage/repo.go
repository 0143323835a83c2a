package storage

import (
	"errors"
	"strings"

	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = apperrors.ErrNotFound

// Repo is a key/value storage area, the Go stand-in for browser local or
// session storage.
type Repo interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Keys() ([]string, error)
}

// MatchesAny reports whether key contains any of patterns, ignoring case.
func MatchesAny(key string, patterns []string) bool {
	lower := strings.ToLower(key)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// DeleteMatching removes every key in repo that matches one of patterns and
// returns the keys it removed. A failed delete does not stop the others; the
// failures are returned joined.
func DeleteMatching(repo Repo, patterns []string) ([]string, error) {
	keys, err := repo.Keys()
	if err != nil {
		return nil, apperrors.Wrapf(err, "list storage keys")
	}

	var removed []string
	var errs []error
	for _, key := range keys {
		if !MatchesAny(key, patterns) {
			continue
		}
		if err := repo.Delete(key); err != nil {
			errs = append(errs, apperrors.Wrapf(err, "delete storage key %q", key))
			continue
		}
		removed = append(removed, key)
	}
	return removed, errors.Join(errs...)
}
