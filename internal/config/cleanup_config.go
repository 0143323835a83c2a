package config

import (
	"strings"
	"time"
)

type CleanupConfig interface {
	GetStorageKeyPatterns() []string
	GetRedirectDelay() time.Duration
	GetNotificationDedupWindow() time.Duration
}

type Cleanup struct{}

var _ CleanupConfig = Cleanup{}

// defaultStoragePatterns is the canonical list of key fragments wiped on logout.
// cart and preferences are included on purpose.
var defaultStoragePatterns = []string{"auth", "token", "user", "session", "login", "cart", "preferences"}

// GetStorageKeyPatterns returns the substrings that mark a storage key as
// session-bound. BRAND_AUTH_PREFIX adds the storefront specific prefix.
func (Cleanup) GetStorageKeyPatterns() []string {
	patterns := append([]string(nil), defaultStoragePatterns...)
	if prefix := strings.TrimSpace(GetEnv("BRAND_AUTH_PREFIX", "")); prefix != "" {
		patterns = append(patterns, prefix)
	}
	return patterns
}

func (Cleanup) GetRedirectDelay() time.Duration {
	return GetDuration("REDIRECT_DELAY", 1500*time.Millisecond)
}

func (Cleanup) GetNotificationDedupWindow() time.Duration {
	return 5 * time.Second
}
