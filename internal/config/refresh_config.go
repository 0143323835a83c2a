package config

import "time"

type RefreshConfig interface {
	GetRefreshMargin() time.Duration
	GetMinRefreshDelay() time.Duration
	GetFallbackRefreshInterval() time.Duration
	GetMaxRefreshAttempts() int
	GetRetryWindow() time.Duration
	GetAttemptRetention() time.Duration
	GetRetryMinBackoff() time.Duration
	GetRetryMaxBackoff() time.Duration
	GetProbeInterval() time.Duration
}

type Refresh struct{}

var _ RefreshConfig = Refresh{}

// GetRefreshMargin is how long before expiry the refresh should fire.
func (Refresh) GetRefreshMargin() time.Duration {
	return 60 * time.Second
}

// GetMinRefreshDelay is the floor applied to a scheduled refresh. Credentials
// expiring inside this window are refreshed immediately instead.
func (Refresh) GetMinRefreshDelay() time.Duration {
	return 30 * time.Second
}

// GetFallbackRefreshInterval is used when a refresh succeeds but the new access
// credential cannot be read.
func (Refresh) GetFallbackRefreshInterval() time.Duration {
	return GetDuration("REFRESH_FALLBACK_INTERVAL", 4*time.Minute)
}

func (Refresh) GetMaxRefreshAttempts() int {
	return GetInt("REFRESH_MAX_ATTEMPTS", 3)
}

func (Refresh) GetRetryWindow() time.Duration {
	return 5 * time.Minute
}

func (Refresh) GetAttemptRetention() time.Duration {
	return 10 * time.Minute
}

func (Refresh) GetRetryMinBackoff() time.Duration {
	return GetDuration("REFRESH_BACKOFF_MIN", 500*time.Millisecond)
}

func (Refresh) GetRetryMaxBackoff() time.Duration {
	return GetDuration("REFRESH_BACKOFF_MAX", 8*time.Second)
}

// GetProbeInterval controls the periodic /me probe. Zero disables it.
func (Refresh) GetProbeInterval() time.Duration {
	return GetDuration("PROBE_INTERVAL", 0)
}
