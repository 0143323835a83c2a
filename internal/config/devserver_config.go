package config

import (
	"fmt"
	"time"
)

// DevServerConfig configures the local auth backend used for development and tests.
type DevServerConfig interface {
	GetPort() string
	GetSigningSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
}

type DevServer struct{}

var _ DevServerConfig = DevServer{}

func (DevServer) GetPort() string {
	port := GetEnv("PORT", "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (DevServer) GetSigningSecret() string {
	return GetEnv("JWT_SECRET", "dev-only-signing-secret-change-me-please")
}

func (DevServer) GetAccessTokenExpiry() time.Duration {
	return GetDuration("ACCESS_TOKEN_TTL", 5*time.Minute)
}

func (DevServer) GetRefreshTokenExpiry() time.Duration {
	return GetDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour)
}

func (DevServer) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}
