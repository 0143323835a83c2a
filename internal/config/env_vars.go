package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"
)

const (
	appNameVar     = "APP_NAME"
	folderEnvVar   = "FOLDER"
	logLevelVar    = "LOG_LEVEL"
	logFormatVar   = "LOG_FORMAT"
	metricsAddrVar = "METRICS_ADDR"
)

var (
	envOnce sync.Once
	env     *viper.Viper
)

// environment returns the shared viper instance. Values come from the process
// environment first and an optional .env file in the working directory second.
func environment() *viper.Viper {
	envOnce.Do(func() {
		v := viper.New()
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		_ = v.ReadInConfig() // a missing .env is fine
		v.AutomaticEnv()
		env = v
	})
	return env
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Session Client")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetLogFormat() string {
	return GetEnv(logFormatVar, "console")
}

// GetMetricsAddr is the listen address for the prometheus endpoint. Empty disables it.
func (EnvVars) GetMetricsAddr() string {
	return GetEnv(metricsAddrVar, "")
}

func (EnvVars) GetEnv() string {
	return GetEnv("ENV", "DEV")
}

func GetEnv(envVar, defaultValue string) string {
	value := environment().GetString(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDuration parses envVar with time.ParseDuration, falling back to defaultValue
// when unset or invalid.
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := environment().GetString(envVar)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}

// GetInt returns envVar as an int, falling back to defaultValue when unset or not positive.
func GetInt(envVar string, defaultValue int) int {
	if !environment().IsSet(envVar) {
		return defaultValue
	}
	n := environment().GetInt(envVar)
	if n <= 0 {
		return defaultValue
	}
	return n
}
