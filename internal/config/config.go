package config

type Config interface {
	EnvConfig
	ClientConfig
	RefreshConfig
	CleanupConfig
	DevServerConfig
}

type EnvConfig interface {
	GetAppName() string
	GetDataFolder() string
	GetLogLevel() string
	GetLogFormat() string
	GetMetricsAddr() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Client
	Refresh
	Cleanup
	DevServer
}

func New() Config {
	return mainConfig{}
}
