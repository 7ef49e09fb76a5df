package config

type Config interface {
	EnvConfig
	CorsConfig
	SessionsConfig
	TokenConfig
	ProvidersConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Sessions
	Token
	Providers
}

func New() Config {
	return mainConfig{}
}
