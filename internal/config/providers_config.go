package config

type ProvidersConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGithubClientID() string
	GetGithubClientSecret() string
	GetOAuthRedirectURL() string
}

type Providers struct{}

var _ ProvidersConfig = Providers{}

func (Providers) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (Providers) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

func (Providers) GetGithubClientID() string {
	return GetEnv("GITHUB_CLIENT_ID", "")
}

func (Providers) GetGithubClientSecret() string {
	return GetEnv("GITHUB_CLIENT_SECRET", "")
}

func (Providers) GetOAuthRedirectURL() string {
	return GetEnv("OAUTH_REDIRECT_URL", "")
}
