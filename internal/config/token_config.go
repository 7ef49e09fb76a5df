package config

import "strings"

type TokenConfig interface {
	GetTokenSecret() string
	GetTokenAudience() string
	GetEnabledIssuers() []string
}

type Token struct{}

var _ TokenConfig = Token{}

func (Token) GetTokenSecret() string {
	return GetEnv("TOKEN_SECRET", "")
}

func (Token) GetTokenAudience() string {
	return GetEnv("TOKEN_AUDIENCE", "go-session-service")
}

// TOKEN_ISSUERS is a comma-separated list; "local" is always enabled by the
// token codec regardless.
func (Token) GetEnabledIssuers() []string {
	var issuers []string
	for _, issuer := range strings.Split(GetEnv("TOKEN_ISSUERS", ""), ",") {
		issuer = strings.TrimSpace(issuer)
		if issuer != "" {
			issuers = append(issuers, issuer)
		}
	}
	return issuers
}
