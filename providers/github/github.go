// Package github brokers logins through GitHub's OAuth2 flow. GitHub is plain
// OAuth2, not OIDC, so the identity comes from its user API rather than a
// verifiable id_token.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/jrsteele09/go-session-service/providers"
)

const providerName = "github"

const userEndpoint = "https://api.github.com/user"

// Provider implements providers.Provider over GitHub OAuth2.
type Provider struct {
	oauthConfig *oauth2.Config
}

// New builds the GitHub provider.
func New(clientID, clientSecret, redirectURL string) (*Provider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("[New] github oauth config missing required fields")
	}

	return &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     githuboauth.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
	}, nil
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state)
}

// Exchange swaps the authorization code for an access token and reads the
// authenticated user from GitHub's API.
func (p *Provider) Exchange(ctx context.Context, code string) (*providers.Identity, error) {
	oauthToken, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "[Exchange] github token exchange")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userEndpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Exchange] github user request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.oauthConfig.Client(ctx, oauthToken).Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Exchange] github user lookup")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("[Exchange] github user lookup returned %d", resp.StatusCode)
	}

	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, errors.Wrap(err, "[Exchange] github user decode")
	}
	if user.ID == 0 || user.Login == "" {
		return nil, errors.New("[Exchange] github user response missing required fields")
	}

	return &providers.Identity{
		Provider: providerName,
		Subject:  fmt.Sprintf("%d", user.ID),
		Email:    user.Email,
		Username: user.Login,
	}, nil
}
