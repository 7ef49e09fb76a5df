// Package google brokers logins through Google's OIDC endpoint and verifies
// the returned id_token before trusting any claim in it.
package google

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-session-service/providers"
)

const providerName = "google"

const issuerURL = "https://accounts.google.com"

// Provider implements providers.Provider over Google OIDC.
type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

// New discovers Google's OIDC configuration and builds the provider.
func New(ctx context.Context, clientID, clientSecret, redirectURL string) (*Provider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("[New] google oauth config missing required fields")
	}

	oidcProvider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[New] google oidc discovery")
	}

	return &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: oidcProvider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange swaps the authorization code for tokens and verifies the id_token
// locally against Google's published keys.
func (p *Provider) Exchange(ctx context.Context, code string) (*providers.Identity, error) {
	oauthToken, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "[Exchange] google token exchange")
	}

	rawIDToken, ok := oauthToken.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("[Exchange] google did not return an id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Exchange] google id_token verification")
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "[Exchange] google id_token claims")
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, errors.New("[Exchange] google id_token missing required claims")
	}

	return &providers.Identity{
		Provider:      providerName,
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}
