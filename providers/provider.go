// Package providers holds the external identity providers a login can be
// brokered through. Providers return identity facts only; user lookup, token
// minting and session creation stay with the caller.
package providers

import "context"

// Identity is the normalized result of a successful provider exchange.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	Username      string
	EmailVerified bool
}

// Provider is the contract an external OAuth2/OIDC identity provider
// implements.
type Provider interface {
	// Name is the provider identifier, e.g. "google".
	Name() string

	// AuthCodeURL builds the authorization redirect URL for the given state.
	AuthCodeURL(state string) string

	// Exchange swaps the authorization code for a verified identity.
	Exchange(ctx context.Context, code string) (*Identity, error)
}
