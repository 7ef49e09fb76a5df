package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ name string }

func (s *stubProvider) Name() string              { return s.name }
func (s *stubProvider) AuthCodeURL(string) string { return "https://example.com/auth" }
func (s *stubProvider) Exchange(_ context.Context, _ string) (*Identity, error) {
	return &Identity{Provider: s.name}, nil
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry(&stubProvider{name: "google"}, &stubProvider{name: "github"})

	p, err := reg.Get("google")
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())

	_, err = reg.Get("myspace")
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistryEnabled(t *testing.T) {
	reg := NewRegistry(&stubProvider{name: "google"}, &stubProvider{name: "github"})
	assert.ElementsMatch(t, []string{"google", "github"}, reg.Enabled())
}
