package providers

import "github.com/pkg/errors"

// ErrUnknownProvider is returned when a login names a provider that was never
// registered.
var ErrUnknownProvider = errors.New("unknown identity provider")

// Registry maps provider names to configured providers. It performs no auth
// logic itself.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers the given providers by name. Later registrations with
// the same name win.
func NewRegistry(list ...Provider) *Registry {
	m := make(map[string]Provider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get looks a provider up by name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownProvider, name)
	}
	return p, nil
}

// Enabled lists the registered provider names.
func (r *Registry) Enabled() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
