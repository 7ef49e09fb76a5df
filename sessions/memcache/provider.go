// Package memcache reserves the memcached slot in the sessions backend set.
// The wire-up exists so the backend stays selectable; the implementation does
// not.
package memcache

import (
	"context"

	"github.com/jrsteele09/go-session-service/sessions"
)

// Repo satisfies sessions.Repo but every operation reports
// sessions.ErrNotImplemented.
type Repo struct{}

// New creates the placeholder memcached repository.
func New() *Repo {
	return &Repo{}
}

func (r *Repo) ValidateConnection(_ context.Context) bool {
	return false
}

func (r *Repo) Create(_ context.Context, _ sessions.Session) (*sessions.Session, error) {
	return nil, sessions.ErrNotImplemented
}

func (r *Repo) Get(_ context.Context, _, _ string) (*sessions.Session, error) {
	return nil, sessions.ErrNotImplemented
}

func (r *Repo) GetMany(_ context.Context, _ []string, _ sessions.ListOptions) ([]sessions.Session, error) {
	return nil, sessions.ErrNotImplemented
}

func (r *Repo) Invalidate(_ context.Context, _, _ string) (bool, error) {
	return false, sessions.ErrNotImplemented
}

func (r *Repo) InvalidateAll(_ context.Context, _ string) ([]string, error) {
	return nil, sessions.ErrNotImplemented
}

func (r *Repo) DeleteOld(_ context.Context, _ []string, _, _ bool) (bool, error) {
	return false, sessions.ErrNotImplemented
}
