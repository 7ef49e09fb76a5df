package repofake

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jrsteele09/go-session-service/users"
)

// FakeUserRepo is an in-memory implementation of users.Repo for tests and
// local development.
type FakeUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]users.User
}

// NewFakeUserRepo creates an empty in-memory user repository.
func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{users: make(map[uuid.UUID]users.User)}
}

// Add stores a user, replacing any existing record with the same ID.
func (r *FakeUserRepo) Add(u users.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

// GetByID retrieves a user by its unique ID.
func (r *FakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return &u, nil
}

// GetByUsername retrieves a user by its unique username.
func (r *FakeUserRepo) GetByUsername(_ context.Context, username string) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, users.ErrUserNotFound
}
