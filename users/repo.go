package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned by repositories when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// Repo is the read-only user lookup capability consumed by the login and
// validation paths.
type Repo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}
