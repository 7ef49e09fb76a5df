package users

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal directory record this service needs. Account management,
// credentials, and profile data live in the upstream user service.
type User struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email,omitempty"`
	DateJoined time.Time `json:"date_joined,omitempty"`
}

// NaturalKey returns the stable human-facing identifier for the user: the
// email address when one is on record, otherwise the username. It seeds the
// unique id of every token issued for the user.
func (u *User) NaturalKey() string {
	if u.Email != "" {
		return u.Email
	}
	return u.Username
}
