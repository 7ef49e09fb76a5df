package sessions

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-session-service/token"
)

// BearerType says what kind of auth bearer a session represents.
type BearerType string

const (
	BearerCookie BearerType = "cookie"
	BearerToken  BearerType = "token"
)

// Session is the server-side record of one authenticated login. Its ID is the
// unique id (jti) of the token that minted it. IsValid is one-way: once a
// session has been invalidated it never becomes valid again. Timestamps are
// UTC with second precision.
type Session struct {
	ID        string     `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	IsValid   bool       `json:"is_valid" db:"is_valid"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	Provider  string     `json:"provider" db:"provider"`
	Type      BearerType `json:"type" db:"bearer_type"`
}

// IsExpired reports whether the session's lifetime has run out. An
// invalidated session is not expired unless its expiry has also passed.
func (s *Session) IsExpired() bool {
	return s.ExpiresAt.Before(time.Now().UTC().Truncate(time.Second))
}

// FromToken maps a freshly issued token to its session record. The session
// starts valid; no storage is touched.
func FromToken(t token.Token, bearerType BearerType) (Session, error) {
	userID, err := uuid.Parse(t.Subject)
	if err != nil {
		return Session{}, errors.Wrap(err, "[FromToken] token subject is not a user id")
	}

	return Session{
		ID:        t.ID,
		UserID:    userID,
		IsValid:   true,
		CreatedAt: t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
		Provider:  t.Issuer,
		Type:      bearerType,
	}, nil
}
