package sessions

import (
	"context"
	"errors"
)

var (
	// ErrNotImplemented is returned by storage backends that are selectable
	// but not yet written.
	ErrNotImplemented = errors.New("sessions backend not implemented")

	// ErrNoUserIDs is a caller error: multi-user operations need at least one
	// user id. It is never queued or retried.
	ErrNoUserIDs = errors.New("at least one user id is required")
)

// ListOptions controls GetMany windows. A Limit of zero or less means no
// limit.
type ListOptions struct {
	Offset         int
	Limit          int
	IncludeExpired bool
}

// Repo is the capability set every session storage backend implements.
//
// Failure conventions: a benign failure (backend said no, e.g. a uniqueness
// conflict or an exhausted optimistic-concurrency retry budget) is the zero
// result with a nil error — nil session, false, or a nil id slice. A non-nil
// error means the backend call itself faulted (unreachable, protocol error);
// the service layer treats the two very differently on invalidation paths.
type Repo interface {
	// ValidateConnection is a best-effort reachability probe. It never
	// returns an error; any failure is false.
	ValidateConnection(ctx context.Context) bool

	// Create persists a new session and returns the stored value, or nil on
	// failure (including a uniqueness conflict on (user_id, created_at)).
	Create(ctx context.Context, s Session) (*Session, error)

	// Get returns the session with the given id owned by userID, or nil if
	// it is absent, expired by backend policy, or owned by someone else.
	Get(ctx context.Context, userID, sessionID string) (*Session, error)

	// GetMany returns sessions for the given users in the backend's
	// deterministic order, honouring the window in opts. With
	// IncludeExpired false, nothing expired or invalidated is returned.
	GetMany(ctx context.Context, userIDs []string, opts ListOptions) ([]Session, error)

	// Invalidate flips the session's validity flag. It is idempotent:
	// invalidating an absent or already-invalid session is a success.
	Invalidate(ctx context.Context, userID, sessionID string) (bool, error)

	// InvalidateAll invalidates every session of the user and returns the
	// ids actually transitioned (an empty, non-nil slice when there were
	// none). A nil slice with nil error signals a benign backend failure.
	InvalidateAll(ctx context.Context, userID string) ([]string, error)

	// DeleteOld physically removes old sessions for the given users. With
	// both flags set, or neither, anything invalid or expired goes; with one
	// flag set the sweep is restricted to that condition. Advisory and
	// backend-specific.
	DeleteOld(ctx context.Context, userIDs []string, onlyExpired, onlyInvalid bool) (bool, error)
}
