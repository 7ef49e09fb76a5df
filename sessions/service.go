package sessions

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Service is the uniform session API handed to the authentication layer and
// the admin routes. It wraps exactly one storage backend, chosen at startup.
//
// Read and create paths swallow backend faults: they log and return the
// documented failure value (nil / false), so callers treat the outage as
// "service unavailable". Invalidation paths are the exception — the caller
// must learn the operation did not complete, so the fault is returned after
// being captured in the recovery queue for opportunistic retry.
type Service struct {
	repo Repo
	log  zerolog.Logger
	fsi  *fsiQueue
}

// NewService creates a Service on top of the given storage backend.
func NewService(repo Repo, logger zerolog.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[NewService] sessions repo is required")
	}
	return &Service{
		repo: repo,
		log:  logger,
		fsi:  newFSIQueue(),
	}, nil
}

// ValidateConnection probes the configured backend. Meant to be called once
// at startup; a false result means the service is not operational.
func (s *Service) ValidateConnection(ctx context.Context) bool {
	return s.repo.ValidateConnection(ctx)
}

// Create persists a new session. Returns the stored session, or nil when the
// backend refused or faulted.
func (s *Service) Create(ctx context.Context, sess Session) *Session {
	created, err := s.repo.Create(ctx, sess)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", sess.UserID.String()).Msg("session create failed")
		return nil
	}
	s.scheduleFSICleanup(ctx)
	return created
}

// Get returns the session with the given id for the user, or nil when it is
// absent or the backend faulted.
func (s *Service) Get(ctx context.Context, userID, sessionID string) *Session {
	sess, err := s.repo.Get(ctx, userID, sessionID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("session_id", sessionID).Msg("session get failed")
		return nil
	}
	s.scheduleFSICleanup(ctx)
	return sess
}

// GetMany lists sessions for one or more users in the backend's order,
// honouring the window in opts. Nil on fault or bad input.
func (s *Service) GetMany(ctx context.Context, userIDs []string, opts ListOptions) []Session {
	found, err := s.repo.GetMany(ctx, userIDs, opts)
	if err != nil {
		s.log.Error().Err(err).Strs("user_ids", userIDs).Msg("session list failed")
		return nil
	}
	s.scheduleFSICleanup(ctx)
	return found
}

// FilterOutInactive reduces userIDs to the subset with at least one live
// session, preserving input order.
func (s *Service) FilterOutInactive(ctx context.Context, userIDs []string) []string {
	if len(userIDs) == 0 {
		return nil
	}

	found, err := s.repo.GetMany(ctx, userIDs, ListOptions{IncludeExpired: false})
	if err != nil {
		s.log.Error().Err(err).Strs("user_ids", userIDs).Msg("filtering inactive users failed")
		return nil
	}
	s.scheduleFSICleanup(ctx)

	active := make(map[string]struct{}, len(found))
	for _, sess := range found {
		active[sess.UserID.String()] = struct{}{}
	}

	filtered := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := active[id]; ok {
			filtered = append(filtered, id)
		}
	}
	return filtered
}

// Invalidate flips one session to invalid. Idempotent: an absent or
// already-invalid session is a success. A benign backend refusal is
// (false, nil); a backend fault is queued for retry and returned.
func (s *Service) Invalidate(ctx context.Context, userID, sessionID string) (bool, error) {
	ok, err := s.repo.Invalidate(ctx, userID, sessionID)
	if err != nil {
		s.fsi.add(userID, sessionID)
		s.log.Error().Err(err).Str("user_id", userID).Str("session_id", sessionID).Msg("session invalidation failed, queued for retry")
		return false, err
	}
	s.scheduleFSICleanup(ctx)
	return ok, nil
}

// InvalidateAll invalidates every session of the user and returns the ids
// actually transitioned. A nil slice with nil error is a benign backend
// refusal; a backend fault is queued for retry and returned.
func (s *Service) InvalidateAll(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.repo.InvalidateAll(ctx, userID)
	if err != nil {
		s.fsi.add(userID, "")
		s.log.Error().Err(err).Str("user_id", userID).Msg("session invalidate-all failed, queued for retry")
		return nil, err
	}
	s.scheduleFSICleanup(ctx)
	return ids, nil
}

// DeleteOld removes old (expired and/or invalidated) sessions for the given
// users. Administrative housekeeping; best-effort on some backends.
func (s *Service) DeleteOld(ctx context.Context, userIDs []string, onlyExpired, onlyInvalid bool) bool {
	ok, err := s.repo.DeleteOld(ctx, userIDs, onlyExpired, onlyInvalid)
	if err != nil {
		s.log.Error().Err(err).Strs("user_ids", userIDs).Msg("session cleanup failed")
		return false
	}
	return ok
}

// QueuedInvalidations reports how many failed invalidations await retry.
func (s *Service) QueuedInvalidations() int {
	return s.fsi.len()
}

// scheduleFSICleanup launches a detached retry pass over the queued failed
// invalidations. Fire-and-forget: no ordering guarantee relative to the
// operation that scheduled it, and two passes may be in flight at once — the
// queue is keyed, so concurrent resolve/bump stay safe.
func (s *Service) scheduleFSICleanup(ctx context.Context) {
	if s.fsi.len() == 0 {
		return
	}
	go s.fsiCleanup(context.WithoutCancel(ctx))
}

func (s *Service) fsiCleanup(ctx context.Context) {
	for _, key := range s.fsi.keys() {
		var (
			ok  bool
			err error
		)
		if key.sessionID == "" {
			var ids []string
			ids, err = s.repo.InvalidateAll(ctx, key.userID)
			ok = ids != nil
		} else {
			ok, err = s.repo.Invalidate(ctx, key.userID, key.sessionID)
		}

		if err == nil && ok {
			s.fsi.resolve(key)
			continue
		}

		failures, lastFailure := s.fsi.bump(key)
		s.log.Error().
			Err(err).
			Str("user_id", key.userID).
			Str("session_id", key.sessionID).
			Int("failures", failures).
			Time("last_failure", lastFailure).
			Msg("queued session invalidation still failing")
	}
}
