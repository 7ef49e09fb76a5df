package repofakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-service/sessions"
)

// FakeSessionRepo is an in-memory sessions.Repo with the relational backend's
// semantics: deterministic (user id, creation time) ordering, uniqueness on
// (user id, created at), and logical invalidation. Error fields inject faults
// per operation; Refuse* fields simulate benign backend refusals.
type FakeSessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]map[string]sessions.Session // userID -> sessionID -> Session

	ConnectionDown   bool
	CreateErr        error
	GetErr           error
	GetManyErr       error
	InvalidateErr    error
	InvalidateAllErr error
	DeleteOldErr     error
	RefuseInvalidate bool
}

// NewFakeSessionRepo creates an empty in-memory session repository.
func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{sessions: make(map[string]map[string]sessions.Session)}
}

// SetInvalidateErr swaps the injected invalidation fault. Safe to call while
// a cleanup pass is running.
func (r *FakeSessionRepo) SetInvalidateErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.InvalidateErr = err
}

// SetInvalidateAllErr swaps the injected invalidate-all fault.
func (r *FakeSessionRepo) SetInvalidateAllErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.InvalidateAllErr = err
}

func (r *FakeSessionRepo) ValidateConnection(_ context.Context) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.ConnectionDown
}

func (r *FakeSessionRepo) Create(_ context.Context, s sessions.Session) (*sessions.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CreateErr != nil {
		return nil, r.CreateErr
	}

	userID := s.UserID.String()
	if _, ok := r.sessions[userID]; !ok {
		r.sessions[userID] = make(map[string]sessions.Session)
	}
	for _, existing := range r.sessions[userID] {
		if existing.CreatedAt.Equal(s.CreatedAt) {
			return nil, nil // uniqueness conflict on (user_id, created_at)
		}
	}

	r.sessions[userID][s.ID] = s
	return &s, nil
}

func (r *FakeSessionRepo) Get(_ context.Context, userID, sessionID string) (*sessions.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.GetErr != nil {
		return nil, r.GetErr
	}

	s, ok := r.sessions[userID][sessionID]
	if !ok || !s.IsValid || s.IsExpired() {
		return nil, nil
	}
	return &s, nil
}

func (r *FakeSessionRepo) GetMany(_ context.Context, userIDs []string, opts sessions.ListOptions) ([]sessions.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.GetManyErr != nil {
		return nil, r.GetManyErr
	}
	if len(userIDs) == 0 {
		return nil, sessions.ErrNoUserIDs
	}

	sorted := append([]string(nil), userIDs...)
	sort.Strings(sorted)

	now := time.Now().UTC().Truncate(time.Second)
	all := make([]sessions.Session, 0)
	for _, userID := range sorted {
		perUser := make([]sessions.Session, 0, len(r.sessions[userID]))
		for _, s := range r.sessions[userID] {
			if !opts.IncludeExpired && (!s.IsValid || !s.ExpiresAt.After(now)) {
				continue
			}
			perUser = append(perUser, s)
		}
		sort.Slice(perUser, func(i, j int) bool {
			return perUser[i].CreatedAt.Before(perUser[j].CreatedAt)
		})
		all = append(all, perUser...)
	}

	if opts.Offset >= len(all) {
		return []sessions.Session{}, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (r *FakeSessionRepo) Invalidate(_ context.Context, userID, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.InvalidateErr != nil {
		return false, r.InvalidateErr
	}
	if r.RefuseInvalidate {
		return false, nil
	}

	s, ok := r.sessions[userID][sessionID]
	if !ok || !s.IsValid {
		return true, nil // idempotent
	}
	s.IsValid = false
	r.sessions[userID][sessionID] = s
	return true, nil
}

func (r *FakeSessionRepo) InvalidateAll(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.InvalidateAllErr != nil {
		return nil, r.InvalidateAllErr
	}

	ids := make([]string, 0, len(r.sessions[userID]))
	for id, s := range r.sessions[userID] {
		if !s.IsValid {
			continue
		}
		s.IsValid = false
		r.sessions[userID][id] = s
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *FakeSessionRepo) DeleteOld(_ context.Context, userIDs []string, onlyExpired, onlyInvalid bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.DeleteOldErr != nil {
		return false, r.DeleteOldErr
	}
	if len(userIDs) == 0 {
		return false, sessions.ErrNoUserIDs
	}

	for _, userID := range userIDs {
		for id, s := range r.sessions[userID] {
			expired := s.IsExpired()
			invalid := !s.IsValid
			switch {
			case onlyExpired == onlyInvalid: // both or neither: anything old
				if expired || invalid {
					delete(r.sessions[userID], id)
				}
			case onlyInvalid:
				if invalid {
					delete(r.sessions[userID], id)
				}
			default: // onlyExpired
				if s.IsValid && expired {
					delete(r.sessions[userID], id)
				}
			}
		}
	}
	return true, nil
}

// Stored returns a copy of the raw stored session, including invalidated
// ones, for assertions.
func (r *FakeSessionRepo) Stored(userID, sessionID string) (sessions.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID][sessionID]
	return s, ok
}
