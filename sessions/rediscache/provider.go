// Package rediscache stores sessions in Redis using only per-key primitives:
// GET/SET/SETNX/DEL/MGET plus WATCH-guarded transactions as the
// compare-and-swap. The backend has no native secondary index and no
// multi-key atomicity, so both are synthesised here.
//
// Each session lives under its own key with a TTL covering its remaining
// lifetime; eviction by TTL is a convenience, not the source of truth. A
// second key per user holds the set of (session id, expiry) pairs believed
// live for that user, mutated only through the bounded optimistic-concurrency
// loop in casUpdate — a naive get-then-set would silently drop one of two
// interleaved logins.
package rediscache

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-session-service/sessions"
)

const (
	sessionKeyPrefix = "session:"
	indexKeyPrefix   = "usersessions:"

	// DefaultRetries bounds the optimistic-concurrency loop on index keys.
	DefaultRetries = 5
)

// Repo is the Redis-backed sessions.Repo.
type Repo struct {
	client  redis.UniversalClient
	retries int
	log     zerolog.Logger
}

// New creates a Redis session repository. retries bounds the
// compare-and-swap loop on the per-user index; values below one fall back to
// DefaultRetries.
func New(client redis.UniversalClient, retries int, logger zerolog.Logger) *Repo {
	if retries < 1 {
		retries = DefaultRetries
	}
	return &Repo{
		client:  client,
		retries: retries,
		log:     logger,
	}
}

func (r *Repo) sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func (r *Repo) indexKey(userID string) string {
	return indexKeyPrefix + userID
}

// ValidateConnection pings the backend. Never returns an error; any failure
// is logged and reported as false.
func (r *Repo) ValidateConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.log.Error().Err(err).Msg("could not establish connection to redis")
		return false
	}
	r.log.Info().Msg("established connection to redis")
	return true
}

// Create inserts the session into the user's index and then stores the
// primary entry with a TTL covering its lifetime. If the index insert lands
// but the primary store fails, the dangling pair self-corrects the next time
// the index is pruned — pairs carry their own expiry.
func (r *Repo) Create(ctx context.Context, s sessions.Session) (*sessions.Session, error) {
	entry := indexEntry{ID: s.ID, ExpiresAt: s.ExpiresAt.Unix()}
	idxKey := r.indexKey(s.UserID.String())

	// Very first session for the user: a plain set-if-absent skips the read.
	payload, err := marshalIndex([]indexEntry{entry})
	if err != nil {
		return nil, errors.Wrap(err, "[Create] marshal index")
	}
	added, err := r.client.SetNX(ctx, idxKey, payload, 0).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[Create] index set-if-absent")
	}

	if !added {
		inserted, err := r.casUpdate(ctx, idxKey, func(current []indexEntry) ([]indexEntry, bool) {
			for _, e := range current {
				if e.ID == s.ID {
					return current, false // already present
				}
			}
			return append(current, entry), true
		})
		if err != nil {
			return nil, err
		}
		if !inserted {
			return nil, nil // retry budget exhausted under contention
		}
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "[Create] marshal session")
	}
	ttl := s.ExpiresAt.Sub(s.CreatedAt) + time.Second
	stored, err := r.client.SetNX(ctx, r.sessionKey(s.ID), data, ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[Create] session set-if-absent")
	}
	if !stored {
		return nil, nil // duplicate session id
	}
	return &s, nil
}

// Get is a point lookup of the primary entry; the index is never consulted
// since the session id is already known.
func (r *Repo) Get(ctx context.Context, userID, sessionID string) (*sessions.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[Get] session lookup")
	}

	var s sessions.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "[Get] unmarshal session")
	}
	if s.UserID.String() != userID {
		return nil, nil
	}
	return &s, nil
}

// GetMany lists sessions for the given users: bulk-read their indexes, prune
// locally, order each user's surviving ids by recorded expiry, window the
// combined list, then bulk-fetch the primary entries in that window.
//
// Users are visited in ascending user-id order, but within a user the order
// is by expiry — not creation time as on the relational backend. Accepted
// backend-specific divergence.
func (r *Repo) GetMany(ctx context.Context, userIDs []string, opts sessions.ListOptions) ([]sessions.Session, error) {
	if len(userIDs) == 0 {
		return nil, sessions.ErrNoUserIDs
	}

	sorted := append([]string(nil), userIDs...)
	sort.Strings(sorted)

	idxKeys := make([]string, len(sorted))
	for i, userID := range sorted {
		idxKeys[i] = r.indexKey(userID)
	}
	values, err := r.client.MGet(ctx, idxKeys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[GetMany] index lookup")
	}

	now := time.Now().UTC()
	sessionIDs := make([]string, 0)
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // no index for this user
		}
		entries, err := unmarshalIndex([]byte(raw))
		if err != nil {
			return nil, errors.Wrap(err, "[GetMany] unmarshal index")
		}
		entries = pruneExpired(entries, now)
		sortByExpiry(entries)
		for _, e := range entries {
			sessionIDs = append(sessionIDs, e.ID)
		}
	}

	if opts.Offset >= len(sessionIDs) {
		return []sessions.Session{}, nil
	}
	if opts.Offset > 0 {
		sessionIDs = sessionIDs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(sessionIDs) {
		sessionIDs = sessionIDs[:opts.Limit]
	}
	if len(sessionIDs) == 0 {
		return []sessions.Session{}, nil
	}

	keys := make([]string, len(sessionIDs))
	for i, id := range sessionIDs {
		keys[i] = r.sessionKey(id)
	}
	values, err = r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[GetMany] session lookup")
	}

	found := make([]sessions.Session, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // index pair without a primary entry
		}
		var s sessions.Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, errors.Wrap(err, "[GetMany] unmarshal session")
		}
		found = append(found, s)
	}
	return found, nil
}

// Invalidate removes the session's pair from the user's index, then deletes
// the primary entry. Removing an absent pair is a no-op success.
func (r *Repo) Invalidate(ctx context.Context, userID, sessionID string) (bool, error) {
	var removed bool
	ok, err := r.casUpdate(ctx, r.indexKey(userID), func(current []indexEntry) ([]indexEntry, bool) {
		kept := make([]indexEntry, 0, len(current))
		for _, e := range current {
			if e.ID != sessionID {
				kept = append(kept, e)
			}
		}
		removed = len(kept) != len(current)
		if !removed {
			return current, false
		}
		return kept, true
	})
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if removed {
		if err := r.client.Del(ctx, r.sessionKey(sessionID)).Err(); err != nil {
			return false, errors.Wrap(err, "[Invalidate] session delete")
		}
	}
	return true, nil
}

// InvalidateAll clears the user's index and deletes every primary entry it
// named, returning the removed ids.
func (r *Repo) InvalidateAll(ctx context.Context, userID string) ([]string, error) {
	removedIDs := make([]string, 0)
	ok, err := r.casUpdate(ctx, r.indexKey(userID), func(current []indexEntry) ([]indexEntry, bool) {
		removedIDs = removedIDs[:0]
		for _, e := range current {
			removedIDs = append(removedIDs, e.ID)
		}
		if len(current) == 0 {
			return current, false
		}
		return nil, true
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	if len(removedIDs) > 0 {
		keys := make([]string, len(removedIDs))
		for i, id := range removedIDs {
			keys[i] = r.sessionKey(id)
		}
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return nil, errors.Wrap(err, "[InvalidateAll] session delete")
		}
	}
	return append([]string{}, removedIDs...), nil
}

// DeleteOld rewrites each requested user's index with expired pairs pruned.
// The expired/invalid selectors are irrelevant here: primaries evict on their
// own TTL and invalidated sessions are deleted outright, so stale index
// pairs are the only durable leftovers.
//
// The write-back is deliberately not CAS-guarded — this is manual
// housekeeping, not a correctness path. A login for one of these users
// between the read and the write below can lose its index pair; its primary
// entry still lives out its TTL.
func (r *Repo) DeleteOld(ctx context.Context, userIDs []string, _, _ bool) (bool, error) {
	if len(userIDs) == 0 {
		return false, sessions.ErrNoUserIDs
	}

	idxKeys := make([]string, len(userIDs))
	for i, userID := range userIDs {
		idxKeys[i] = r.indexKey(userID)
	}
	values, err := r.client.MGet(ctx, idxKeys...).Result()
	if err != nil {
		return false, errors.Wrap(err, "[DeleteOld] index lookup")
	}

	now := time.Now().UTC()
	pipe := r.client.Pipeline()
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		entries, err := unmarshalIndex([]byte(raw))
		if err != nil {
			return false, errors.Wrap(err, "[DeleteOld] unmarshal index")
		}
		if err := writeIndex(ctx, pipe, idxKeys[i], pruneExpired(entries, now)); err != nil {
			return false, errors.Wrap(err, "[DeleteOld] marshal index")
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, errors.Wrap(err, "[DeleteOld] index rewrite")
	}
	return true, nil
}
