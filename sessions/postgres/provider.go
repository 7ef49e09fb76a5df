// Package postgres is the relational sessions backend. Postgres enforces the
// invariants the cache backend has to synthesise: the primary key rejects
// duplicate session ids and a unique (user_id, created_at) constraint rejects
// duplicate logins within the same second.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-session-service/sessions"
)

// queryTimeout caps every statement so a hung backend surfaces as a fault
// instead of a stuck caller.
const queryTimeout = 5 * time.Second

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// Repo is the Postgres-backed sessions.Repo.
type Repo struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// New creates a Postgres session repository over an existing pool.
func New(pool *pgxpool.Pool, logger zerolog.Logger) *Repo {
	return &Repo{pool: pool, log: logger}
}

// ValidateConnection pings the pool. Never returns an error; any failure is
// logged and reported as false.
func (r *Repo) ValidateConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := r.pool.Ping(ctx); err != nil {
		r.log.Error().Err(err).Msg("could not establish connection to postgres")
		return false
	}
	r.log.Info().Msg("established connection to postgres")
	return true
}

// Create inserts the session and returns the stored row. A unique constraint
// breach — duplicate id or a second login for the user within the same second
// — is a benign nil, not an error.
func (r *Repo) Create(ctx context.Context, s sessions.Session) (*sessions.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var stored sessions.Session
	err := pgxscan.Get(ctx, r.pool, &stored, `
		INSERT INTO sessions (id, user_id, is_valid, created_at, expires_at, provider, bearer_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, user_id, is_valid, created_at, expires_at, provider, bearer_type`,
		s.ID, s.UserID, s.IsValid, s.CreatedAt, s.ExpiresAt, s.Provider, s.Type)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[Create] insert session")
	}
	return &stored, nil
}

// Get returns the user's session if it is still valid and unexpired; absent,
// expired, invalidated and foreign-owned sessions all read as nil.
func (r *Repo) Get(ctx context.Context, userID, sessionID string) (*sessions.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s sessions.Session
	err := pgxscan.Get(ctx, r.pool, &s, `
		SELECT id, user_id, is_valid, created_at, expires_at, provider, bearer_type
		FROM sessions
		WHERE id = $1 AND user_id = $2 AND is_valid AND expires_at > now()`,
		sessionID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[Get] select session")
	}
	return &s, nil
}

// GetMany lists sessions for the given users ordered by user id then creation
// time, honouring the window in opts.
func (r *Repo) GetMany(ctx context.Context, userIDs []string, opts sessions.ListOptions) ([]sessions.Session, error) {
	if len(userIDs) == 0 {
		return nil, sessions.ErrNoUserIDs
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, user_id, is_valid, created_at, expires_at, provider, bearer_type
		FROM sessions
		WHERE user_id = ANY($1::uuid[])`
	if !opts.IncludeExpired {
		query += ` AND is_valid AND expires_at > now()`
	}
	query += ` ORDER BY user_id, created_at OFFSET $2`
	args := []any{userIDs, opts.Offset}
	if opts.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, opts.Limit)
	}

	found := []sessions.Session{}
	if err := pgxscan.Select(ctx, r.pool, &found, query, args...); err != nil {
		return nil, errors.Wrap(err, "[GetMany] select sessions")
	}
	return found, nil
}

// Invalidate flips the session's validity flag. Updating zero rows — absent
// or already invalid — is still a success.
func (r *Repo) Invalidate(ctx context.Context, userID, sessionID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE sessions SET is_valid = FALSE
		WHERE id = $1 AND user_id = $2 AND is_valid`,
		sessionID, userID)
	if err != nil {
		return false, errors.Wrap(err, "[Invalidate] update session")
	}
	return true, nil
}

// InvalidateAll invalidates every still-valid session of the user and returns
// the ids actually transitioned; none is an empty slice, not nil.
func (r *Repo) InvalidateAll(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ids := []string{}
	err := pgxscan.Select(ctx, r.pool, &ids, `
		UPDATE sessions SET is_valid = FALSE
		WHERE user_id = $1 AND is_valid
		RETURNING id`,
		userID)
	if err != nil {
		return nil, errors.Wrap(err, "[InvalidateAll] update sessions")
	}
	return ids, nil
}

// DeleteOld physically removes the users' dead sessions per the flag rules in
// sessions.Repo.
func (r *Repo) DeleteOld(ctx context.Context, userIDs []string, onlyExpired, onlyInvalid bool) (bool, error) {
	if len(userIDs) == 0 {
		return false, sessions.ErrNoUserIDs
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := fmt.Sprintf(
		`DELETE FROM sessions WHERE user_id = ANY($1::uuid[]) AND %s`,
		deleteOldCondition(onlyExpired, onlyInvalid))
	tag, err := r.pool.Exec(ctx, query, userIDs)
	if err != nil {
		return false, errors.Wrap(err, "[DeleteOld] delete sessions")
	}
	r.log.Debug().Int64("deleted", tag.RowsAffected()).Msg("purged old sessions")
	return true, nil
}

// deleteOldCondition picks the sweep predicate: one flag restricts the sweep
// to that condition, both or neither sweep everything dead. "Expired only"
// still excludes invalidated sessions so the two restricted sweeps are
// disjoint.
func deleteOldCondition(onlyExpired, onlyInvalid bool) string {
	switch {
	case onlyExpired && !onlyInvalid:
		return `(is_valid AND expires_at <= now())`
	case onlyInvalid && !onlyExpired:
		return `NOT is_valid`
	default:
		return `(NOT is_valid OR expires_at <= now())`
	}
}
