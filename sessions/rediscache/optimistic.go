package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// errNoWrite aborts a watched transaction when the transform decided the
// current state already satisfies the mutation.
var errNoWrite = errors.New("no write needed")

// casUpdate is the one optimistic-concurrency primitive every index mutation
// goes through: read the user's index under WATCH, prune expired pairs, let
// transform produce the desired next state, and commit it in a transaction
// that fails if the key changed since the read. Each retry is a fresh
// sequential read-modify-write; retries are bounded and exhausting them is a
// benign false, not a fault — contention is an expected outcome, not an
// infrastructure failure.
//
// transform may run several times and must be side-effect free apart from its
// captured result variables; returning write=false commits nothing and counts
// as success.
func (r *Repo) casUpdate(ctx context.Context, key string, transform func(current []indexEntry) (next []indexEntry, write bool)) (bool, error) {
	for attempt := 0; attempt < r.retries; attempt++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := readIndex(ctx, tx, key)
			if err != nil {
				return err
			}

			next, write := transform(current)
			if !write {
				return errNoWrite
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				return writeIndex(ctx, pipe, key, next)
			})
			return err
		}, key)

		switch {
		case err == nil, errors.Is(err, errNoWrite):
			return true, nil
		case errors.Is(err, redis.TxFailedErr):
			continue // lost the race; re-read and try again
		default:
			return false, errors.Wrap(err, "[casUpdate] optimistic index update")
		}
	}
	return false, nil
}

// readIndex loads and prunes the index under the caller's WATCH.
func readIndex(ctx context.Context, tx *redis.Tx, key string) ([]indexEntry, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	entries, err := unmarshalIndex(data)
	if err != nil {
		return nil, err
	}
	return pruneExpired(entries, time.Now().UTC()), nil
}

// writeIndex stores the next index state; an empty index is deleted rather
// than stored.
func writeIndex(ctx context.Context, pipe redis.Pipeliner, key string, entries []indexEntry) error {
	if len(entries) == 0 {
		pipe.Del(ctx, key)
		return nil
	}

	data, err := marshalIndex(entries)
	if err != nil {
		return err
	}
	pipe.Set(ctx, key, data, 0)
	return nil
}
