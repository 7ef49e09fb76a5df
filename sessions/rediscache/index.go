package rediscache

import (
	"encoding/json"
	"sort"
	"time"
)

// indexEntry is one (session id, expiry) pair in a user's session index. The
// index is a convenience for "all sessions of user X" lookups; the per-session
// primary entry stays authoritative.
type indexEntry struct {
	ID        string `json:"id"`
	ExpiresAt int64  `json:"exp"` // unix seconds
}

// pruneExpired filters entries to those still alive at now. Pairs are judged
// by their own recorded expiry, never by whether the backend has evicted the
// primary entry yet — TTL eviction lags and is not observable without a read.
func pruneExpired(entries []indexEntry, now time.Time) []indexEntry {
	alive := entries[:0]
	for _, e := range entries {
		if e.ExpiresAt > now.Unix() {
			alive = append(alive, e)
		}
	}
	return alive
}

// sortByExpiry orders entries ascending by expiry, then id for determinism.
// This is the cache backend's listing order; the relational backend orders by
// creation time instead, a known, accepted divergence.
func sortByExpiry(entries []indexEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ExpiresAt != entries[j].ExpiresAt {
			return entries[i].ExpiresAt < entries[j].ExpiresAt
		}
		return entries[i].ID < entries[j].ID
	})
}

func marshalIndex(entries []indexEntry) ([]byte, error) {
	return json.Marshal(entries)
}

func unmarshalIndex(data []byte) ([]indexEntry, error) {
	var entries []indexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
