package sessions

import (
	"sync"
	"time"
)

// fsiKey identifies a failed session invalidation. An empty sessionID means
// "invalidate all sessions of the user".
type fsiKey struct {
	userID    string
	sessionID string
}

type fsiEntry struct {
	lastFailure time.Time
	failures    int
}

// fsiQueue is the in-process ledger of invalidations that faulted against the
// backend and await opportunistic retry. Keyed storage keeps removal stable
// when two cleanup passes run at the same time. Entries do not survive a
// process restart.
type fsiQueue struct {
	mu      sync.Mutex
	entries map[fsiKey]*fsiEntry
}

func newFSIQueue() *fsiQueue {
	return &fsiQueue{entries: make(map[fsiKey]*fsiEntry)}
}

// add records a failed invalidation, or bumps the existing record when the
// same invalidation fails again.
func (q *fsiQueue) add(userID, sessionID string) {
	key := fsiKey{userID: userID, sessionID: sessionID}

	q.mu.Lock()
	defer q.mu.Unlock()

	if entry, ok := q.entries[key]; ok {
		entry.failures++
		entry.lastFailure = time.Now().UTC()
		return
	}
	q.entries[key] = &fsiEntry{lastFailure: time.Now().UTC(), failures: 1}
}

func (q *fsiQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// keys returns a snapshot of the queued invalidations.
func (q *fsiQueue) keys() []fsiKey {
	q.mu.Lock()
	defer q.mu.Unlock()

	keys := make([]fsiKey, 0, len(q.entries))
	for key := range q.entries {
		keys = append(keys, key)
	}
	return keys
}

// resolve drops a queued invalidation after a retry succeeded. Safe to call
// twice for the same key.
func (q *fsiQueue) resolve(key fsiKey) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, key)
}

// bump records another failed retry. A no-op when a concurrent pass already
// resolved the entry.
func (q *fsiQueue) bump(key fsiKey) (failures int, lastFailure time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[key]
	if !ok {
		return 0, time.Time{}
	}
	entry.failures++
	entry.lastFailure = time.Now().UTC()
	return entry.failures, entry.lastFailure
}
