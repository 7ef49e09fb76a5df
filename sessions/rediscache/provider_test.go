package rediscache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-service/sessions"
)

func newTestRepo(t *testing.T) (*Repo, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, DefaultRetries, zerolog.Nop()), client
}

func newSession(userID uuid.UUID, ttl time.Duration) sessions.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return sessions.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		IsValid:   true,
		CreatedAt: now.Add(-time.Minute),
		ExpiresAt: now.Add(ttl),
		Provider:  "local",
		Type:      sessions.BearerToken,
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	s := newSession(userID, time.Hour)
	created, err := repo.Create(ctx, s)
	require.NoError(t, err)
	require.NotNil(t, created)

	got, err := repo.Get(ctx, userID.String(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.UserID, got.UserID)
	assert.True(t, got.IsValid)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))
}

func TestGetRejectsForeignOwner(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	s := newSession(uuid.New(), time.Hour)
	_, err := repo.Create(ctx, s)
	require.NoError(t, err)

	got, err := repo.Get(ctx, uuid.NewString(), s.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetUnknownSessionIsBenign(t *testing.T) {
	repo, _ := newTestRepo(t)

	got, err := repo.Get(context.Background(), uuid.NewString(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateDuplicateIDIsBenignFailure(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	s := newSession(uuid.New(), time.Hour)
	created, err := repo.Create(ctx, s)
	require.NoError(t, err)
	require.NotNil(t, created)

	again, err := repo.Create(ctx, s)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestGetManyOrdersByExpiryWithinUser(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	late := newSession(userID, 3*time.Hour)
	early := newSession(userID, time.Hour)
	mid := newSession(userID, 2*time.Hour)
	for _, s := range []sessions.Session{late, early, mid} {
		created, err := repo.Create(ctx, s)
		require.NoError(t, err)
		require.NotNil(t, created)
	}

	found, err := repo.GetMany(ctx, []string{userID.String()}, sessions.ListOptions{})
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, early.ID, found[0].ID)
	assert.Equal(t, mid.ID, found[1].ID)
	assert.Equal(t, late.ID, found[2].ID)
}

func TestGetManySkipsExpiredPairs(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	stale := newSession(userID, -time.Second)
	live := newSession(userID, time.Hour)
	for _, s := range []sessions.Session{stale, live} {
		created, err := repo.Create(ctx, s)
		require.NoError(t, err)
		require.NotNil(t, created)
	}

	found, err := repo.GetMany(ctx, []string{userID.String()}, sessions.ListOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, live.ID, found[0].ID)
}

func TestGetManyPaginationCoversEverySession(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	want := make(map[string]bool)
	for i := 0; i < 7; i++ {
		s := newSession(userID, time.Duration(i+1)*time.Hour)
		created, err := repo.Create(ctx, s)
		require.NoError(t, err)
		require.NotNil(t, created)
		want[s.ID] = true
	}

	seen := make(map[string]bool)
	for offset := 0; ; offset += 3 {
		page, err := repo.GetMany(ctx, []string{userID.String()}, sessions.ListOptions{Offset: offset, Limit: 3})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, s := range page {
			require.False(t, seen[s.ID], "session %s returned twice", s.ID)
			seen[s.ID] = true
		}
	}
	assert.Equal(t, want, seen)
}

func TestGetManyRequiresUserIDs(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetMany(context.Background(), nil, sessions.ListOptions{})
	require.ErrorIs(t, err, sessions.ErrNoUserIDs)
}

func TestInvalidateRemovesSession(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	s := newSession(userID, time.Hour)
	_, err := repo.Create(ctx, s)
	require.NoError(t, err)

	ok, err := repo.Invalidate(ctx, userID.String(), s.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.Get(ctx, userID.String(), s.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	found, err := repo.GetMany(ctx, []string{userID.String()}, sessions.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestInvalidateAbsentSessionIsIdempotent(t *testing.T) {
	repo, _ := newTestRepo(t)

	ok, err := repo.Invalidate(context.Background(), uuid.NewString(), uuid.NewString())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInvalidateAllReturnsRemovedIDs(t *testing.T) {
	repo, client := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	want := make(map[string]bool)
	for i := 0; i < 3; i++ {
		s := newSession(userID, time.Duration(i+1)*time.Hour)
		_, err := repo.Create(ctx, s)
		require.NoError(t, err)
		want[s.ID] = true
	}

	removed, err := repo.InvalidateAll(ctx, userID.String())
	require.NoError(t, err)
	require.Len(t, removed, 3)
	for _, id := range removed {
		assert.True(t, want[id])
		err := client.Get(ctx, sessionKeyPrefix+id).Err()
		assert.ErrorIs(t, err, redis.Nil)
	}

	found, err := repo.GetMany(ctx, []string{userID.String()}, sessions.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestInvalidateAllWithNoSessionsSucceedsEmpty(t *testing.T) {
	repo, _ := newTestRepo(t)

	removed, err := repo.InvalidateAll(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Empty(t, removed)
}

func TestConcurrentCreatesConvergeIndex(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	const workers = 8
	created := make([]*sessions.Session, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := newSession(userID, time.Duration(i+1)*time.Hour)
			s.ID = fmt.Sprintf("concurrent-%02d", i)
			created[i], errs[i] = repo.Create(ctx, s)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i := range created {
		require.NoError(t, errs[i])
		if created[i] != nil {
			succeeded++
		}
	}
	require.Positive(t, succeeded)

	found, err := repo.GetMany(ctx, []string{userID.String()}, sessions.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, found, succeeded, "index must hold exactly the sessions whose create succeeded")
}

func TestDeleteOldPrunesStaleIndexPairs(t *testing.T) {
	repo, client := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	live := newSession(userID, time.Hour)
	_, err := repo.Create(ctx, live)
	require.NoError(t, err)

	stale := newSession(userID, -time.Minute)
	_, err = repo.Create(ctx, stale)
	require.NoError(t, err)

	ok, err := repo.DeleteOld(ctx, []string{userID.String()}, true, false)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := client.Get(ctx, indexKeyPrefix+userID.String()).Bytes()
	require.NoError(t, err)
	entries, err := unmarshalIndex(data)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, live.ID, entries[0].ID)
}

func TestDeleteOldRequiresUserIDs(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.DeleteOld(context.Background(), nil, false, false)
	require.ErrorIs(t, err, sessions.ErrNoUserIDs)
}

func TestValidateConnection(t *testing.T) {
	repo, client := newTestRepo(t)
	assert.True(t, repo.ValidateConnection(context.Background()))

	require.NoError(t, client.Close())
	assert.False(t, repo.ValidateConnection(context.Background()))
}
