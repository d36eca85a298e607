package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
)

func newTestCache(t *testing.T) (*SuggestionCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cache, err := NewCache(Config{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	return NewSuggestionCache(cache), mr
}

func sampleList() matchmaking.SuggestionList {
	return matchmaking.SuggestionList{
		{SourceProfileID: "p1", CandidateProfileID: "p2", CandidateParticipantID: "bob", Score: 0.8, MatchedInterests: []string{"ai"}},
		{SourceProfileID: "p1", CandidateProfileID: "p3", CandidateParticipantID: "carol", Score: 0.5},
	}
}

func TestSuggestionCache_PutGetUnderCurrentGeneration(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	gen, err := cache.Generation(ctx, "evt-1")
	require.NoError(t, err)
	assert.Zero(t, gen)

	_, err = cache.Get(ctx, "evt-1", "p1")
	assert.ErrorIs(t, err, matchmaking.ErrCacheMiss)

	require.NoError(t, cache.Put(ctx, "evt-1", "p1", gen, sampleList(), time.Minute))

	got, err := cache.Get(ctx, "evt-1", "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[0].CandidateProfileID)
	assert.Equal(t, 0.8, got[0].Score)
	assert.Equal(t, []string{"ai"}, got[0].MatchedInterests)

	// An empty list is cached as such, not as a miss.
	require.NoError(t, cache.Put(ctx, "evt-1", "p4", gen, nil, time.Minute))
	empty, err := cache.Get(ctx, "evt-1", "p4")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSuggestionCache_InvalidateOrphansLists(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	require.NoError(t, cache.Put(ctx, "evt-1", "p1", 0, sampleList(), time.Minute))
	require.NoError(t, cache.Put(ctx, "evt-2", "p9", 0, sampleList(), time.Minute))

	require.NoError(t, cache.Invalidate(ctx, "evt-1"))

	gen, err := cache.Generation(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	_, err = cache.Get(ctx, "evt-1", "p1")
	assert.ErrorIs(t, err, matchmaking.ErrCacheMiss)

	_, err = cache.Get(ctx, "evt-2", "p9")
	assert.NoError(t, err, "other events keep their lists")

	dirty, err := cache.DirtyEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"evt-1"}, dirty)
}

func TestSuggestionCache_MarkCleanComparesGeneration(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	require.NoError(t, cache.Invalidate(ctx, "evt-1"))
	require.NoError(t, cache.Invalidate(ctx, "evt-2"))

	// A regeneration started at generation 1 finishes after another bump.
	require.NoError(t, cache.Invalidate(ctx, "evt-1"))
	require.NoError(t, cache.MarkClean(ctx, "evt-1", 1))

	dirty, err := cache.DirtyEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"evt-1", "evt-2"}, dirty)

	require.NoError(t, cache.MarkClean(ctx, "evt-1", 2))
	require.NoError(t, cache.MarkClean(ctx, "evt-2", 1))

	dirty, err = cache.DirtyEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)

	// Never-bumped events compare against generation 0.
	require.NoError(t, cache.MarkClean(ctx, "evt-3", 0))
}

func TestSuggestionCache_ListsExpire(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	require.NoError(t, cache.Put(ctx, "evt-1", "p1", 0, sampleList(), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := cache.Get(ctx, "evt-1", "p1")
	assert.ErrorIs(t, err, matchmaking.ErrCacheMiss)
}
