package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/internal/domain/shared"
)

type cachedList struct {
	generation int64
	list       matchmaking.SuggestionList
	expiresAt  time.Time
}

// SuggestionCache implements matchmaking.SuggestionCache in memory.
type SuggestionCache struct {
	clock shared.Clock

	mu          sync.Mutex
	generations map[string]int64
	dirty       map[string]struct{}
	entries     map[string]cachedList // key: event|profile
}

// NewSuggestionCache creates an empty cache.
func NewSuggestionCache(clock shared.Clock) *SuggestionCache {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &SuggestionCache{
		clock:       clock,
		generations: make(map[string]int64),
		dirty:       make(map[string]struct{}),
		entries:     make(map[string]cachedList),
	}
}

// Get returns the list cached for the current generation.
func (c *SuggestionCache) Get(_ context.Context, eventID, profileID string) (matchmaking.SuggestionList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[profileKey(eventID, profileID)]
	if !ok || e.generation != c.generations[eventID] || !c.clock.Now().Before(e.expiresAt) {
		return nil, matchmaking.ErrCacheMiss
	}
	return append(matchmaking.SuggestionList{}, e.list...), nil
}

// Put stores the list for generation.
func (c *SuggestionCache) Put(_ context.Context, eventID, profileID string, generation int64, list matchmaking.SuggestionList, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[profileKey(eventID, profileID)] = cachedList{
		generation: generation,
		list:       append(matchmaking.SuggestionList{}, list...),
		expiresAt:  c.clock.Now().Add(ttl),
	}
	return nil
}

// Generation returns the current generation of the event.
func (c *SuggestionCache) Generation(_ context.Context, eventID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.generations[eventID], nil
}

// Invalidate bumps the generation and marks the event dirty.
func (c *SuggestionCache) Invalidate(_ context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[eventID]++
	c.dirty[eventID] = struct{}{}
	return nil
}

// DirtyEvents returns events waiting for regeneration, sorted.
func (c *SuggestionCache) DirtyEvents(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.dirty))
	for id := range c.dirty {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// MarkClean clears the dirty mark unless the generation moved on.
func (c *SuggestionCache) MarkClean(_ context.Context, eventID string, generation int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[eventID] == generation {
		delete(c.dirty, eventID)
	}
	return nil
}
