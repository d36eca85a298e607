package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUGGESTION CACHE
//
// Keys:
//   match:suggest:{event}:gen              - current generation (INCR)
//   match:suggest:{event}:g{gen}:{profile} - ranked list (JSON, TTL)
//   match:suggest:dirty                    - set of events waiting for Regenerate
//
// Bumping the generation orphans every list of the event at once; orphaned
// lists expire through their TTL.
// ══════════════════════════════════════════════════════════════════════════════

const dirtyEventsKey = PrefixSuggestions + "dirty"

// markCleanScript removes the dirty mark only if the generation is unchanged.
var markCleanScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if (current or '0') == ARGV[1] then
	return redis.call('SREM', KEYS[2], ARGV[2])
end
return 0
`)

// SuggestionCache implements matchmaking.SuggestionCache on Redis.
type SuggestionCache struct {
	cache *Cache
}

// NewSuggestionCache creates a new SuggestionCache.
func NewSuggestionCache(cache *Cache) *SuggestionCache {
	return &SuggestionCache{cache: cache}
}

func generationKey(eventID string) string {
	return PrefixSuggestions + eventID + ":gen"
}

func listKey(eventID string, generation int64, profileID string) string {
	return fmt.Sprintf("%s%s:g%d:%s", PrefixSuggestions, eventID, generation, profileID)
}

// Get returns the list stored under the current generation.
func (s *SuggestionCache) Get(ctx context.Context, eventID, profileID string) (matchmaking.SuggestionList, error) {
	gen, err := s.Generation(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var list matchmaking.SuggestionList
	if err := s.cache.Get(ctx, listKey(eventID, gen, profileID), &list); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, matchmaking.ErrCacheMiss
		}
		return nil, fmt.Errorf("get suggestions: %w", err)
	}
	return list, nil
}

// Put stores the list under generation.
func (s *SuggestionCache) Put(ctx context.Context, eventID, profileID string, generation int64, list matchmaking.SuggestionList, ttl time.Duration) error {
	if list == nil {
		list = matchmaking.SuggestionList{}
	}
	if err := s.cache.Set(ctx, listKey(eventID, generation, profileID), list, ttl); err != nil {
		return fmt.Errorf("put suggestions: %w", err)
	}
	return nil
}

// Generation returns the event's current generation (0 when never bumped).
func (s *SuggestionCache) Generation(ctx context.Context, eventID string) (int64, error) {
	raw, err := s.cache.Client().Get(ctx, generationKey(eventID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get generation: %w", err)
	}

	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse generation %q: %w", raw, err)
	}
	return gen, nil
}

// Invalidate bumps the generation and marks the event dirty in one round trip.
func (s *SuggestionCache) Invalidate(ctx context.Context, eventID string) error {
	_, err := s.cache.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(eventID))
		pipe.SAdd(ctx, dirtyEventsKey, eventID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate suggestions: %w", err)
	}
	return nil
}

// DirtyEvents returns events waiting for regeneration, sorted.
func (s *SuggestionCache) DirtyEvents(ctx context.Context) ([]string, error) {
	events, err := s.cache.Client().SMembers(ctx, dirtyEventsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list dirty events: %w", err)
	}
	sort.Strings(events)
	return events, nil
}

// MarkClean clears the dirty mark unless the generation moved on.
func (s *SuggestionCache) MarkClean(ctx context.Context, eventID string, generation int64) error {
	err := markCleanScript.Run(ctx, s.cache.Client(),
		[]string{generationKey(eventID), dirtyEventsKey},
		strconv.FormatInt(generation, 10), eventID,
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("mark clean: %w", err)
	}
	return nil
}
