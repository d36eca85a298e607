package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/event-networking/pkg/logger"
)

const event = "evt-1"

var now = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	profiles     *memory.ProfileRepository
	appointments *memory.AppointmentRepository
	cache        *memory.SuggestionCache
	handler      *GetSuggestionsHandler
}

func newFixture(t *testing.T, cfg SuggestionsConfig) *fixture {
	t.Helper()
	f := &fixture{
		profiles:     memory.NewProfileRepository(),
		appointments: memory.NewAppointmentRepository(),
		cache:        memory.NewSuggestionCache(shared.NewManualClock(now)),
	}
	ranker := matchmaking.NewRanker(matchmaking.MustNewScorer(matchmaking.DefaultWeights()))
	f.handler = NewGetSuggestionsHandler(f.profiles, f.cache, ranker, f.appointments, cfg, logger.Nop())
	return f
}

func (f *fixture) addProfile(t *testing.T, participant string, updated time.Time, interests, goals []string) *matchmaking.MatchProfile {
	t.Helper()
	p, err := matchmaking.NewMatchProfile(matchmaking.ProfileParams{
		ID:            "p-" + participant,
		ParticipantID: participant,
		EventID:       event,
		Interests:     interests,
		Goals:         goals,
		Now:           updated,
	})
	require.NoError(t, err)
	saved, err := f.profiles.Upsert(context.Background(), p)
	require.NoError(t, err)
	return saved
}

func (f *fixture) suggest(t *testing.T, actor string, limit int) *GetSuggestionsResult {
	t.Helper()
	res, err := f.handler.Handle(context.Background(), GetSuggestionsQuery{ActorID: actor, EventID: event, Limit: limit})
	require.NoError(t, err)
	return res
}

func candidates(res *GetSuggestionsResult) []string {
	out := make([]string, 0, len(res.Suggestions))
	for _, s := range res.Suggestions {
		out = append(out, s.CandidateID)
	}
	return out
}

func TestGetSuggestions_RankingAndScore(t *testing.T) {
	f := newFixture(t, DefaultSuggestionsConfig())
	f.addProfile(t, "a", now, []string{"AI", "Cloud"}, []string{"Networking"})
	f.addProfile(t, "b", now, []string{"AI", "Fintech"}, []string{"Networking"})
	f.addProfile(t, "c", now, []string{"AI", "Cloud"}, []string{"Networking"})
	f.addProfile(t, "d", now, []string{"knitting"}, nil)

	res := f.suggest(t, "a", 0)
	assert.Equal(t, "p-a", res.ProfileID)
	assert.Equal(t, []string{"c", "b"}, candidates(res))
	assert.InDelta(t, 0.8, res.Suggestions[0].Score, 1e-9)
	assert.InDelta(t, 0.4667, res.Suggestions[1].Score, 1e-9)
	assert.Equal(t, []string{"ai"}, res.Suggestions[1].MatchedInterests)
	assert.Equal(t, []string{"networking"}, res.Suggestions[1].MatchedGoals)
	assert.NotNil(t, res.Suggestions[1].SharedSlots)
}

func TestGetSuggestions_TieBreaks(t *testing.T) {
	f := newFixture(t, DefaultSuggestionsConfig())
	f.addProfile(t, "src", now, []string{"go"}, nil)
	f.addProfile(t, "old", now.Add(-time.Hour), []string{"go"}, nil)
	f.addProfile(t, "new", now, []string{"go"}, nil)
	f.addProfile(t, "alsonew", now, []string{"go"}, nil)

	res := f.suggest(t, "src", 0)
	assert.Equal(t, []string{"alsonew", "new", "old"}, candidates(res))
}

func TestGetSuggestions_Limits(t *testing.T) {
	f := newFixture(t, SuggestionsConfig{DefaultLimit: 2, MaxLimit: 3, UseCache: true})
	f.addProfile(t, "src", now, []string{"go"}, nil)
	for _, p := range []string{"p1", "p2", "p3", "p4"} {
		f.addProfile(t, p, now, []string{"go"}, nil)
	}

	assert.Len(t, f.suggest(t, "src", 0).Suggestions, 2)
	assert.Len(t, f.suggest(t, "src", -5).Suggestions, 2)
	assert.Len(t, f.suggest(t, "src", 1).Suggestions, 1)
	assert.Len(t, f.suggest(t, "src", 1000).Suggestions, 3)
}

func TestGetSuggestions_EmptyCases(t *testing.T) {
	f := newFixture(t, DefaultSuggestionsConfig())

	_, err := f.handler.Handle(context.Background(), GetSuggestionsQuery{ActorID: "nobody", EventID: event})
	require.ErrorIs(t, err, shared.ErrProfileNotFound)

	f.addProfile(t, "alone", now, []string{"go"}, nil)
	assert.Empty(t, f.suggest(t, "alone", 0).Suggestions)

	f.addProfile(t, "blank", now, nil, nil)
	assert.Empty(t, f.suggest(t, "blank", 0).Suggestions)
	assert.Empty(t, f.suggest(t, "alone", 0).Suggestions)
}

func TestGetSuggestions_CacheLifecycle(t *testing.T) {
	f := newFixture(t, DefaultSuggestionsConfig())
	ctx := context.Background()
	f.addProfile(t, "a", now, []string{"go"}, nil)
	f.addProfile(t, "b", now, []string{"go"}, nil)

	first := f.suggest(t, "a", 0)
	assert.False(t, first.FromCache)

	second := f.suggest(t, "a", 0)
	assert.True(t, second.FromCache)
	assert.Equal(t, candidates(first), candidates(second))

	// A new peer plus invalidation: the stale list is never served.
	f.addProfile(t, "c", now.Add(time.Minute), []string{"go"}, nil)
	require.NoError(t, f.cache.Invalidate(ctx, event))

	third := f.suggest(t, "a", 0)
	assert.False(t, third.FromCache)
	assert.Equal(t, []string{"c", "b"}, candidates(third))
}

func TestGetSuggestions_WithoutCache(t *testing.T) {
	cfg := DefaultSuggestionsConfig()
	cfg.UseCache = false
	f := newFixture(t, cfg)
	f.addProfile(t, "a", now, []string{"go"}, nil)
	f.addProfile(t, "b", now, []string{"go"}, nil)

	f.suggest(t, "a", 0)
	assert.False(t, f.suggest(t, "a", 0).FromCache)
}

func TestGetSuggestions_SkipsEngagedPeers(t *testing.T) {
	f := newFixture(t, DefaultSuggestionsConfig())
	ctx := context.Background()
	f.addProfile(t, "a", now, []string{"go"}, nil)
	f.addProfile(t, "b", now, []string{"go"}, nil)
	f.addProfile(t, "c", now, []string{"go"}, nil)

	appt, err := scheduling.NewAppointmentRequest(scheduling.NewAppointmentParams{
		ID:          "appt-1",
		EventID:     event,
		RequesterID: "b",
		RecipientID: "a",
		Slot: scheduling.TimeSlot{
			ID: "slot-a", EventID: event, Day: now.Truncate(24 * time.Hour),
			StartsAt: now.Add(time.Hour), EndsAt: now.Add(90 * time.Minute), IsActive: true,
		},
		ReservationToken: "tok-1",
		Now:              now,
	})
	require.NoError(t, err)
	require.NoError(t, f.appointments.Create(ctx, appt))

	assert.Equal(t, []string{"c"}, candidates(f.suggest(t, "a", 0)))

	declined := *appt
	require.NoError(t, declined.Decline("a", now))
	require.NoError(t, f.appointments.Update(ctx, &declined, scheduling.StatusPending))

	assert.ElementsMatch(t, []string{"b", "c"}, candidates(f.suggest(t, "a", 0)))
}

func TestGetSuggestions_Validation(t *testing.T) {
	f := newFixture(t, DefaultSuggestionsConfig())

	_, err := f.handler.Handle(context.Background(), GetSuggestionsQuery{EventID: event})
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = f.handler.Handle(context.Background(), GetSuggestionsQuery{ActorID: "a", EventID: ""})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestListAppointments_OnlyOwn(t *testing.T) {
	repo := memory.NewAppointmentRepository()
	handler := NewListAppointmentsHandler(repo)

	_, err := handler.Handle(context.Background(), ListAppointmentsQuery{ActorID: "a", EventID: event, ParticipantID: "b"})
	require.Error(t, err)
	assert.True(t, shared.IsForbidden(err))

	list, err := handler.Handle(context.Background(), ListAppointmentsQuery{ActorID: "a", EventID: event})
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = handler.Handle(context.Background(), ListAppointmentsQuery{
		ActorID: "a", EventID: event, Statuses: []scheduling.Status{"WAITING"},
	})
	assert.True(t, shared.IsValidation(err))
}

func TestListSlotConflicts(t *testing.T) {
	dir := memory.NewDirectory()
	add := func(id string, startMin, lenMin int, capacity *int) {
		dir.PutSlot(scheduling.TimeSlot{
			ID: id, EventID: event, Day: now.Truncate(24 * time.Hour),
			StartsAt: now.Add(time.Duration(startMin) * time.Minute),
			EndsAt:   now.Add(time.Duration(startMin+lenMin) * time.Minute),
			Capacity: capacity, IsActive: true,
		})
	}
	two := 2
	add("s1", 0, 30, nil)
	add("s2", 15, 30, nil)
	add("s3", 15, 30, &two)
	add("s4", 30, 30, nil)

	out, err := NewListSlotConflictsHandler(dir).Handle(context.Background(), ListSlotConflictsQuery{EventID: event})
	require.NoError(t, err)

	pairs := make([][2]string, 0, len(out))
	for _, c := range out {
		pairs = append(pairs, [2]string{c.First.ID, c.Second.ID})
	}
	assert.Equal(t, [][2]string{{"s1", "s2"}, {"s2", "s4"}}, pairs)
	require.NotNil(t, out[0].Capacity)
	assert.Equal(t, 1, *out[0].Capacity)
}
