package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/event-networking/pkg/logger"
)

func upsertCmd(actor string, interests, goals, availability []string) UpsertProfileCommand {
	return UpsertProfileCommand{
		ActorID:      actor,
		EventID:      testEvent,
		Headline:     "Engineer",
		Interests:    interests,
		Goals:        goals,
		Availability: availability,
	}
}

func TestUpsertProfile_CreateThenUpdate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.upsert.Handle(ctx, upsertCmd("x", []string{"AI", " cloud ", "ai"}, []string{"Networking"}, []string{"slot-a"}))
	require.NoError(t, err)
	assert.True(t, created.Created)
	assert.Equal(t, []string{"ai", "cloud"}, created.Profile.Interests)
	assert.Equal(t, []string{"networking"}, created.Profile.Goals)

	h.clock.Advance(time.Minute)
	updated, err := h.upsert.Handle(ctx, upsertCmd("x", []string{"fintech"}, nil, nil))
	require.NoError(t, err)
	assert.False(t, updated.Created)
	assert.Equal(t, created.Profile.ID, updated.Profile.ID)
	assert.Equal(t, []string{"fintech"}, updated.Profile.Interests)
	assert.True(t, updated.Profile.UpdatedAt.After(created.Profile.UpdatedAt))

	assert.Len(t, h.publisher.published(shared.EventProfileUpdated), 2)
}

func TestUpsertProfile_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("unregistered participant", func(t *testing.T) {
		_, err := h.upsert.Handle(ctx, upsertCmd("ghost", []string{"ai"}, nil, nil))
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("unknown availability slot", func(t *testing.T) {
		_, err := h.upsert.Handle(ctx, upsertCmd("x", []string{"ai"}, nil, []string{"slot-a", "slot-z"}))
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("invalid event id", func(t *testing.T) {
		cmd := upsertCmd("x", nil, nil, nil)
		cmd.EventID = "bad id"
		_, err := h.upsert.Handle(ctx, cmd)
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	h.publisher.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestDeleteProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	handler := NewDeleteProfileHandler(h.profiles, h.publisher, logger.Nop())

	err := handler.Handle(ctx, DeleteProfileCommand{ActorID: "x", EventID: testEvent})
	require.ErrorIs(t, err, shared.ErrProfileNotFound)

	_, err = h.upsert.Handle(ctx, upsertCmd("x", []string{"ai"}, nil, nil))
	require.NoError(t, err)

	require.NoError(t, handler.Handle(ctx, DeleteProfileCommand{ActorID: "x", EventID: testEvent}))
	_, err = h.profiles.GetByParticipant(ctx, testEvent, "x")
	assert.True(t, shared.IsNotFound(err))
	h.publisher.AssertCalled(t, "Publish", ofType(shared.EventProfileDeleted))
}

// ══════════════════════════════════════════════════════════════════════════════
// REGENERATION
// ══════════════════════════════════════════════════════════════════════════════

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) EnqueueRegenerate(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func seedProfiles(t *testing.T, h *harness) map[string]*matchmaking.MatchProfile {
	t.Helper()
	ctx := context.Background()

	out := make(map[string]*matchmaking.MatchProfile)
	for actor, cmd := range map[string]UpsertProfileCommand{
		"x":  upsertCmd("x", []string{"AI", "Cloud"}, []string{"Networking"}, nil),
		"y":  upsertCmd("y", []string{"AI", "Fintech"}, []string{"Networking"}, nil),
		"r1": upsertCmd("r1", []string{"gardening"}, []string{"hiring"}, nil),
	} {
		res, err := h.upsert.Handle(ctx, cmd)
		require.NoError(t, err)
		out[actor] = res.Profile
	}
	return out
}

func TestRegenerateSuggestions_FillsCacheAndMarksClean(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cache := memory.NewSuggestionCache(h.clock)

	profiles := seedProfiles(t, h)
	require.NoError(t, cache.Invalidate(ctx, testEvent))

	ranker := matchmaking.NewRanker(matchmaking.MustNewScorer(matchmaking.DefaultWeights()))
	handler := NewRegenerateSuggestionsHandler(h.profiles, cache, ranker, h.publisher, RegenerateConfig{Workers: 2}, logger.Nop())

	res, err := handler.Handle(ctx, RegenerateSuggestionsCommand{EventID: testEvent})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Profiles)

	list, err := cache.Get(ctx, testEvent, profiles["x"].ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "y", list[0].CandidateParticipantID)
	assert.InDelta(t, 0.4667, list[0].Score, 1e-9)

	lonely, err := cache.Get(ctx, testEvent, profiles["r1"].ID)
	require.NoError(t, err)
	assert.Empty(t, lonely)

	dirty, err := cache.DirtyEvents(ctx)
	require.NoError(t, err)
	assert.NotContains(t, dirty, testEvent)

	h.publisher.AssertCalled(t, "Publish", ofType(shared.EventSuggestionsRegenerated))
}

func TestRegenerateSuggestions_StaleGenerationStaysDirty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cache := memory.NewSuggestionCache(h.clock)
	seedProfiles(t, h)

	ranker := matchmaking.NewRanker(matchmaking.MustNewScorer(matchmaking.DefaultWeights()))
	handler := NewRegenerateSuggestionsHandler(h.profiles, cache, ranker, nil, RegenerateConfig{}, logger.Nop())

	res, err := handler.Handle(ctx, RegenerateSuggestionsCommand{EventID: testEvent})
	require.NoError(t, err)

	// A profile change after the run makes the stored lists unreadable.
	require.NoError(t, cache.Invalidate(ctx, testEvent))
	gen, err := cache.Generation(ctx, testEvent)
	require.NoError(t, err)
	assert.Greater(t, gen, res.Generation)

	require.NoError(t, cache.MarkClean(ctx, testEvent, res.Generation))
	dirty, err := cache.DirtyEvents(ctx)
	require.NoError(t, err)
	assert.Contains(t, dirty, testEvent)
}

func TestRequestRegeneration(t *testing.T) {
	queue := &mockQueue{}
	queue.On("EnqueueRegenerate", mock.Anything, testEvent).Return(nil).Once()
	handler := NewRequestRegenerationHandler(queue, logger.Nop())

	require.NoError(t, handler.Handle(context.Background(), RequestRegenerationCommand{ActorID: "x", EventID: testEvent}))

	err := handler.Handle(context.Background(), RequestRegenerationCommand{EventID: testEvent})
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	queue.AssertExpectations(t)

	failing := &mockQueue{}
	failing.On("EnqueueRegenerate", mock.Anything, testEvent).Return(errors.New("redis down"))
	err = NewRequestRegenerationHandler(failing, logger.Nop()).
		Handle(context.Background(), RequestRegenerationCommand{ActorID: "x", EventID: testEvent})
	require.Error(t, err)
}
