package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/event-networking/internal/application/command"
	"github.com/alem-hub/event-networking/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/event-networking/pkg/logger"
)

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) EnqueueRegenerate(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

type mockSweeper struct {
	mock.Mock
}

func (m *mockSweeper) Handle(ctx context.Context, cmd command.CompleteAppointmentsCommand) (*command.CompleteAppointmentsResult, error) {
	args := m.Called(ctx, cmd)
	res, _ := args.Get(0).(*command.CompleteAppointmentsResult)
	return res, args.Error(1)
}

func TestRefreshSuggestionsJob_EnqueuesDirtyEvents(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewSuggestionCache(nil)
	require.NoError(t, cache.Invalidate(ctx, "evt-1"))
	require.NoError(t, cache.Invalidate(ctx, "evt-2"))

	queue := &mockQueue{}
	queue.On("EnqueueRegenerate", mock.Anything, "evt-1").Return(nil).Once()
	queue.On("EnqueueRegenerate", mock.Anything, "evt-2").Return(errors.New("redis down")).Once()

	job := NewRefreshSuggestionsJob(cache, queue, nil, logger.Nop())
	assert.Equal(t, "refresh_dirty_suggestions", job.Name())

	err := job.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evt-2")
	queue.AssertExpectations(t)
}

func TestRefreshSuggestionsJob_Disabled(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewSuggestionCache(nil)
	require.NoError(t, cache.Invalidate(ctx, "evt-1"))

	queue := &mockQueue{}
	job := NewRefreshSuggestionsJob(cache, queue, func() bool { return false }, logger.Nop())

	require.NoError(t, job.Run(ctx))
	queue.AssertNotCalled(t, "EnqueueRegenerate", mock.Anything, mock.Anything)
}

func TestCompleteAppointmentsJob_PassesFlag(t *testing.T) {
	expire := true
	sweeper := &mockSweeper{}
	sweeper.On("Handle", mock.Anything, command.CompleteAppointmentsCommand{ExpirePending: true, BatchSize: 50}).
		Return(&command.CompleteAppointmentsResult{Completed: 2}, nil).Once()
	sweeper.On("Handle", mock.Anything, command.CompleteAppointmentsCommand{ExpirePending: false, BatchSize: 50}).
		Return(&command.CompleteAppointmentsResult{}, nil).Once()

	job := NewCompleteAppointmentsJob(sweeper, CompleteAppointmentsConfig{
		ExpirePending: func() bool { return expire },
		BatchSize:     50,
	}, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 2, job.LastResult().Completed)

	expire = false
	require.NoError(t, job.Run(context.Background()))
	sweeper.AssertExpectations(t)
}
