package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/event-networking/internal/application/command"
	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH DIRTY SUGGESTIONS JOB
// Enqueues a regeneration for every event whose profiles changed since the
// last full recomputation. The queue deduplicates per event.
// ══════════════════════════════════════════════════════════════════════════════

// RefreshSuggestionsJob enqueues regeneration of dirty events.
type RefreshSuggestionsJob struct {
	cache   matchmaking.SuggestionCache
	queue   command.RegenerationQueue
	enabled Toggle
	log     *logger.Logger
}

// NewRefreshSuggestionsJob creates the job. A nil enabled toggle means always on.
func NewRefreshSuggestionsJob(cache matchmaking.SuggestionCache, queue command.RegenerationQueue, enabled Toggle, log *logger.Logger) *RefreshSuggestionsJob {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	if log == nil {
		log = logger.Default()
	}
	return &RefreshSuggestionsJob{
		cache:   cache,
		queue:   queue,
		enabled: enabled,
		log:     log.With(logger.Component("job.refresh_suggestions")),
	}
}

// Name returns the job name.
func (j *RefreshSuggestionsJob) Name() string {
	return "refresh_dirty_suggestions"
}

// Description returns a human-readable description.
func (j *RefreshSuggestionsJob) Description() string {
	return "Enqueues suggestion regeneration for events with changed profiles"
}

// Run enqueues every dirty event. One failing event does not stop the rest.
func (j *RefreshSuggestionsJob) Run(ctx context.Context) error {
	if !j.enabled() {
		return nil
	}

	events, err := j.cache.DirtyEvents(ctx)
	if err != nil {
		return fmt.Errorf("refresh_suggestions: list dirty events: %w", err)
	}

	var errs []error
	for _, eventID := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.queue.EnqueueRegenerate(ctx, eventID); err != nil {
			j.log.Warn("failed to enqueue regeneration", logger.EventID(eventID), logger.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", eventID, err))
		}
	}

	if len(events) > 0 {
		j.log.Info("regeneration enqueued",
			logger.Int("events", len(events)),
			logger.Int("failed", len(errs)),
		)
	}
	return errors.Join(errs...)
}
