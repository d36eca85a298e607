package command

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGENERATE SUGGESTIONS COMMAND
// Recomputes every ranked list of an event (O(n²) pair scores) and stores
// them under the generation read before the profiles were loaded. A profile
// change during the run bumps the generation, so the fresh lists are never
// read and the event stays dirty for the next run.
// ══════════════════════════════════════════════════════════════════════════════

// RegenerateSuggestionsCommand identifies the event to recompute.
type RegenerateSuggestionsCommand struct {
	EventID string
}

// Validate validates the command.
func (c RegenerateSuggestionsCommand) Validate() error {
	if !shared.IsValidID(c.EventID) {
		return shared.Validation("matchmaking", "Regenerate", "invalid event id %q", c.EventID)
	}
	return nil
}

// RegenerateSuggestionsResult reports one run.
type RegenerateSuggestionsResult struct {
	EventID    string
	Generation int64
	Profiles   int
	Took       time.Duration
}

// RegenerateConfig contains configuration for the handler.
type RegenerateConfig struct {
	// Workers bounds parallel row computations.
	Workers int

	// CacheTTL is the lifetime of stored lists.
	CacheTTL time.Duration
}

// DefaultRegenerateConfig returns default configuration.
func DefaultRegenerateConfig() RegenerateConfig {
	return RegenerateConfig{
		Workers:  4,
		CacheTTL: 30 * time.Minute,
	}
}

// RegenerateSuggestionsHandler handles the RegenerateSuggestionsCommand.
type RegenerateSuggestionsHandler struct {
	profiles  matchmaking.ProfileRepository
	cache     matchmaking.SuggestionCache
	ranker    *matchmaking.Ranker
	publisher shared.EventPublisher
	config    RegenerateConfig
	log       *logger.Logger
}

// NewRegenerateSuggestionsHandler creates a new RegenerateSuggestionsHandler.
func NewRegenerateSuggestionsHandler(
	profiles matchmaking.ProfileRepository,
	cache matchmaking.SuggestionCache,
	ranker *matchmaking.Ranker,
	publisher shared.EventPublisher,
	config RegenerateConfig,
	log *logger.Logger,
) *RegenerateSuggestionsHandler {
	defaults := DefaultRegenerateConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &RegenerateSuggestionsHandler{
		profiles:  profiles,
		cache:     cache,
		ranker:    ranker,
		publisher: publisher,
		config:    config,
		log:       log.With(logger.Component("regenerate_suggestions")),
	}
}

// Handle recomputes and stores all lists of the event.
func (h *RegenerateSuggestionsHandler) Handle(ctx context.Context, cmd RegenerateSuggestionsCommand) (*RegenerateSuggestionsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	generation, err := h.cache.Generation(ctx, cmd.EventID)
	if err != nil {
		return nil, fmt.Errorf("regenerate: read generation: %w", err)
	}

	profiles, err := h.profiles.ListByEvent(ctx, cmd.EventID)
	if err != nil {
		return nil, fmt.Errorf("regenerate: load profiles: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Workers)

	for _, source := range profiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			list := h.ranker.Rank(source, profiles)
			if err := h.cache.Put(gctx, cmd.EventID, source.ID, generation, list, h.config.CacheTTL); err != nil {
				return fmt.Errorf("store suggestions of %s: %w", source.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("regenerate: %w", err)
	}

	if err := h.cache.MarkClean(ctx, cmd.EventID, generation); err != nil {
		return nil, fmt.Errorf("regenerate: %w", err)
	}

	took := time.Since(start)
	publish(h.publisher, h.log, shared.NewSuggestionsRegeneratedEvent(cmd.EventID, len(profiles), took))

	h.log.Info("suggestions regenerated",
		logger.EventID(cmd.EventID),
		logger.Int64("generation", generation),
		logger.Int("profiles", len(profiles)),
		logger.Latency(took),
	)

	return &RegenerateSuggestionsResult{
		EventID:    cmd.EventID,
		Generation: generation,
		Profiles:   len(profiles),
		Took:       took,
	}, nil
}

// Run adapts Handle to the queue callback signature.
func (h *RegenerateSuggestionsHandler) Run(ctx context.Context, eventID string) error {
	_, err := h.Handle(ctx, RegenerateSuggestionsCommand{EventID: eventID})
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST REGENERATION
// The HTTP trigger only enqueues; the worker (or an in-process goroutine)
// performs the recomputation.
// ══════════════════════════════════════════════════════════════════════════════

// RegenerationQueue schedules asynchronous regeneration. Implementations
// deduplicate requests per event.
type RegenerationQueue interface {
	EnqueueRegenerate(ctx context.Context, eventID string) error
}

// RequestRegenerationCommand asks for an asynchronous recomputation.
type RequestRegenerationCommand struct {
	ActorID string
	EventID string
}

// Validate validates the command.
func (c RequestRegenerationCommand) Validate() error {
	if c.ActorID == "" {
		return shared.ErrUnauthorized
	}
	if !shared.IsValidID(c.EventID) {
		return shared.Validation("matchmaking", "RequestRegeneration", "invalid event id %q", c.EventID)
	}
	return nil
}

// RequestRegenerationHandler handles the RequestRegenerationCommand.
type RequestRegenerationHandler struct {
	queue RegenerationQueue
	log   *logger.Logger
}

// NewRequestRegenerationHandler creates a new RequestRegenerationHandler.
func NewRequestRegenerationHandler(queue RegenerationQueue, log *logger.Logger) *RequestRegenerationHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RequestRegenerationHandler{
		queue: queue,
		log:   log.With(logger.Component("request_regeneration")),
	}
}

// Handle enqueues the regeneration.
func (h *RequestRegenerationHandler) Handle(ctx context.Context, cmd RequestRegenerationCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if err := h.queue.EnqueueRegenerate(ctx, cmd.EventID); err != nil {
		return fmt.Errorf("request_regeneration: %w", err)
	}
	h.log.Debug("regeneration requested", logger.EventID(cmd.EventID), logger.ParticipantID(cmd.ActorID))
	return nil
}
