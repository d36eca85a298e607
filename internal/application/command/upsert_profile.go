// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/pkg/logger"
	"github.com/alem-hub/event-networking/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPSERT PROFILE COMMAND
// Creates or replaces the acting participant's networking profile for an
// event. Availability must reference active time slots of the event.
// ══════════════════════════════════════════════════════════════════════════════

// UpsertProfileCommand contains the data to create or update a profile.
type UpsertProfileCommand struct {
	// ActorID is the acting participant; the profile always belongs to them.
	ActorID string

	// EventID is the event the profile is scoped to.
	EventID string

	Headline string
	Bio      string
	JobTitle string
	Company  string

	Interests    []string
	Goals        []string
	Availability []string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UpsertProfileCommand) Validate() error {
	if !shared.IsValidID(c.ActorID) {
		return shared.Validation("matchmaking", "UpsertProfile", "invalid participant id %q", c.ActorID)
	}
	if !shared.IsValidID(c.EventID) {
		return shared.Validation("matchmaking", "UpsertProfile", "invalid event id %q", c.EventID)
	}
	return nil
}

// UpsertProfileResult contains the stored profile.
type UpsertProfileResult struct {
	Profile *matchmaking.MatchProfile

	// Created is true when no profile existed before.
	Created bool

	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UpsertProfileHandler handles the UpsertProfileCommand.
type UpsertProfileHandler struct {
	profiles  matchmaking.ProfileRepository
	directory scheduling.Directory
	publisher shared.EventPublisher
	clock     shared.Clock
	log       *logger.Logger
}

// NewUpsertProfileHandler creates a new UpsertProfileHandler.
func NewUpsertProfileHandler(
	profiles matchmaking.ProfileRepository,
	directory scheduling.Directory,
	publisher shared.EventPublisher,
	clock shared.Clock,
	log *logger.Logger,
) *UpsertProfileHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &UpsertProfileHandler{
		profiles:  profiles,
		directory: directory,
		publisher: publisher,
		clock:     clock,
		log:       log.With(logger.Component("upsert_profile")),
	}
}

// Handle executes the upsert profile command.
func (h *UpsertProfileHandler) Handle(ctx context.Context, cmd UpsertProfileCommand) (*UpsertProfileResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if err := requireRegistration(ctx, h.directory, cmd.EventID, cmd.ActorID, "participant"); err != nil {
		return nil, fmt.Errorf("upsert_profile: %w", err)
	}

	if err := h.checkAvailability(ctx, cmd.EventID, cmd.Availability); err != nil {
		return nil, fmt.Errorf("upsert_profile: %w", err)
	}

	now := h.clock.Now()
	params := matchmaking.ProfileParams{
		ParticipantID: cmd.ActorID,
		EventID:       cmd.EventID,
		Headline:      cmd.Headline,
		Bio:           cmd.Bio,
		JobTitle:      cmd.JobTitle,
		Company:       cmd.Company,
		Interests:     cmd.Interests,
		Goals:         cmd.Goals,
		Availability:  cmd.Availability,
		Now:           now,
	}

	created := false
	profile, err := h.profiles.GetByParticipant(ctx, cmd.EventID, cmd.ActorID)
	switch {
	case err == nil:
		if err := profile.Update(params); err != nil {
			return nil, err
		}
	case shared.IsNotFound(err):
		created = true
		params.ID = uuid.NewString()
		profile, err = matchmaking.NewMatchProfile(params)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("upsert_profile: load profile: %w", err)
	}

	saved, err := h.profiles.Upsert(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("upsert_profile: save profile: %w", err)
	}

	event := shared.NewProfileUpdatedEvent(saved.ID, saved.EventID, saved.ParticipantID)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	publish(h.publisher, h.log, event)

	h.log.Info("profile saved",
		logger.EventID(saved.EventID),
		logger.ProfileID(saved.ID),
		logger.Bool("created", created),
	)

	return &UpsertProfileResult{
		Profile: saved,
		Created: created,
		Events:  []shared.Event{event},
	}, nil
}

// checkAvailability fails closed: availability needs at least one active slot.
func (h *UpsertProfileHandler) checkAvailability(ctx context.Context, eventID string, availability []string) error {
	if len(availability) == 0 {
		return nil
	}

	slots, err := h.directory.GetEventActiveSlots(ctx, eventID)
	if err != nil {
		return fmt.Errorf("load time slots: %w", err)
	}
	if len(slots) == 0 {
		return shared.Validation("matchmaking", "UpsertProfile", "event %s has no active time slots", eventID)
	}

	for _, id := range availability {
		if _, ok := scheduling.FindSlot(slots, id); !ok {
			return shared.Validation("matchmaking", "UpsertProfile", "time slot %q is not an active slot of event %s", id, eventID)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// requireRegistration turns a missing registration into a validation error.
func requireRegistration(ctx context.Context, dir scheduling.Directory, eventID, participantID, role string) error {
	_, err := dir.GetRegistration(ctx, eventID, participantID)
	if err == nil {
		return nil
	}
	if shared.IsNotFound(err) {
		return shared.Validation("scheduling", "Registration", "%s %s is not registered for event %s", role, participantID, eventID)
	}
	return fmt.Errorf("load registration of %s: %w", participantID, err)
}

// publish sends an event; delivery failures never fail the command.
func publish(p shared.EventPublisher, log *logger.Logger, event shared.Event) {
	if err := p.Publish(event); err != nil {
		log.Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
}

// releaseTimeout bounds compensating releases that run after the request
// context may already be cancelled.
const releaseTimeout = 5 * time.Second

// releaseRetrier retries transient registry failures. Domain errors
// (unknown token) are final.
var releaseRetrier = retry.New(
	retry.WithMaxAttempts(3),
	retry.WithInitialDelay(20*time.Millisecond),
	retry.WithMaxDelay(200*time.Millisecond),
	retry.WithRetryIf(func(err error) bool {
		var de *shared.DomainError
		return !errors.As(err, &de)
	}),
)

// releaseHold releases a reservation on a context that survives
// cancellation of the caller's context. A hold that still cannot be
// released is picked up by the sweep's reconciliation.
func releaseHold(ctx context.Context, registry scheduling.SlotRegistry, token scheduling.ReservationToken) error {
	if token == "" {
		return nil
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	return releaseRetrier.Do(rctx, func(ctx context.Context) error {
		return registry.Release(ctx, token)
	})
}
