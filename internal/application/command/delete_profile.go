package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE PROFILE COMMAND
// Removes the acting participant's profile. Also used when the owning
// registration is removed by the event service.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteProfileCommand contains the data to delete a profile.
type DeleteProfileCommand struct {
	ActorID       string
	EventID       string
	CorrelationID string
}

// Validate validates the command.
func (c DeleteProfileCommand) Validate() error {
	if !shared.IsValidID(c.ActorID) {
		return shared.Validation("matchmaking", "DeleteProfile", "invalid participant id %q", c.ActorID)
	}
	if !shared.IsValidID(c.EventID) {
		return shared.Validation("matchmaking", "DeleteProfile", "invalid event id %q", c.EventID)
	}
	return nil
}

// DeleteProfileHandler handles the DeleteProfileCommand.
type DeleteProfileHandler struct {
	profiles  matchmaking.ProfileRepository
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewDeleteProfileHandler creates a new DeleteProfileHandler.
func NewDeleteProfileHandler(profiles matchmaking.ProfileRepository, publisher shared.EventPublisher, log *logger.Logger) *DeleteProfileHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &DeleteProfileHandler{
		profiles:  profiles,
		publisher: publisher,
		log:       log.With(logger.Component("delete_profile")),
	}
}

// Handle deletes the profile. A missing profile yields ProfileNotFound.
func (h *DeleteProfileHandler) Handle(ctx context.Context, cmd DeleteProfileCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	profile, err := h.profiles.GetByParticipant(ctx, cmd.EventID, cmd.ActorID)
	if err != nil {
		return fmt.Errorf("delete_profile: %w", err)
	}

	if err := h.profiles.Delete(ctx, cmd.EventID, cmd.ActorID); err != nil {
		return fmt.Errorf("delete_profile: %w", err)
	}

	event := shared.NewProfileDeletedEvent(profile.ID, profile.EventID, profile.ParticipantID)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	publish(h.publisher, h.log, event)

	h.log.Info("profile deleted", logger.EventID(cmd.EventID), logger.ProfileID(profile.ID))
	return nil
}
