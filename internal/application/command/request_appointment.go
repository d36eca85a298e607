package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST APPOINTMENT COMMAND
// Proposes a meeting in a time slot (and optionally a location). Both
// parties get a soft hold in the slot registry before the request is stored.
// ══════════════════════════════════════════════════════════════════════════════

// RequestAppointmentCommand contains the data to request an appointment.
type RequestAppointmentCommand struct {
	// ActorID is the requester.
	ActorID string

	EventID     string
	RecipientID string
	TimeSlotID  string

	// LocationID is optional (empty = no location).
	LocationID string

	Message string

	CorrelationID string
}

// Validate validates the command.
func (c RequestAppointmentCommand) Validate() error {
	const op = "Request"
	if !shared.IsValidID(c.EventID) {
		return shared.Validation("scheduling", op, "invalid event id %q", c.EventID)
	}
	if err := scheduling.ValidateRequestParties(c.ActorID, c.RecipientID); err != nil {
		return err
	}
	if !shared.IsValidID(c.TimeSlotID) {
		return shared.Validation("scheduling", op, "invalid time slot id %q", c.TimeSlotID)
	}
	if c.LocationID != "" && !shared.IsValidID(c.LocationID) {
		return shared.Validation("scheduling", op, "invalid location id %q", c.LocationID)
	}
	return scheduling.ValidateMessage(c.Message)
}

// RequestAppointmentHandler handles the RequestAppointmentCommand.
type RequestAppointmentHandler struct {
	appointments scheduling.AppointmentRepository
	registry     scheduling.SlotRegistry
	directory    scheduling.Directory
	publisher    shared.EventPublisher
	clock        shared.Clock
	log          *logger.Logger
}

// NewRequestAppointmentHandler creates a new RequestAppointmentHandler.
func NewRequestAppointmentHandler(
	appointments scheduling.AppointmentRepository,
	registry scheduling.SlotRegistry,
	directory scheduling.Directory,
	publisher shared.EventPublisher,
	clock shared.Clock,
	log *logger.Logger,
) *RequestAppointmentHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &RequestAppointmentHandler{
		appointments: appointments,
		registry:     registry,
		directory:    directory,
		publisher:    publisher,
		clock:        clock,
		log:          log.With(logger.Component("request_appointment")),
	}
}

// Handle executes the request appointment command.
// SlotFull and ParticipantDoubleBooked from the registry are returned as is.
func (h *RequestAppointmentHandler) Handle(ctx context.Context, cmd RequestAppointmentCommand) (*scheduling.AppointmentRequest, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if err := requireRegistration(ctx, h.directory, cmd.EventID, cmd.ActorID, "requester"); err != nil {
		return nil, fmt.Errorf("request_appointment: %w", err)
	}
	if err := requireRegistration(ctx, h.directory, cmd.EventID, cmd.RecipientID, "recipient"); err != nil {
		return nil, fmt.Errorf("request_appointment: %w", err)
	}

	now := h.clock.Now()

	slot, location, overlapping, err := h.resolvePlace(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("request_appointment: %w", err)
	}
	if slot.HasStarted(now) {
		return nil, shared.Validation("scheduling", "Request", "time slot %s has already started", slot.ID)
	}

	// Named error for commitments the registry cannot see (slots since deactivated).
	for _, participant := range []string{cmd.ActorID, cmd.RecipientID} {
		if err := h.checkOverlaps(ctx, cmd.EventID, participant, slot); err != nil {
			return nil, err
		}
	}

	// The registry re-checks every overlapping slot under its own locks.
	token, err := h.registry.Reserve(ctx, scheduling.ReserveParams{
		TimeSlotID:         slot.ID,
		LocationID:         cmd.LocationID,
		ParticipantID:      cmd.ActorID,
		CounterpartID:      cmd.RecipientID,
		Capacity:           scheduling.EffectiveCapacity(slot, location),
		OverlappingSlotIDs: overlapping,
	})
	if err != nil {
		return nil, err
	}

	appt, err := scheduling.NewAppointmentRequest(scheduling.NewAppointmentParams{
		ID:               uuid.NewString(),
		EventID:          cmd.EventID,
		RequesterID:      cmd.ActorID,
		RecipientID:      cmd.RecipientID,
		Slot:             slot,
		LocationID:       cmd.LocationID,
		Message:          cmd.Message,
		ReservationToken: token.String(),
		Now:              now,
	})
	if err == nil {
		err = h.appointments.Create(ctx, appt)
	}
	if err != nil {
		if rerr := releaseHold(ctx, h.registry, token); rerr != nil {
			h.log.Error("failed to release hold after failed request",
				logger.ReservationToken(token.String()),
				logger.Err(rerr),
			)
		}
		return nil, fmt.Errorf("request_appointment: save request: %w", err)
	}

	publish(h.publisher, h.log, appointmentEvent(shared.EventAppointmentRequested, appt, cmd.ActorID, "", cmd.CorrelationID))

	h.log.Info("appointment requested",
		logger.AppointmentID(appt.ID),
		logger.EventID(appt.EventID),
		logger.SlotID(appt.TimeSlotID),
	)
	return appt, nil
}

// resolvePlace loads the slot, the optional location and the ids of the
// event's other slots overlapping it. Unknown or inactive entries are
// validation errors; there are no defaults.
func (h *RequestAppointmentHandler) resolvePlace(ctx context.Context, cmd RequestAppointmentCommand) (scheduling.TimeSlot, *scheduling.MeetingLocation, []string, error) {
	const op = "Request"

	slots, err := h.directory.GetEventActiveSlots(ctx, cmd.EventID)
	if err != nil {
		return scheduling.TimeSlot{}, nil, nil, fmt.Errorf("load time slots: %w", err)
	}
	if len(slots) == 0 {
		return scheduling.TimeSlot{}, nil, nil, shared.Validation("scheduling", op, "event %s has no active time slots", cmd.EventID)
	}
	slot, ok := scheduling.FindSlot(slots, cmd.TimeSlotID)
	if !ok {
		return scheduling.TimeSlot{}, nil, nil, shared.Validation("scheduling", op, "time slot %s is not an active slot of event %s", cmd.TimeSlotID, cmd.EventID)
	}
	overlapping := scheduling.OverlappingSlotIDs(slot, slots)

	if cmd.LocationID == "" {
		return slot, nil, overlapping, nil
	}

	locations, err := h.directory.GetEventLocations(ctx, cmd.EventID)
	if err != nil {
		return scheduling.TimeSlot{}, nil, nil, fmt.Errorf("load locations: %w", err)
	}
	location, ok := scheduling.FindActiveLocation(locations, cmd.LocationID)
	if !ok {
		return scheduling.TimeSlot{}, nil, nil, shared.Validation("scheduling", op, "location %s is not an active location of event %s", cmd.LocationID, cmd.EventID)
	}
	return slot, location, overlapping, nil
}

// checkOverlaps rejects a slot that overlaps another live commitment of participant.
func (h *RequestAppointmentHandler) checkOverlaps(ctx context.Context, eventID, participantID string, slot scheduling.TimeSlot) error {
	live, err := h.appointments.ListByParticipant(ctx, scheduling.AppointmentFilter{
		EventID:       eventID,
		ParticipantID: participantID,
		Statuses:      scheduling.LiveStatuses(),
	})
	if err != nil {
		return fmt.Errorf("request_appointment: load commitments: %w", err)
	}

	if ids := scheduling.OverlappingCommitments(slot, live); len(ids) > 0 {
		return shared.ErrParticipantDoubleBooked.WithMessage(
			"participant %s already has appointment %s overlapping time slot %s", participantID, ids[0], slot.ID)
	}
	return nil
}

// appointmentEvent builds a domain event from the current state of a request.
func appointmentEvent(t shared.EventType, a *scheduling.AppointmentRequest, actorID, reason, correlationID string) shared.AppointmentEvent {
	event := shared.NewAppointmentEvent(t, shared.AppointmentEventParams{
		AppointmentID: a.ID,
		EventID:       a.EventID,
		RequesterID:   a.RequesterID,
		RecipientID:   a.RecipientID,
		TimeSlotID:    a.TimeSlotID,
		LocationID:    a.LocationID,
		Status:        string(a.Status),
		ActorID:       actorID,
		Reason:        reason,
	})
	if correlationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(correlationID)
	}
	return event
}
