package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPOND APPOINTMENT COMMAND
// The recipient accepts or declines a pending request.
//
// Accept confirms the soft hold. When the hold cannot be confirmed (the slot
// filled up or the hold was released) the request is declined by the system
// and the caller receives both the declined request and the registry error.
// ══════════════════════════════════════════════════════════════════════════════

// Decision is the recipient's answer.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// RespondAppointmentCommand contains the recipient's decision.
type RespondAppointmentCommand struct {
	ActorID       string
	AppointmentID string
	Decision      Decision
	CorrelationID string
}

// Validate validates the command.
func (c RespondAppointmentCommand) Validate() error {
	if c.ActorID == "" {
		return shared.ErrUnauthorized
	}
	if c.AppointmentID == "" {
		return shared.Validation("scheduling", "Respond", "appointment id is required")
	}
	if c.Decision != DecisionAccept && c.Decision != DecisionDecline {
		return shared.Validation("scheduling", "Respond", "unknown decision %q", c.Decision)
	}
	return nil
}

// RespondAppointmentHandler handles the RespondAppointmentCommand.
type RespondAppointmentHandler struct {
	appointments scheduling.AppointmentRepository
	registry     scheduling.SlotRegistry
	directory    scheduling.Directory
	publisher    shared.EventPublisher
	clock        shared.Clock
	log          *logger.Logger
}

// NewRespondAppointmentHandler creates a new RespondAppointmentHandler.
func NewRespondAppointmentHandler(
	appointments scheduling.AppointmentRepository,
	registry scheduling.SlotRegistry,
	directory scheduling.Directory,
	publisher shared.EventPublisher,
	clock shared.Clock,
	log *logger.Logger,
) *RespondAppointmentHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &RespondAppointmentHandler{
		appointments: appointments,
		registry:     registry,
		directory:    directory,
		publisher:    publisher,
		clock:        clock,
		log:          log.With(logger.Component("respond_appointment")),
	}
}

// Handle executes the decision.
//
// On accept, a non-nil request may come back together with a capacity or
// state error: the request has been declined by the system.
func (h *RespondAppointmentHandler) Handle(ctx context.Context, cmd RespondAppointmentCommand) (*scheduling.AppointmentRequest, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	appt, err := h.appointments.GetByID(ctx, cmd.AppointmentID)
	if err != nil {
		return nil, err
	}

	if cmd.Decision == DecisionDecline {
		return h.decline(ctx, cmd, appt)
	}
	return h.accept(ctx, cmd, appt)
}

func (h *RespondAppointmentHandler) accept(ctx context.Context, cmd RespondAppointmentCommand, appt *scheduling.AppointmentRequest) (*scheduling.AppointmentRequest, error) {
	now := h.clock.Now()

	// Transition a copy: nothing changes until the hold is confirmed.
	accepted := *appt
	if err := accepted.Accept(cmd.ActorID, now); err != nil {
		return nil, err
	}

	token := scheduling.ReservationToken(appt.ReservationToken)
	h.refreshCapacity(ctx, appt)

	confirmErr := h.registry.Confirm(ctx, token)
	if confirmErr == nil {
		if err := h.appointments.Update(ctx, &accepted, scheduling.StatusPending); err != nil {
			// The hold stays confirmed; a retried accept confirms idempotently.
			return nil, fmt.Errorf("accept_appointment: %w", err)
		}
		publish(h.publisher, h.log, appointmentEvent(shared.EventAppointmentAccepted, &accepted, cmd.ActorID, "", cmd.CorrelationID))
		h.log.Info("appointment accepted", logger.AppointmentID(accepted.ID))
		return &accepted, nil
	}

	if !shared.IsCapacity(confirmErr) && !shared.IsState(confirmErr) {
		return nil, fmt.Errorf("accept_appointment: confirm hold: %w", confirmErr)
	}

	declined := *appt
	reason := scheduling.ReasonConfirmationFailed + shared.Code(confirmErr)
	if err := declined.DeclineBySystem(reason, now); err != nil {
		return nil, err
	}
	if err := h.appointments.Update(ctx, &declined, scheduling.StatusPending); err != nil {
		return nil, err
	}
	if err := releaseHold(ctx, h.registry, token); err != nil {
		h.log.Error("failed to release hold of declined appointment",
			logger.AppointmentID(declined.ID),
			logger.ReservationToken(token.String()),
			logger.Err(err),
		)
	}

	publish(h.publisher, h.log, appointmentEvent(shared.EventAppointmentDeclined, &declined, "", reason, cmd.CorrelationID))
	h.log.Warn("appointment declined by system",
		logger.AppointmentID(declined.ID),
		logger.String("reason", reason),
	)
	return &declined, confirmErr
}

func (h *RespondAppointmentHandler) decline(ctx context.Context, cmd RespondAppointmentCommand, appt *scheduling.AppointmentRequest) (*scheduling.AppointmentRequest, error) {
	declined := *appt
	if err := declined.Decline(cmd.ActorID, h.clock.Now()); err != nil {
		return nil, err
	}

	if err := h.appointments.Update(ctx, &declined, scheduling.StatusPending); err != nil {
		return nil, fmt.Errorf("decline_appointment: %w", err)
	}
	if err := releaseHold(ctx, h.registry, scheduling.ReservationToken(appt.ReservationToken)); err != nil {
		// The decision is stored; the sweep releases the hold later.
		h.log.Error("failed to release hold of declined appointment",
			logger.AppointmentID(declined.ID),
			logger.ReservationToken(appt.ReservationToken),
			logger.Err(err),
		)
	}

	publish(h.publisher, h.log, appointmentEvent(shared.EventAppointmentDeclined, &declined, cmd.ActorID, "", cmd.CorrelationID))
	h.log.Info("appointment declined", logger.AppointmentID(declined.ID))
	return &declined, nil
}

// refreshCapacity pushes the organizer's current capacity into the registry
// so that Confirm checks against it. Lookup failures keep the stored value.
func (h *RespondAppointmentHandler) refreshCapacity(ctx context.Context, appt *scheduling.AppointmentRequest) {
	if h.directory == nil {
		return
	}

	slots, err := h.directory.GetEventActiveSlots(ctx, appt.EventID)
	if err != nil {
		h.log.Warn("capacity refresh skipped", logger.AppointmentID(appt.ID), logger.Err(err))
		return
	}
	slot, ok := scheduling.FindSlot(slots, appt.TimeSlotID)
	if !ok {
		return
	}

	var location *scheduling.MeetingLocation
	if appt.LocationID != "" {
		locations, err := h.directory.GetEventLocations(ctx, appt.EventID)
		if err != nil {
			h.log.Warn("capacity refresh skipped", logger.AppointmentID(appt.ID), logger.Err(err))
			return
		}
		if location, ok = scheduling.FindActiveLocation(locations, appt.LocationID); !ok {
			return
		}
	}

	capacity := scheduling.EffectiveCapacity(slot, location)
	if err := h.registry.SetCapacity(ctx, appt.TimeSlotID, appt.LocationID, capacity); err != nil {
		h.log.Warn("capacity refresh failed", logger.AppointmentID(appt.ID), logger.Err(err))
	}
}
