package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CANCEL APPOINTMENT COMMAND
// Either party withdraws a pending or accepted appointment before the slot
// starts. The hold is released; a failed release is left to the sweep.
// ══════════════════════════════════════════════════════════════════════════════

// CancelAppointmentCommand contains the data to cancel an appointment.
type CancelAppointmentCommand struct {
	ActorID       string
	AppointmentID string
	CorrelationID string
}

// Validate validates the command.
func (c CancelAppointmentCommand) Validate() error {
	if c.ActorID == "" {
		return shared.ErrUnauthorized
	}
	if c.AppointmentID == "" {
		return shared.Validation("scheduling", "Cancel", "appointment id is required")
	}
	return nil
}

// CancelAppointmentHandler handles the CancelAppointmentCommand.
type CancelAppointmentHandler struct {
	appointments scheduling.AppointmentRepository
	registry     scheduling.SlotRegistry
	publisher    shared.EventPublisher
	clock        shared.Clock
	log          *logger.Logger
}

// NewCancelAppointmentHandler creates a new CancelAppointmentHandler.
func NewCancelAppointmentHandler(
	appointments scheduling.AppointmentRepository,
	registry scheduling.SlotRegistry,
	publisher shared.EventPublisher,
	clock shared.Clock,
	log *logger.Logger,
) *CancelAppointmentHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &CancelAppointmentHandler{
		appointments: appointments,
		registry:     registry,
		publisher:    publisher,
		clock:        clock,
		log:          log.With(logger.Component("cancel_appointment")),
	}
}

// Handle cancels the appointment.
func (h *CancelAppointmentHandler) Handle(ctx context.Context, cmd CancelAppointmentCommand) (*scheduling.AppointmentRequest, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	appt, err := h.appointments.GetByID(ctx, cmd.AppointmentID)
	if err != nil {
		return nil, err
	}

	previous := appt.Status
	cancelled := *appt
	if err := cancelled.Cancel(cmd.ActorID, h.clock.Now()); err != nil {
		return nil, err
	}

	if err := h.appointments.Update(ctx, &cancelled, previous); err != nil {
		return nil, fmt.Errorf("cancel_appointment: %w", err)
	}
	if err := releaseHold(ctx, h.registry, scheduling.ReservationToken(appt.ReservationToken)); err != nil {
		// The cancellation is stored; the sweep releases the hold later.
		h.log.Error("failed to release hold of cancelled appointment",
			logger.AppointmentID(cancelled.ID),
			logger.ReservationToken(appt.ReservationToken),
			logger.Err(err),
		)
	}

	publish(h.publisher, h.log, appointmentEvent(shared.EventAppointmentCancelled, &cancelled, cmd.ActorID, "", cmd.CorrelationID))
	h.log.Info("appointment cancelled",
		logger.AppointmentID(cancelled.ID),
		logger.ParticipantID(cmd.ActorID),
	)
	return &cancelled, nil
}
