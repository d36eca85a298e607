package command

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/pkg/logger"
	"github.com/alem-hub/event-networking/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE APPOINTMENTS COMMAND
// Periodic sweep: accepted appointments whose slot has ended become
// COMPLETED; optionally, undecided requests whose slot has ended are
// cancelled by the system. Live holds whose request was declined, cancelled
// or never stored are released. Per-item failures are logged and skipped.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultSweepBatchSize bounds how many requests one sweep loads per status.
const DefaultSweepBatchSize = 500

// OrphanHoldGrace is the minimum age of a hold without a stored request
// before the sweep releases it. Reserve runs before the request is saved.
const OrphanHoldGrace = time.Minute

// CompleteAppointmentsCommand configures one sweep.
type CompleteAppointmentsCommand struct {
	// ExpirePending also cancels PENDING requests whose slot has ended.
	ExpirePending bool

	// BatchSize is the maximum number of requests per status (default 500).
	BatchSize int
}

// CompleteAppointmentsResult reports what the sweep did.
type CompleteAppointmentsResult struct {
	Completed int
	Expired   int
	Released  int
	Failed    int
}

// CompleteAppointmentsHandler handles the CompleteAppointmentsCommand.
type CompleteAppointmentsHandler struct {
	appointments scheduling.AppointmentRepository
	registry     scheduling.SlotRegistry
	publisher    shared.EventPublisher
	clock        shared.Clock
	log          *logger.Logger
}

// NewCompleteAppointmentsHandler creates a new CompleteAppointmentsHandler.
func NewCompleteAppointmentsHandler(
	appointments scheduling.AppointmentRepository,
	registry scheduling.SlotRegistry,
	publisher shared.EventPublisher,
	clock shared.Clock,
	log *logger.Logger,
) *CompleteAppointmentsHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &CompleteAppointmentsHandler{
		appointments: appointments,
		registry:     registry,
		publisher:    publisher,
		clock:        clock,
		log:          log.With(logger.Component("complete_appointments")),
	}
}

// Handle runs the sweep. It is idempotent: a second run over the same
// data finds nothing to do.
func (h *CompleteAppointmentsHandler) Handle(ctx context.Context, cmd CompleteAppointmentsCommand) (*CompleteAppointmentsResult, error) {
	if cmd.BatchSize <= 0 {
		cmd.BatchSize = DefaultSweepBatchSize
	}

	now := h.clock.Now()
	result := &CompleteAppointmentsResult{}

	accepted, err := h.appointments.ListDue(ctx, []scheduling.Status{scheduling.StatusAccepted}, now, cmd.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("complete_appointments: list accepted: %w", err)
	}

	for _, a := range accepted {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		completed := *a
		if err := completed.Complete(now); err != nil {
			h.fail(result, a, now, err)
			continue
		}
		if err := h.appointments.Update(ctx, &completed, scheduling.StatusAccepted); err != nil {
			h.fail(result, a, now, err)
			continue
		}

		result.Completed++
		publish(h.publisher, h.log, appointmentEvent(shared.EventAppointmentCompleted, &completed, "", "", ""))
	}

	if cmd.ExpirePending {
		if err := h.expirePending(ctx, now, cmd.BatchSize, result); err != nil {
			return result, err
		}
	}

	if err := h.reconcileHolds(ctx, now, cmd.BatchSize, result); err != nil {
		return result, err
	}

	if result.Completed+result.Expired+result.Released+result.Failed > 0 {
		h.log.Info("sweep finished",
			logger.Int("completed", result.Completed),
			logger.Int("expired", result.Expired),
			logger.Int("released", result.Released),
			logger.Int("failed", result.Failed),
		)
	}
	return result, nil
}

func (h *CompleteAppointmentsHandler) expirePending(ctx context.Context, now time.Time, batch int, result *CompleteAppointmentsResult) error {
	pending, err := h.appointments.ListDue(ctx, []scheduling.Status{scheduling.StatusPending}, now, batch)
	if err != nil {
		return fmt.Errorf("complete_appointments: list pending: %w", err)
	}

	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		expired := *a
		if err := expired.Expire(now); err != nil {
			h.fail(result, a, now, err)
			continue
		}
		if err := h.appointments.Update(ctx, &expired, scheduling.StatusPending); err != nil {
			h.fail(result, a, now, err)
			continue
		}
		if err := releaseHold(ctx, h.registry, scheduling.ReservationToken(a.ReservationToken)); err != nil {
			h.log.Warn("failed to release hold of expired request",
				logger.AppointmentID(a.ID),
				logger.Err(err),
			)
		}

		result.Expired++
		publish(h.publisher, h.log, appointmentEvent(shared.EventAppointmentCancelled, &expired, "", expired.DecisionReason, ""))
	}
	return nil
}

// reconcileHolds walks every live hold older than OrphanHoldGrace and
// releases those whose request is DECLINED or CANCELLED, or missing.
func (h *CompleteAppointmentsHandler) reconcileHolds(ctx context.Context, now time.Time, batch int, result *CompleteAppointmentsResult) error {
	params := scheduling.ListLiveParams{CreatedBefore: now.Add(-OrphanHoldGrace), Limit: batch}

	for {
		holds, err := h.registry.ListLive(ctx, params)
		if err != nil {
			return fmt.Errorf("complete_appointments: list live holds: %w", err)
		}
		if len(holds) == 0 {
			return nil
		}

		tokens := make([]string, 0, len(holds))
		for _, res := range holds {
			tokens = append(tokens, res.Token.String())
		}
		owners, err := h.appointments.ListByReservationTokens(ctx, tokens)
		if err != nil {
			return fmt.Errorf("complete_appointments: load hold owners: %w", err)
		}
		byToken := make(map[string]*scheduling.AppointmentRequest, len(owners))
		for _, a := range owners {
			byToken[a.ReservationToken] = a
		}

		for _, res := range holds {
			if err := ctx.Err(); err != nil {
				return err
			}

			owner, ok := byToken[res.Token.String()]
			if ok && owner.Status != scheduling.StatusDeclined && owner.Status != scheduling.StatusCancelled {
				continue
			}
			if err := h.registry.Release(ctx, res.Token); err != nil {
				result.Failed++
				h.log.Error("failed to release stranded hold",
					logger.ReservationToken(res.Token.String()),
					logger.SlotID(res.TimeSlotID),
					logger.Err(err),
				)
				continue
			}

			result.Released++
			h.log.Warn("released stranded hold",
				logger.ReservationToken(res.Token.String()),
				logger.SlotID(res.TimeSlotID),
				logger.Bool("request_stored", ok),
			)
		}

		if len(holds) < batch {
			return nil
		}
		params.After = holds[len(holds)-1].Token
	}
}

func (h *CompleteAppointmentsHandler) fail(result *CompleteAppointmentsResult, a *scheduling.AppointmentRequest, now time.Time, err error) {
	result.Failed++
	h.log.Error("sweep item failed",
		logger.AppointmentID(a.ID),
		logger.String("status", string(a.Status)),
		logger.String("slot_ended", timeutil.FormatRelative(a.SlotEndsAt, now)),
		logger.Err(err),
	)
}
