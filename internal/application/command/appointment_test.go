package command

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
)

func TestRequestAppointment_SlotCapacityScenario(t *testing.T) {
	h := newHarness(t)

	first := h.mustRequest(t, "x", "r1", "slot-a", "")
	assert.Equal(t, scheduling.StatusPending, first.Status)
	assert.Equal(t, 1, h.occupancy(t, "slot-a", ""))

	_, err := h.requestAt("y", "r2", "slot-a", "")
	require.ErrorIs(t, err, shared.ErrSlotFull)
	assert.Equal(t, shared.CodeSlotFull, shared.Code(err))

	accepted, err := h.answer("r1", first.ID, DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusAccepted, accepted.Status)

	second := h.mustRequest(t, "y", "r2", "slot-b", "")
	assert.Equal(t, scheduling.StatusPending, second.Status)

	h.publisher.AssertCalled(t, "Publish", ofType(shared.EventAppointmentRequested))
	h.publisher.AssertCalled(t, "Publish", ofType(shared.EventAppointmentAccepted))
	assert.Len(t, h.publisher.published(shared.EventAppointmentRequested), 2)
}

func TestRequestAppointment_DoubleBooking(t *testing.T) {
	h := newHarness(t)
	h.addLocation("room-1", nil)
	h.addLocation("room-2", nil)

	h.mustRequest(t, "x", "r1", "slot-a", "room-1")

	t.Run("same slot other location", func(t *testing.T) {
		_, err := h.requestAt("x", "r2", "slot-a", "room-2")
		require.ErrorIs(t, err, shared.ErrParticipantDoubleBooked)
	})

	t.Run("recipient already busy", func(t *testing.T) {
		_, err := h.requestAt("y", "r1", "slot-a", "room-2")
		require.ErrorIs(t, err, shared.ErrParticipantDoubleBooked)
	})

	t.Run("overlapping slot", func(t *testing.T) {
		_, err := h.requestAt("x", "r2", "slot-c", "")
		require.ErrorIs(t, err, shared.ErrParticipantDoubleBooked)
		assert.Equal(t, 0, h.occupancy(t, "slot-c", ""))
	})

	t.Run("adjacent slot is free", func(t *testing.T) {
		_, err := h.requestAt("x", "r2", "slot-b", "")
		require.NoError(t, err)
	})
}

func TestRequestAppointment_Validation(t *testing.T) {
	h := newHarness(t)
	h.directory.PutLocation(scheduling.MeetingLocation{
		ID: "closed", EventID: testEvent, Type: scheduling.LocationCafe, IsActive: false,
	})

	tests := []struct {
		name      string
		requester string
		recipient string
		slot      string
		location  string
	}{
		{name: "self request", requester: "x", recipient: "x", slot: "slot-a"},
		{name: "unknown slot", requester: "x", recipient: "r1", slot: "slot-z"},
		{name: "inactive location", requester: "x", recipient: "r1", slot: "slot-a", location: "closed"},
		{name: "unknown location", requester: "x", recipient: "r1", slot: "slot-a", location: "nowhere"},
		{name: "unregistered recipient", requester: "x", recipient: "ghost", slot: "slot-a"},
		{name: "unregistered requester", requester: "ghost", recipient: "r1", slot: "slot-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.requestAt(tt.requester, tt.recipient, tt.slot, tt.location)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err), "got %v", err)
		})
	}

	assert.Equal(t, 0, h.occupancy(t, "slot-a", ""))
}

func TestRequestAppointment_SlotAlreadyStarted(t *testing.T) {
	h := newHarness(t)
	h.clock.Set(dayStart.Add(9*time.Hour + 5*time.Minute))

	_, err := h.requestAt("x", "r1", "slot-a", "")
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestRequestAppointment_VirtualLocationIsUnlimited(t *testing.T) {
	h := newHarness(t)
	h.directory.PutLocation(scheduling.MeetingLocation{
		ID: "zoom", EventID: testEvent, Type: scheduling.LocationVirtual, Capacity: intPtr(1), IsActive: true,
	})

	h.mustRequest(t, "x", "r1", "slot-a", "zoom")
	h.mustRequest(t, "y", "r2", "slot-a", "zoom")
	assert.Equal(t, 2, h.occupancy(t, "slot-a", "zoom"))
}

func TestRespondAppointment_DeclineReleasesHold(t *testing.T) {
	h := newHarness(t)
	appt := h.mustRequest(t, "x", "r1", "slot-a", "")
	require.Equal(t, 1, h.occupancy(t, "slot-a", ""))

	declined, err := h.answer("r1", appt.ID, DecisionDecline)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusDeclined, declined.Status)
	assert.NotNil(t, declined.DecidedAt)
	assert.Equal(t, 0, h.occupancy(t, "slot-a", ""))
	assert.Equal(t, scheduling.StatusDeclined, h.stored(t, appt.ID).Status)

	// The slot is free again.
	h.mustRequest(t, "y", "r2", "slot-a", "")
}

func TestRespondAppointment_DoubleAccept(t *testing.T) {
	h := newHarness(t)
	appt := h.mustRequest(t, "x", "r1", "slot-a", "")

	_, err := h.answer("r1", appt.ID, DecisionAccept)
	require.NoError(t, err)

	_, err = h.answer("r1", appt.ID, DecisionAccept)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	assert.Equal(t, scheduling.StatusAccepted, h.stored(t, appt.ID).Status)
	assert.Equal(t, 1, h.occupancy(t, "slot-a", ""))
	assert.Len(t, h.publisher.published(shared.EventAppointmentAccepted), 1)
}

func TestRespondAppointment_OnlyRecipientDecides(t *testing.T) {
	h := newHarness(t)
	appt := h.mustRequest(t, "x", "r1", "slot-a", "")

	for _, actor := range []string{"x", "y"} {
		for _, d := range []Decision{DecisionAccept, DecisionDecline} {
			_, err := h.answer(actor, appt.ID, d)
			require.Error(t, err)
			assert.True(t, shared.IsForbidden(err), "%s %s: %v", actor, d, err)
		}
	}
	assert.Equal(t, scheduling.StatusPending, h.stored(t, appt.ID).Status)
	assert.Equal(t, 1, h.occupancy(t, "slot-a", ""))
}

func TestRespondAppointment_UnknownAppointment(t *testing.T) {
	h := newHarness(t)

	_, err := h.answer("r1", "missing", DecisionAccept)
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestRespondAppointment_LoweredCapacityDeclinesBySystem(t *testing.T) {
	h := newHarness(t)
	h.addLocation("room-1", intPtr(2))

	first := h.mustRequest(t, "x", "r1", "slot-a", "room-1")
	second := h.mustRequest(t, "y", "r2", "slot-a", "room-1")

	// The organizer shrinks the room after both requests were placed.
	h.addLocation("room-1", intPtr(1))

	_, err := h.answer("r1", first.ID, DecisionAccept)
	require.NoError(t, err)

	declined, err := h.answer("r2", second.ID, DecisionAccept)
	require.ErrorIs(t, err, shared.ErrSlotFull)
	require.NotNil(t, declined)
	assert.Equal(t, scheduling.StatusDeclined, declined.Status)
	assert.True(t, strings.HasPrefix(declined.DecisionReason, scheduling.ReasonConfirmationFailed))
	assert.Contains(t, declined.DecisionReason, shared.CodeSlotFull)

	assert.Equal(t, scheduling.StatusDeclined, h.stored(t, second.ID).Status)
	assert.Equal(t, 1, h.occupancy(t, "slot-a", "room-1"))
	h.publisher.AssertCalled(t, "Publish", ofType(shared.EventAppointmentDeclined))
}

func TestCancelAppointment(t *testing.T) {
	t.Run("either party before start", func(t *testing.T) {
		h := newHarness(t)
		pending := h.mustRequest(t, "x", "r1", "slot-a", "")
		accepted := h.mustRequest(t, "y", "r2", "slot-b", "")
		_, err := h.answer("r2", accepted.ID, DecisionAccept)
		require.NoError(t, err)

		cancelled, err := h.cancel.Handle(context.Background(), CancelAppointmentCommand{ActorID: "x", AppointmentID: pending.ID})
		require.NoError(t, err)
		assert.Equal(t, scheduling.StatusCancelled, cancelled.Status)
		assert.Equal(t, "x", cancelled.CancelledBy)

		cancelled, err = h.cancel.Handle(context.Background(), CancelAppointmentCommand{ActorID: "r2", AppointmentID: accepted.ID})
		require.NoError(t, err)
		assert.Equal(t, scheduling.StatusCancelled, cancelled.Status)

		assert.Equal(t, 0, h.occupancy(t, "slot-a", ""))
		assert.Equal(t, 0, h.occupancy(t, "slot-b", ""))
		assert.Len(t, h.publisher.published(shared.EventAppointmentCancelled), 2)
	})

	t.Run("outsider is forbidden", func(t *testing.T) {
		h := newHarness(t)
		appt := h.mustRequest(t, "x", "r1", "slot-a", "")

		_, err := h.cancel.Handle(context.Background(), CancelAppointmentCommand{ActorID: "y", AppointmentID: appt.ID})
		require.Error(t, err)
		assert.True(t, shared.IsForbidden(err))
	})

	t.Run("after start", func(t *testing.T) {
		h := newHarness(t)
		appt := h.mustRequest(t, "x", "r1", "slot-a", "")
		h.clock.Set(dayStart.Add(9 * time.Hour))

		_, err := h.cancel.Handle(context.Background(), CancelAppointmentCommand{ActorID: "x", AppointmentID: appt.ID})
		require.ErrorIs(t, err, shared.ErrInvalidTransition)
		assert.Equal(t, scheduling.StatusPending, h.stored(t, appt.ID).Status)
		assert.Equal(t, 1, h.occupancy(t, "slot-a", ""))
	})

	t.Run("twice", func(t *testing.T) {
		h := newHarness(t)
		appt := h.mustRequest(t, "x", "r1", "slot-a", "")

		_, err := h.cancel.Handle(context.Background(), CancelAppointmentCommand{ActorID: "x", AppointmentID: appt.ID})
		require.NoError(t, err)
		_, err = h.cancel.Handle(context.Background(), CancelAppointmentCommand{ActorID: "r1", AppointmentID: appt.ID})
		require.ErrorIs(t, err, shared.ErrInvalidTransition)
	})
}

func TestCompleteAppointments_Sweep(t *testing.T) {
	h := newHarness(t)
	h.addSlot(t, "slot-d", 10*time.Hour, 30*time.Minute, nil)

	accepted := h.mustRequest(t, "x", "r1", "slot-a", "")
	_, err := h.answer("r1", accepted.ID, DecisionAccept)
	require.NoError(t, err)
	pending := h.mustRequest(t, "y", "r2", "slot-b", "")
	future := h.mustRequest(t, "r3", "x", "slot-d", "")

	// Only slot-a has ended.
	h.clock.Set(dayStart.Add(9*time.Hour + 45*time.Minute))
	res, err := h.sweep.Handle(context.Background(), CompleteAppointmentsCommand{ExpirePending: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 0, res.Expired)

	// Both slots have ended.
	h.clock.Set(dayStart.Add(11 * time.Hour))
	res, err = h.sweep.Handle(context.Background(), CompleteAppointmentsCommand{ExpirePending: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Completed)
	assert.Equal(t, 2, res.Expired)
	assert.Equal(t, 0, res.Failed)

	assert.Equal(t, scheduling.StatusCompleted, h.stored(t, accepted.ID).Status)
	expired := h.stored(t, pending.ID)
	assert.Equal(t, scheduling.StatusCancelled, expired.Status)
	assert.Equal(t, scheduling.ReasonExpired, expired.DecisionReason)
	assert.Equal(t, scheduling.StatusCancelled, h.stored(t, future.ID).Status)
	assert.Equal(t, 0, h.occupancy(t, "slot-b", ""))

	// Idempotent.
	res, err = h.sweep.Handle(context.Background(), CompleteAppointmentsCommand{ExpirePending: true})
	require.NoError(t, err)
	assert.Equal(t, &CompleteAppointmentsResult{}, res)

	h.publisher.AssertCalled(t, "Publish", ofType(shared.EventAppointmentCompleted))
}

func TestCompleteAppointments_KeepsPendingWithoutExpiry(t *testing.T) {
	h := newHarness(t)
	pending := h.mustRequest(t, "x", "r1", "slot-a", "")

	h.clock.Set(dayStart.Add(12 * time.Hour))
	res, err := h.sweep.Handle(context.Background(), CompleteAppointmentsCommand{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Expired)
	assert.Equal(t, scheduling.StatusPending, h.stored(t, pending.ID).Status)
}
