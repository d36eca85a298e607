package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/event-networking/internal/domain/shared"
)

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func slotAt(t *testing.T, id string, startHour, startMin, minutes int) TimeSlot {
	t.Helper()
	start := time.Date(2024, 5, 1, startHour, startMin, 0, 0, time.UTC)
	s, err := NewTimeSlot(TimeSlotParams{
		ID:       id,
		EventID:  "event-1",
		StartsAt: start,
		EndsAt:   start.Add(time.Duration(minutes) * time.Minute),
		IsActive: true,
	})
	require.NoError(t, err)
	return *s
}

func newPending(t *testing.T) *AppointmentRequest {
	t.Helper()
	a, err := NewAppointmentRequest(NewAppointmentParams{
		ID:               "appt-1",
		EventID:          "event-1",
		RequesterID:      "alice",
		RecipientID:      "bob",
		Slot:             slotAt(t, "slot-1", 10, 0, 30),
		Message:          "coffee?",
		ReservationToken: "tok-1",
		Now:              base,
	})
	require.NoError(t, err)
	return a
}

func TestNewAppointmentRequest_Validation(t *testing.T) {
	slot := slotAt(t, "slot-1", 10, 0, 30)

	tests := []struct {
		name   string
		params NewAppointmentParams
	}{
		{
			name:   "self request",
			params: NewAppointmentParams{ID: "a", EventID: "event-1", RequesterID: "alice", RecipientID: "alice", Slot: slot, Now: base},
		},
		{
			name:   "empty recipient",
			params: NewAppointmentParams{ID: "a", EventID: "event-1", RequesterID: "alice", Slot: slot, Now: base},
		},
		{
			name:   "slot of another event",
			params: NewAppointmentParams{ID: "a", EventID: "event-2", RequesterID: "alice", RecipientID: "bob", Slot: slot, Now: base},
		},
		{
			name: "message too long",
			params: NewAppointmentParams{
				ID: "a", EventID: "event-1", RequesterID: "alice", RecipientID: "bob", Slot: slot, Now: base,
				Message: string(make([]rune, MaxMessageLength+1)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAppointmentRequest(tt.params)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestNewAppointmentRequest_SnapshotsSlot(t *testing.T) {
	a := newPending(t)

	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, "slot-1", a.TimeSlotID)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), a.SlotStartsAt)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), a.SlotEndsAt)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), a.SlotDay)
	assert.Nil(t, a.DecidedAt)

	snap := a.SlotSnapshot()
	assert.Equal(t, a.SlotStartsAt, snap.StartsAt)
	assert.Equal(t, a.SlotEndsAt, snap.EndsAt)
}

func TestAppointment_Accept(t *testing.T) {
	t.Run("recipient accepts pending", func(t *testing.T) {
		a := newPending(t)
		require.NoError(t, a.Accept("bob", base.Add(time.Minute)))
		assert.Equal(t, StatusAccepted, a.Status)
		require.NotNil(t, a.DecidedAt)
		assert.Equal(t, base.Add(time.Minute), *a.DecidedAt)
	})

	t.Run("requester cannot accept", func(t *testing.T) {
		a := newPending(t)
		err := a.Accept("alice", base)
		assert.True(t, shared.IsForbidden(err))
		assert.Equal(t, StatusPending, a.Status)
	})

	t.Run("double accept is invalid transition", func(t *testing.T) {
		a := newPending(t)
		require.NoError(t, a.Accept("bob", base))
		err := a.Accept("bob", base)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		assert.Equal(t, StatusAccepted, a.Status)
	})
}

func TestAppointment_Decline(t *testing.T) {
	a := newPending(t)
	assert.True(t, shared.IsForbidden(a.Decline("carol", base)))

	require.NoError(t, a.Decline("bob", base))
	assert.Equal(t, StatusDeclined, a.Status)

	err := a.Decline("bob", base)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestAppointment_Cancel(t *testing.T) {
	t.Run("either party before start", func(t *testing.T) {
		for _, actor := range []string{"alice", "bob"} {
			a := newPending(t)
			require.NoError(t, a.Cancel(actor, base))
			assert.Equal(t, StatusCancelled, a.Status)
			assert.Equal(t, actor, a.CancelledBy)
		}
	})

	t.Run("accepted can be cancelled", func(t *testing.T) {
		a := newPending(t)
		require.NoError(t, a.Accept("bob", base))
		require.NoError(t, a.Cancel("alice", base))
		assert.Equal(t, StatusCancelled, a.Status)
	})

	t.Run("outsider is forbidden", func(t *testing.T) {
		a := newPending(t)
		assert.True(t, shared.IsForbidden(a.Cancel("mallory", base)))
		assert.Equal(t, StatusPending, a.Status)
	})

	t.Run("not after the slot started", func(t *testing.T) {
		a := newPending(t)
		err := a.Cancel("alice", a.SlotStartsAt)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		assert.Equal(t, StatusPending, a.Status)
	})

	t.Run("terminal cannot be cancelled", func(t *testing.T) {
		a := newPending(t)
		require.NoError(t, a.Decline("bob", base))
		assert.ErrorIs(t, a.Cancel("alice", base), shared.ErrInvalidTransition)
	})
}

func TestAppointment_CompleteAndExpire(t *testing.T) {
	t.Run("complete after end", func(t *testing.T) {
		a := newPending(t)
		require.NoError(t, a.Accept("bob", base))

		assert.ErrorIs(t, a.Complete(a.SlotStartsAt), shared.ErrInvalidTransition)
		require.NoError(t, a.Complete(a.SlotEndsAt))
		assert.Equal(t, StatusCompleted, a.Status)
	})

	t.Run("pending cannot complete", func(t *testing.T) {
		a := newPending(t)
		assert.ErrorIs(t, a.Complete(a.SlotEndsAt), shared.ErrInvalidTransition)
	})

	t.Run("pending expires after end", func(t *testing.T) {
		a := newPending(t)
		assert.Error(t, a.Expire(a.SlotStartsAt))
		require.NoError(t, a.Expire(a.SlotEndsAt))
		assert.Equal(t, StatusCancelled, a.Status)
		assert.Equal(t, ReasonExpired, a.DecisionReason)
		assert.Empty(t, a.CancelledBy)
	})
}

func TestAppointment_DeclineBySystem(t *testing.T) {
	a := newPending(t)
	require.NoError(t, a.DeclineBySystem(ReasonConfirmationFailed+"SlotFull", base))
	assert.Equal(t, StatusDeclined, a.Status)
	assert.Contains(t, a.DecisionReason, "SlotFull")
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusPending.IsLive())
	assert.True(t, StatusAccepted.IsLive())
	for _, s := range []Status{StatusDeclined, StatusCancelled, StatusCompleted} {
		assert.True(t, s.IsFinal(), s)
		assert.False(t, s.IsLive(), s)
	}
	assert.False(t, Status("UNKNOWN").IsValid())
}
