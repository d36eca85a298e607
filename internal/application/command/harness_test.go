package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/event-networking/pkg/logger"
)

const testEvent = "evt-1"

var dayStart = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

// mockPublisher records published domain events.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(event shared.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

func (m *mockPublisher) published(eventType shared.EventType) []shared.Event {
	var out []shared.Event
	for _, c := range m.Calls {
		if e, ok := c.Arguments.Get(0).(shared.Event); ok && e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func ofType(t shared.EventType) interface{} {
	return mock.MatchedBy(func(e shared.Event) bool { return e.EventType() == t })
}

// harness wires the command handlers over the in-memory stores.
type harness struct {
	clock        *shared.ManualClock
	directory    *memory.Directory
	profiles     *memory.ProfileRepository
	appointments *memory.AppointmentRepository
	registry     *memory.SlotRegistry
	publisher    *mockPublisher

	upsert  *UpsertProfileHandler
	request *RequestAppointmentHandler
	respond *RespondAppointmentHandler
	cancel  *CancelAppointmentHandler
	sweep   *CompleteAppointmentsHandler
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:        shared.NewManualClock(dayStart.Add(8 * time.Hour)),
		directory:    memory.NewDirectory(),
		profiles:     memory.NewProfileRepository(),
		appointments: memory.NewAppointmentRepository(),
		publisher:    &mockPublisher{},
	}
	h.registry = memory.NewSlotRegistry(h.clock)
	h.publisher.On("Publish", mock.Anything).Return(nil)

	for _, p := range []string{"x", "y", "r1", "r2", "r3"} {
		h.directory.AddRegistration(testEvent, p, scheduling.Registration{FirstName: p})
	}

	// slot-a 09:00-09:30, slot-b 09:30-10:00, slot-c 09:15-09:45 (overlaps both).
	h.addSlot(t, "slot-a", 9*time.Hour, 30*time.Minute, nil)
	h.addSlot(t, "slot-b", 9*time.Hour+30*time.Minute, 30*time.Minute, nil)
	h.addSlot(t, "slot-c", 9*time.Hour+15*time.Minute, 30*time.Minute, nil)

	log := logger.Nop()
	h.upsert = NewUpsertProfileHandler(h.profiles, h.directory, h.publisher, h.clock, log)
	h.request = NewRequestAppointmentHandler(h.appointments, h.registry, h.directory, h.publisher, h.clock, log)
	h.respond = NewRespondAppointmentHandler(h.appointments, h.registry, h.directory, h.publisher, h.clock, log)
	h.cancel = NewCancelAppointmentHandler(h.appointments, h.registry, h.publisher, h.clock, log)
	h.sweep = NewCompleteAppointmentsHandler(h.appointments, h.registry, h.publisher, h.clock, log)
	return h
}

// rewire rebuilds the scheduling handlers over wrapped stores.
func (h *harness) rewire(appointments scheduling.AppointmentRepository, registry scheduling.SlotRegistry) {
	log := logger.Nop()
	h.request = NewRequestAppointmentHandler(appointments, registry, h.directory, h.publisher, h.clock, log)
	h.respond = NewRespondAppointmentHandler(appointments, registry, h.directory, h.publisher, h.clock, log)
	h.cancel = NewCancelAppointmentHandler(appointments, registry, h.publisher, h.clock, log)
	h.sweep = NewCompleteAppointmentsHandler(appointments, registry, h.publisher, h.clock, log)
}

func (h *harness) addSlot(t *testing.T, id string, offset, length time.Duration, capacity *int) {
	t.Helper()
	slot, err := scheduling.NewTimeSlot(scheduling.TimeSlotParams{
		ID:       id,
		EventID:  testEvent,
		StartsAt: dayStart.Add(offset),
		EndsAt:   dayStart.Add(offset + length),
		Capacity: capacity,
		IsActive: true,
		Location: time.UTC,
	})
	require.NoError(t, err)
	h.directory.PutSlot(*slot)
}

func (h *harness) addLocation(id string, capacity *int) {
	h.directory.PutLocation(scheduling.MeetingLocation{
		ID:       id,
		EventID:  testEvent,
		Name:     id,
		Type:     scheduling.LocationConferenceRoom,
		Capacity: capacity,
		IsActive: true,
	})
}

func (h *harness) requestAt(requester, recipient, slot, location string) (*scheduling.AppointmentRequest, error) {
	return h.request.Handle(context.Background(), RequestAppointmentCommand{
		ActorID:     requester,
		EventID:     testEvent,
		RecipientID: recipient,
		TimeSlotID:  slot,
		LocationID:  location,
		Message:     "coffee?",
	})
}

func (h *harness) mustRequest(t *testing.T, requester, recipient, slot, location string) *scheduling.AppointmentRequest {
	t.Helper()
	appt, err := h.requestAt(requester, recipient, slot, location)
	require.NoError(t, err)
	return appt
}

func (h *harness) answer(actor, appointmentID string, d Decision) (*scheduling.AppointmentRequest, error) {
	return h.respond.Handle(context.Background(), RespondAppointmentCommand{
		ActorID:       actor,
		AppointmentID: appointmentID,
		Decision:      d,
	})
}

func (h *harness) occupancy(t *testing.T, slot, location string) int {
	t.Helper()
	n, err := h.registry.CurrentOccupancy(context.Background(), slot, location)
	require.NoError(t, err)
	return n
}

func (h *harness) stored(t *testing.T, id string) *scheduling.AppointmentRequest {
	t.Helper()
	a, err := h.appointments.GetByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

func intPtr(v int) *int { return &v }
