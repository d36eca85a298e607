package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
)

// Directory is a static scheduling.Directory fixture.
type Directory struct {
	mu            sync.RWMutex
	registrations map[string]scheduling.Registration // key: event|participant
	slots         map[string][]scheduling.TimeSlot
	locations     map[string][]scheduling.MeetingLocation
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		registrations: make(map[string]scheduling.Registration),
		slots:         make(map[string][]scheduling.TimeSlot),
		locations:     make(map[string][]scheduling.MeetingLocation),
	}
}

// AddRegistration registers a participant for an event.
func (d *Directory) AddRegistration(eventID, participantID string, reg scheduling.Registration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if reg.ID == "" {
		reg.ID = participantID
	}
	reg.EventID = eventID
	d.registrations[profileKey(eventID, participantID)] = reg
}

// PutSlot adds or replaces a time slot.
func (d *Directory) PutSlot(slot scheduling.TimeSlot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.slots[slot.EventID]
	for i := range list {
		if list[i].ID == slot.ID {
			list[i] = slot
			return
		}
	}
	list = append(list, slot)
	sort.Slice(list, func(i, j int) bool {
		if !list[i].StartsAt.Equal(list[j].StartsAt) {
			return list[i].StartsAt.Before(list[j].StartsAt)
		}
		return list[i].ID < list[j].ID
	})
	d.slots[slot.EventID] = list
}

// PutLocation adds or replaces a meeting location.
func (d *Directory) PutLocation(loc scheduling.MeetingLocation) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.locations[loc.EventID]
	for i := range list {
		if list[i].ID == loc.ID {
			list[i] = loc
			return
		}
	}
	d.locations[loc.EventID] = append(list, loc)
}

// GetRegistration implements scheduling.Directory.
func (d *Directory) GetRegistration(ctx context.Context, eventID, participantID string) (*scheduling.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	reg, ok := d.registrations[profileKey(eventID, participantID)]
	if !ok {
		return nil, shared.ErrRegistrationNotFound
	}
	return &reg, nil
}

// GetEventActiveSlots implements scheduling.Directory.
func (d *Directory) GetEventActiveSlots(ctx context.Context, eventID string) ([]scheduling.TimeSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]scheduling.TimeSlot, 0, len(d.slots[eventID]))
	for _, s := range d.slots[eventID] {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

// GetEventLocations implements scheduling.Directory.
func (d *Directory) GetEventLocations(ctx context.Context, eventID string) ([]scheduling.MeetingLocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	return append([]scheduling.MeetingLocation{}, d.locations[eventID]...), nil
}
