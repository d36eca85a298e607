package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alem-hub/event-networking/internal/infrastructure/external/eventsvc"
	"github.com/alem-hub/event-networking/internal/infrastructure/persistence/memory"
)

// DirectorySeed is the file format of DIRECTORY_SEED_FILE. Entries use the
// event service wire format.
type DirectorySeed struct {
	Registrations []eventsvc.RegistrationDTO `json:"registrations"`
	TimeSlots     []eventsvc.TimeSlotDTO     `json:"timeSlots"`
	Locations     []eventsvc.LocationDTO     `json:"locations"`
}

// LoadDirectorySeed fills dir from a JSON seed file and returns the number of
// registrations loaded. Inactive or malformed slots are skipped by the mapper.
func LoadDirectorySeed(path string, dir *memory.Directory, mapper *eventsvc.Mapper) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed: %w", err)
	}

	var seed DirectorySeed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("decode seed: %w", err)
	}

	for _, dto := range seed.Registrations {
		if dto.EventID == "" || dto.ParticipantID == "" {
			return 0, fmt.Errorf("registration %q: eventId and participantId are required", dto.ID)
		}
		dir.AddRegistration(dto.EventID, dto.ParticipantID, *mapper.ToRegistration(dto))
	}

	for eventID, dtos := range groupByEvent(seed.TimeSlots, func(d eventsvc.TimeSlotDTO) string { return d.EventID }) {
		for _, slot := range mapper.ToTimeSlots(eventID, dtos) {
			dir.PutSlot(slot)
		}
	}
	for eventID, dtos := range groupByEvent(seed.Locations, func(d eventsvc.LocationDTO) string { return d.EventID }) {
		for _, loc := range mapper.ToLocations(eventID, dtos) {
			dir.PutLocation(loc)
		}
	}

	return len(seed.Registrations), nil
}

func groupByEvent[T any](items []T, eventID func(T) string) map[string][]T {
	out := make(map[string][]T)
	for _, item := range items {
		id := eventID(item)
		out[id] = append(out[id], item)
	}
	return out
}
