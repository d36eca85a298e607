package eventsvc

import (
	"time"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// WIRE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// RegistrationDTO is a participant registration as served by the event service.
type RegistrationDTO struct {
	ID               string `json:"id"`
	EventID          string `json:"eventId"`
	ParticipantID    string `json:"participantId"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	RegistrationType string `json:"registrationType"`
}

// TimeSlotDTO is an organizer-defined slot.
type TimeSlotDTO struct {
	ID       string    `json:"id"`
	EventID  string    `json:"eventId"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	Capacity *int      `json:"capacity"`
	IsActive bool      `json:"isActive"`
}

// LocationDTO is a meeting location.
type LocationDTO struct {
	ID       string `json:"id"`
	EventID  string `json:"eventId"`
	Name     string `json:"name"`
	Type     string `json:"locationType"`
	Capacity *int   `json:"capacity"`
	IsActive bool   `json:"isActive"`
}

// APIErrorDTO is the error body returned by the event service.
type APIErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// listResponse wraps list endpoints.
type listResponse[T any] struct {
	Data []T `json:"data"`
}

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER
// ══════════════════════════════════════════════════════════════════════════════

// Mapper converts wire DTOs into domain values.
type Mapper struct {
	loc *time.Location
	log *logger.Logger
}

// NewMapper creates a mapper that derives slot days in loc.
func NewMapper(loc *time.Location, log *logger.Logger) *Mapper {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Mapper{loc: loc, log: log}
}

// ToRegistration maps a registration.
func (m *Mapper) ToRegistration(dto RegistrationDTO) *scheduling.Registration {
	return &scheduling.Registration{
		ID:        dto.ID,
		EventID:   dto.EventID,
		FirstName: dto.FirstName,
		LastName:  dto.LastName,
		Email:     dto.Email,
		Type:      dto.RegistrationType,
	}
}

// ToTimeSlots maps active slots. Malformed or inactive slots are dropped.
func (m *Mapper) ToTimeSlots(eventID string, dtos []TimeSlotDTO) []scheduling.TimeSlot {
	slots := make([]scheduling.TimeSlot, 0, len(dtos))
	for _, dto := range dtos {
		if !dto.IsActive {
			continue
		}
		if dto.EventID == "" {
			dto.EventID = eventID
		}
		slot, err := scheduling.NewTimeSlot(scheduling.TimeSlotParams{
			ID:       dto.ID,
			EventID:  dto.EventID,
			StartsAt: dto.StartsAt.UTC(),
			EndsAt:   dto.EndsAt.UTC(),
			Capacity: dto.Capacity,
			IsActive: dto.IsActive,
			Location: m.loc,
		})
		if err != nil {
			m.log.Warn("skipping malformed time slot",
				logger.EventID(eventID),
				logger.SlotID(dto.ID),
				logger.Err(err),
			)
			continue
		}
		slots = append(slots, *slot)
	}
	return slots
}

// ToLocations maps locations. An unknown type is kept as OTHER.
func (m *Mapper) ToLocations(eventID string, dtos []LocationDTO) []scheduling.MeetingLocation {
	locations := make([]scheduling.MeetingLocation, 0, len(dtos))
	for _, dto := range dtos {
		locType, err := scheduling.ParseLocationType(dto.Type)
		if err != nil {
			m.log.Warn("unknown location type",
				logger.LocationID(dto.ID),
				logger.String("type", dto.Type),
			)
			locType = scheduling.LocationOther
		}
		if dto.EventID == "" {
			dto.EventID = eventID
		}
		locations = append(locations, scheduling.MeetingLocation{
			ID:       dto.ID,
			EventID:  dto.EventID,
			Name:     dto.Name,
			Type:     locType,
			Capacity: dto.Capacity,
			IsActive: dto.IsActive,
		})
	}
	return locations
}
