package scheduling

import (
	"context"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY
// Данные организатора: регистрации, слоты и места встреч.
// Владелец - внешний сервис мероприятий, ядро только читает.
// ══════════════════════════════════════════════════════════════════════════════

// Registration - регистрация участника на мероприятие.
type Registration struct {
	ID        string
	EventID   string
	FirstName string
	LastName  string
	Email     string
	Type      string
}

// DisplayName возвращает имя для уведомлений.
func (r Registration) DisplayName() string {
	name := strings.TrimSpace(r.FirstName + " " + r.LastName)
	if name == "" {
		return r.ID
	}
	return name
}

// Directory - источник данных о мероприятии.
type Directory interface {
	// GetRegistration возвращает регистрацию или shared.ErrRegistrationNotFound.
	GetRegistration(ctx context.Context, eventID, participantID string) (*Registration, error)

	// GetEventActiveSlots возвращает активные слоты мероприятия.
	GetEventActiveSlots(ctx context.Context, eventID string) ([]TimeSlot, error)

	// GetEventLocations возвращает места встреч мероприятия (включая неактивные).
	GetEventLocations(ctx context.Context, eventID string) ([]MeetingLocation, error)
}

// FindSlot ищет слот по ID.
func FindSlot(slots []TimeSlot, id string) (TimeSlot, bool) {
	for _, s := range slots {
		if s.ID == id {
			return s, true
		}
	}
	return TimeSlot{}, false
}

// FindActiveLocation ищет активное место встречи по ID.
func FindActiveLocation(locations []MeetingLocation, id string) (*MeetingLocation, bool) {
	for i := range locations {
		if locations[i].ID == id && locations[i].IsActive {
			loc := locations[i]
			return &loc, true
		}
	}
	return nil, false
}
