package query

import (
	"time"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/internal/domain/scheduling"
)

// ══════════════════════════════════════════════════════════════════════════════
// DTO
// Представления для HTTP-ответов. Команды возвращают доменные сущности,
// интерфейсный слой переводит их через эти функции.
// ══════════════════════════════════════════════════════════════════════════════

// ProfileDTO - профиль участника.
type ProfileDTO struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participantId"`
	EventID       string    `json:"eventId"`
	Headline      string    `json:"headline"`
	Bio           string    `json:"bio"`
	JobTitle      string    `json:"jobTitle"`
	Company       string    `json:"company"`
	Interests     []string  `json:"interests"`
	Goals         []string  `json:"goals"`
	Availability  []string  `json:"availability"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ToProfileDTO переводит профиль в DTO.
func ToProfileDTO(p *matchmaking.MatchProfile) ProfileDTO {
	return ProfileDTO{
		ID:            p.ID,
		ParticipantID: p.ParticipantID,
		EventID:       p.EventID,
		Headline:      p.Headline,
		Bio:           p.Bio,
		JobTitle:      p.JobTitle,
		Company:       p.Company,
		Interests:     nonNil(p.Interests),
		Goals:         nonNil(p.Goals),
		Availability:  nonNil(p.Availability),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// AppointmentDTO - запрос на встречу.
type AppointmentDTO struct {
	ID          string `json:"id"`
	EventID     string `json:"eventId"`
	RequesterID string `json:"requesterId"`
	RecipientID string `json:"recipientId"`
	TimeSlotID  string `json:"timeSlotId"`

	// LocationID - nil, если место не указано.
	LocationID *string `json:"locationId"`

	Message        string     `json:"message"`
	Status         string     `json:"status"`
	DecisionReason string     `json:"decisionReason,omitempty"`
	CancelledBy    string     `json:"cancelledBy,omitempty"`
	SlotStartsAt   time.Time  `json:"slotStartsAt"`
	SlotEndsAt     time.Time  `json:"slotEndsAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DecidedAt      *time.Time `json:"decidedAt,omitempty"`
}

// ToAppointmentDTO переводит запрос в DTO.
func ToAppointmentDTO(a *scheduling.AppointmentRequest) AppointmentDTO {
	dto := AppointmentDTO{
		ID:             a.ID,
		EventID:        a.EventID,
		RequesterID:    a.RequesterID,
		RecipientID:    a.RecipientID,
		TimeSlotID:     a.TimeSlotID,
		Message:        a.Message,
		Status:         string(a.Status),
		DecisionReason: a.DecisionReason,
		CancelledBy:    a.CancelledBy,
		SlotStartsAt:   a.SlotStartsAt,
		SlotEndsAt:     a.SlotEndsAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
		DecidedAt:      a.DecidedAt,
	}
	if a.LocationID != "" {
		loc := a.LocationID
		dto.LocationID = &loc
	}
	return dto
}

// SlotDTO - временной слот в ответе о конфликтах.
type SlotDTO struct {
	ID       string    `json:"id"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	Capacity *int      `json:"capacity"`
}

func toSlotDTO(s scheduling.TimeSlot) SlotDTO {
	return SlotDTO{
		ID:       s.ID,
		StartsAt: s.StartsAt,
		EndsAt:   s.EndsAt,
		Capacity: s.Capacity,
	}
}
