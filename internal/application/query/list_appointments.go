package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST APPOINTMENTS QUERY
// Встречи участника на мероприятии (в любой роли), по началу слота.
// Участник видит только свои встречи.
// ══════════════════════════════════════════════════════════════════════════════

// ListAppointmentsQuery содержит параметры запроса.
type ListAppointmentsQuery struct {
	ActorID string
	EventID string

	// ParticipantID - чьи встречи (пусто - актор). Должен совпадать с актором.
	ParticipantID string

	// Statuses - фильтр по статусам (пусто - все).
	Statuses []scheduling.Status

	// ─────────────────────────────────────────────────────────────────────────
	// Пагинация
	// ─────────────────────────────────────────────────────────────────────────

	// Limit - максимальное количество (по умолчанию 100).
	Limit int

	// Offset - смещение.
	Offset int
}

// Validate проверяет параметры и подставляет значения по умолчанию.
func (q *ListAppointmentsQuery) Validate() error {
	const op = "ListAppointments"

	if q.ActorID == "" {
		return shared.ErrUnauthorized
	}
	if !shared.IsValidID(q.EventID) {
		return shared.Validation("scheduling", op, "invalid event id %q", q.EventID)
	}
	if q.ParticipantID == "" {
		q.ParticipantID = q.ActorID
	}
	if q.ParticipantID != q.ActorID {
		return shared.ErrNotAppointmentParty.WithMessage("participant %s may not list appointments of %s", q.ActorID, q.ParticipantID)
	}
	for _, s := range q.Statuses {
		if !s.IsValid() {
			return shared.Validation("scheduling", op, "unknown status %q", s)
		}
	}
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
	if q.Offset < 0 {
		return shared.Validation("scheduling", op, "offset cannot be negative")
	}
	return nil
}

// ListAppointmentsHandler обрабатывает запрос.
type ListAppointmentsHandler struct {
	appointments scheduling.AppointmentRepository
}

// NewListAppointmentsHandler создаёт обработчик.
func NewListAppointmentsHandler(appointments scheduling.AppointmentRepository) *ListAppointmentsHandler {
	return &ListAppointmentsHandler{appointments: appointments}
}

// Handle возвращает встречи участника.
func (h *ListAppointmentsHandler) Handle(ctx context.Context, q ListAppointmentsQuery) ([]AppointmentDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	list, err := h.appointments.ListByParticipant(ctx, scheduling.AppointmentFilter{
		EventID:       q.EventID,
		ParticipantID: q.ParticipantID,
		Statuses:      q.Statuses,
		Limit:         q.Limit,
		Offset:        q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list_appointments: %w", err)
	}

	out := make([]AppointmentDTO, 0, len(list))
	for _, a := range list {
		out = append(out, ToAppointmentDTO(a))
	}
	return out, nil
}
