package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST SLOT CONFLICTS QUERY
// Проверка расписания организатора: пары активных слотов, которые
// пересекаются и имеют одинаковую вместимость.
// ══════════════════════════════════════════════════════════════════════════════

// ListSlotConflictsQuery содержит параметры запроса.
type ListSlotConflictsQuery struct {
	EventID string
}

// Validate проверяет параметры.
func (q ListSlotConflictsQuery) Validate() error {
	if !shared.IsValidID(q.EventID) {
		return shared.Validation("scheduling", "ListSlotConflicts", "invalid event id %q", q.EventID)
	}
	return nil
}

// SlotConflictDTO - пара конкурирующих слотов.
type SlotConflictDTO struct {
	First    SlotDTO `json:"first"`
	Second   SlotDTO `json:"second"`
	Capacity *int    `json:"capacity"`
}

// ListSlotConflictsHandler обрабатывает запрос.
type ListSlotConflictsHandler struct {
	directory scheduling.Directory
}

// NewListSlotConflictsHandler создаёт обработчик.
func NewListSlotConflictsHandler(directory scheduling.Directory) *ListSlotConflictsHandler {
	return &ListSlotConflictsHandler{directory: directory}
}

// Handle возвращает конфликты (пустой список, если их нет).
func (h *ListSlotConflictsHandler) Handle(ctx context.Context, q ListSlotConflictsQuery) ([]SlotConflictDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	slots, err := h.directory.GetEventActiveSlots(ctx, q.EventID)
	if err != nil {
		return nil, fmt.Errorf("list_slot_conflicts: %w", err)
	}

	conflicts := scheduling.FindCompetingSlots(slots)
	out := make([]SlotConflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		dto := SlotConflictDTO{
			First:  toSlotDTO(c.First),
			Second: toSlotDTO(c.Second),
		}
		if !c.Capacity.Unlimited {
			limit := c.Capacity.Limit
			dto.Capacity = &limit
		}
		out = append(out, dto)
	}
	return out, nil
}
