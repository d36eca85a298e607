package query

import (
	"context"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE QUERY
// Профиль актора на мероприятии.
// ══════════════════════════════════════════════════════════════════════════════

// GetProfileQuery содержит параметры запроса.
type GetProfileQuery struct {
	ActorID string
	EventID string
}

// Validate проверяет параметры.
func (q GetProfileQuery) Validate() error {
	if q.ActorID == "" {
		return shared.ErrUnauthorized
	}
	if !shared.IsValidID(q.EventID) {
		return shared.Validation("matchmaking", "GetProfile", "invalid event id %q", q.EventID)
	}
	return nil
}

// GetProfileHandler обрабатывает запрос профиля.
type GetProfileHandler struct {
	profiles matchmaking.ProfileRepository
}

// NewGetProfileHandler создаёт обработчик.
func NewGetProfileHandler(profiles matchmaking.ProfileRepository) *GetProfileHandler {
	return &GetProfileHandler{profiles: profiles}
}

// Handle возвращает профиль или shared.ErrProfileNotFound.
func (h *GetProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*ProfileDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	profile, err := h.profiles.GetByParticipant(ctx, q.EventID, q.ActorID)
	if err != nil {
		return nil, err
	}

	dto := ToProfileDTO(profile)
	return &dto, nil
}
