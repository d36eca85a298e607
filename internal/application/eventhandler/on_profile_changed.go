// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"time"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROFILE CHANGED HANDLER
// Любое изменение профиля делает устаревшими списки всего мероприятия:
// повышаем поколение кеша (O(1)) и помечаем мероприятие для пересчёта.
// ═══════════════════════════════════════════════════════════════════════════

// invalidateTimeout ограничивает обращение к кешу из обработчика.
const invalidateTimeout = 3 * time.Second

// OnProfileChangedHandler инвалидирует кеш предложений.
type OnProfileChangedHandler struct {
	cache matchmaking.SuggestionCache
	log   *logger.Logger
}

// NewOnProfileChangedHandler создаёт обработчик.
func NewOnProfileChangedHandler(cache matchmaking.SuggestionCache, log *logger.Logger) *OnProfileChangedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnProfileChangedHandler{
		cache: cache,
		log:   log.With(logger.Component("on_profile_changed")),
	}
}

// Handle обрабатывает profile.updated и profile.deleted.
// Реализует shared.EventHandler.
func (h *OnProfileChangedHandler) Handle(event shared.Event) error {
	changed, ok := event.(shared.ProfileChangedEvent)
	if !ok {
		h.log.Warn("received non-ProfileChangedEvent", logger.String("event_type", string(event.EventType())))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()

	if err := h.cache.Invalidate(ctx, changed.EventID); err != nil {
		h.log.Error("failed to invalidate suggestions",
			logger.EventID(changed.EventID),
			logger.ProfileID(changed.AggregateID()),
			logger.Err(err),
		)
		return err
	}

	h.log.Debug("suggestions invalidated",
		logger.EventID(changed.EventID),
		logger.String("cause", string(changed.EventType())),
	)
	return nil
}

// Register подписывает обработчик на события профиля.
func (h *OnProfileChangedHandler) Register(bus shared.EventSubscriber) error {
	for _, t := range []shared.EventType{shared.EventProfileUpdated, shared.EventProfileDeleted} {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}
