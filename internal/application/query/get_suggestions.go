// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SUGGESTIONS QUERY
// Ранжированный список собеседников для участника мероприятия.
// Сначала читаем кеш текущего поколения; при промахе считаем одну строку
// (O(n)) и кладём её в кеш. Полный пересчёт мероприятия - только в фоне.
// ══════════════════════════════════════════════════════════════════════════════

// GetSuggestionsQuery содержит параметры запроса предложений.
type GetSuggestionsQuery struct {
	// ActorID - участник, для которого строим список.
	ActorID string

	// EventID - мероприятие.
	EventID string

	// Limit - размер списка (<= 0 - значение по умолчанию).
	Limit int
}

// Validate проверяет параметры и нормализует лимит.
func (q *GetSuggestionsQuery) Validate(defaultLimit, maxLimit int) error {
	if q.ActorID == "" {
		return shared.ErrUnauthorized
	}
	if !shared.IsValidID(q.EventID) {
		return shared.Validation("matchmaking", "Suggest", "invalid event id %q", q.EventID)
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// SuggestionDTO - элемент ответа.
type SuggestionDTO struct {
	CandidateID        string   `json:"candidateId"`
	CandidateProfileID string   `json:"candidateProfileId"`
	Score              float64  `json:"score"`
	MatchedInterests   []string `json:"matchedInterests"`
	MatchedGoals       []string `json:"matchedGoals"`
	SharedSlots        []string `json:"sharedSlots"`
}

// GetSuggestionsResult - результат запроса.
type GetSuggestionsResult struct {
	ProfileID   string          `json:"profileId"`
	Suggestions []SuggestionDTO `json:"suggestions"`

	// FromCache - список взят из кеша.
	FromCache bool `json:"fromCache"`
}

// SuggestionsConfig - настройки выдачи.
type SuggestionsConfig struct {
	DefaultLimit int
	MaxLimit     int

	// UseCache - читать и заполнять кеш списков.
	UseCache bool

	// SkipEngaged - скрывать участников, с которыми уже есть живая встреча.
	SkipEngaged bool

	// CacheTTL - время жизни строки, посчитанной при промахе.
	CacheTTL time.Duration
}

// DefaultSuggestionsConfig возвращает настройки по умолчанию.
func DefaultSuggestionsConfig() SuggestionsConfig {
	return SuggestionsConfig{
		DefaultLimit: 20,
		MaxLimit:     100,
		UseCache:     true,
		SkipEngaged:  true,
		CacheTTL:     30 * time.Minute,
	}
}

// GetSuggestionsHandler обрабатывает запрос предложений.
type GetSuggestionsHandler struct {
	profiles     matchmaking.ProfileRepository
	cache        matchmaking.SuggestionCache
	ranker       *matchmaking.Ranker
	appointments scheduling.AppointmentRepository
	config       SuggestionsConfig
	log          *logger.Logger
}

// NewGetSuggestionsHandler создаёт обработчик.
// cache и appointments могут быть nil: тогда кеш и фильтр не используются.
func NewGetSuggestionsHandler(
	profiles matchmaking.ProfileRepository,
	cache matchmaking.SuggestionCache,
	ranker *matchmaking.Ranker,
	appointments scheduling.AppointmentRepository,
	config SuggestionsConfig,
	log *logger.Logger,
) *GetSuggestionsHandler {
	defaults := DefaultSuggestionsConfig()
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = defaults.DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = defaults.MaxLimit
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if log == nil {
		log = logger.Default()
	}
	return &GetSuggestionsHandler{
		profiles:     profiles,
		cache:        cache,
		ranker:       ranker,
		appointments: appointments,
		config:       config,
		log:          log.With(logger.Component("get_suggestions")),
	}
}

// Handle выполняет запрос.
func (h *GetSuggestionsHandler) Handle(ctx context.Context, q GetSuggestionsQuery) (*GetSuggestionsResult, error) {
	if err := q.Validate(h.config.DefaultLimit, h.config.MaxLimit); err != nil {
		return nil, err
	}

	source, err := h.profiles.GetByParticipant(ctx, q.EventID, q.ActorID)
	if err != nil {
		return nil, err
	}

	list, fromCache, err := h.rankedList(ctx, source)
	if err != nil {
		return nil, err
	}

	if h.config.SkipEngaged && h.appointments != nil {
		engaged, err := h.engagedPeers(ctx, q.EventID, q.ActorID)
		if err != nil {
			return nil, err
		}
		list = list.Without(engaged)
	}

	list = list.TopN(q.Limit)

	return &GetSuggestionsResult{
		ProfileID:   source.ID,
		Suggestions: toSuggestionDTOs(list),
		FromCache:   fromCache,
	}, nil
}

// rankedList возвращает полный ранжированный список профиля.
func (h *GetSuggestionsHandler) rankedList(ctx context.Context, source *matchmaking.MatchProfile) (matchmaking.SuggestionList, bool, error) {
	useCache := h.config.UseCache && h.cache != nil

	// Поколение читаем до загрузки профилей: если профиль изменится во время
	// расчёта, строка попадёт в устаревшее поколение и не будет прочитана.
	var generation int64
	if useCache {
		list, err := h.cache.Get(ctx, source.EventID, source.ID)
		switch {
		case err == nil:
			return list, true, nil
		case errors.Is(err, matchmaking.ErrCacheMiss):
		default:
			// Кеш - производные данные: при сбое считаем напрямую.
			h.log.Warn("suggestion cache read failed", logger.EventID(source.EventID), logger.Err(err))
			useCache = false
		}
		if useCache {
			if generation, err = h.cache.Generation(ctx, source.EventID); err != nil {
				h.log.Warn("suggestion cache generation read failed", logger.EventID(source.EventID), logger.Err(err))
				useCache = false
			}
		}
	}

	candidates, err := h.profiles.ListByEvent(ctx, source.EventID)
	if err != nil {
		return nil, false, fmt.Errorf("get_suggestions: load profiles: %w", err)
	}
	list := h.ranker.Rank(source, candidates)

	if useCache {
		if err := h.cache.Put(ctx, source.EventID, source.ID, generation, list, h.config.CacheTTL); err != nil {
			h.log.Warn("suggestion cache write failed", logger.ProfileID(source.ID), logger.Err(err))
		}
	}
	return list, false, nil
}

// engagedPeers - участники, с которыми у актора уже есть PENDING или ACCEPTED встреча.
func (h *GetSuggestionsHandler) engagedPeers(ctx context.Context, eventID, participantID string) (map[string]struct{}, error) {
	live, err := h.appointments.ListByParticipant(ctx, scheduling.AppointmentFilter{
		EventID:       eventID,
		ParticipantID: participantID,
		Statuses:      scheduling.LiveStatuses(),
	})
	if err != nil {
		return nil, fmt.Errorf("get_suggestions: load appointments: %w", err)
	}

	engaged := make(map[string]struct{}, len(live))
	for _, a := range live {
		engaged[a.Counterpart(participantID)] = struct{}{}
	}
	return engaged, nil
}

func toSuggestionDTOs(list matchmaking.SuggestionList) []SuggestionDTO {
	out := make([]SuggestionDTO, 0, len(list))
	for _, s := range list {
		out = append(out, SuggestionDTO{
			CandidateID:        s.CandidateParticipantID,
			CandidateProfileID: s.CandidateProfileID,
			Score:              s.Score,
			MatchedInterests:   nonNil(s.MatchedInterests),
			MatchedGoals:       nonNil(s.MatchedGoals),
			SharedSlots:        nonNil(s.SharedSlots),
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
