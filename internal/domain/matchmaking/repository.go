package matchmaking

import (
	"context"
	"errors"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Доменный слой не знает, реляционная ли это БД или память процесса.
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository - хранилище профилей (ProfileStore).
type ProfileRepository interface {
	// Upsert сохраняет профиль; уникальность по (participant, event).
	// Возвращает сохранённую версию (ID существующего профиля сохраняется).
	Upsert(ctx context.Context, profile *MatchProfile) (*MatchProfile, error)

	// GetByID возвращает профиль по идентификатору в рамках мероприятия.
	// shared.ErrProfileNotFound, если профиль не найден.
	GetByID(ctx context.Context, eventID, profileID string) (*MatchProfile, error)

	// GetByParticipant возвращает профиль участника на мероприятии.
	GetByParticipant(ctx context.Context, eventID, participantID string) (*MatchProfile, error)

	// ListByEvent возвращает все профили мероприятия.
	ListByEvent(ctx context.Context, eventID string) ([]*MatchProfile, error)

	// Delete удаляет профиль участника (каскад при удалении регистрации).
	Delete(ctx context.Context, eventID, participantID string) error
}

// ErrCacheMiss - в кеше нет актуального списка.
var ErrCacheMiss = errors.New("suggestion cache miss")

// SuggestionCache - кеш ранжированных списков.
// Инвалидация на уровне мероприятия: любое изменение профиля повышает
// поколение (generation) мероприятия и помечает его как "грязное".
type SuggestionCache interface {
	// Get возвращает список профиля для текущего поколения или ErrCacheMiss.
	Get(ctx context.Context, eventID, profileID string) (SuggestionList, error)

	// Put сохраняет список профиля для поколения generation.
	// Запись в устаревшее поколение допустима, но никогда не будет прочитана.
	Put(ctx context.Context, eventID, profileID string, generation int64, list SuggestionList, ttl time.Duration) error

	// Generation возвращает текущее поколение мероприятия.
	Generation(ctx context.Context, eventID string) (int64, error)

	// Invalidate повышает поколение и помечает мероприятие грязным.
	Invalidate(ctx context.Context, eventID string) error

	// DirtyEvents возвращает мероприятия, ожидающие пересчёта.
	DirtyEvents(ctx context.Context) ([]string, error)

	// MarkClean снимает пометку, если поколение не изменилось с момента пересчёта.
	MarkClean(ctx context.Context, eventID string, generation int64) error
}
