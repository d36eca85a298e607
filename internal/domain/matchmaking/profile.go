// Package matchmaking содержит доменную модель нетворкинга на мероприятии:
// профили участников, оценку совместимости и ранжирование кандидатов.
package matchmaking

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alem-hub/event-networking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ОГРАНИЧЕНИЯ ПРОФИЛЯ
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MaxHeadlineLength - максимальная длина заголовка.
	MaxHeadlineLength = 140

	// MaxBioLength - максимальная длина описания.
	MaxBioLength = 2000

	// MaxShortFieldLength - максимальная длина должности и компании.
	MaxShortFieldLength = 200

	// MaxTags - максимальное количество интересов или целей.
	MaxTags = 50

	// MaxTagLength - максимальная длина одного тега.
	MaxTagLength = 64

	// MaxAvailability - максимальное количество слотов доступности.
	MaxAvailability = 200
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH PROFILE
// Профиль участника для нетворкинга в рамках одного мероприятия.
// ══════════════════════════════════════════════════════════════════════════════

// MatchProfile - профиль участника. Уникален по (ParticipantID, EventID).
type MatchProfile struct {
	// ID - идентификатор профиля (UUID).
	ID string

	// ParticipantID - регистрация участника на мероприятии.
	ParticipantID string

	// EventID - мероприятие.
	EventID string

	// Свободный текст.
	Headline string
	Bio      string
	JobTitle string
	Company  string

	// Interests - нормализованные теги интересов (lowercase, без дублей, отсортированы).
	Interests []string

	// Goals - нормализованные теги целей.
	Goals []string

	// Availability - идентификаторы временных слотов, в которые участник свободен.
	Availability []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileParams - параметры создания или обновления профиля.
type ProfileParams struct {
	ID            string
	ParticipantID string
	EventID       string
	Headline      string
	Bio           string
	JobTitle      string
	Company       string
	Interests     []string
	Goals         []string
	Availability  []string
	Now           time.Time
}

// NewMatchProfile создаёт профиль с нормализацией тегов и валидацией.
func NewMatchProfile(p ProfileParams) (*MatchProfile, error) {
	const op = "NewMatchProfile"

	if p.ID == "" {
		return nil, shared.Validation("matchmaking", op, "profile id is required")
	}
	if !shared.IsValidID(p.ParticipantID) {
		return nil, shared.Validation("matchmaking", op, "invalid participant id %q", p.ParticipantID)
	}
	if !shared.IsValidID(p.EventID) {
		return nil, shared.Validation("matchmaking", op, "invalid event id %q", p.EventID)
	}

	profile := &MatchProfile{
		ID:            p.ID,
		ParticipantID: p.ParticipantID,
		EventID:       p.EventID,
		CreatedAt:     p.Now,
	}
	if err := profile.apply(p); err != nil {
		return nil, err
	}
	return profile, nil
}

// Update перезаписывает редактируемые поля профиля (upsert-семантика).
// Идентичность профиля (ID, участник, мероприятие) не меняется.
func (m *MatchProfile) Update(p ProfileParams) error {
	return m.apply(p)
}

func (m *MatchProfile) apply(p ProfileParams) error {
	const op = "UpdateProfile"

	headline := strings.TrimSpace(p.Headline)
	bio := strings.TrimSpace(p.Bio)
	jobTitle := strings.TrimSpace(p.JobTitle)
	company := strings.TrimSpace(p.Company)

	switch {
	case utf8.RuneCountInString(headline) > MaxHeadlineLength:
		return shared.Validation("matchmaking", op, "headline exceeds %d characters", MaxHeadlineLength)
	case utf8.RuneCountInString(bio) > MaxBioLength:
		return shared.Validation("matchmaking", op, "bio exceeds %d characters", MaxBioLength)
	case utf8.RuneCountInString(jobTitle) > MaxShortFieldLength:
		return shared.Validation("matchmaking", op, "job title exceeds %d characters", MaxShortFieldLength)
	case utf8.RuneCountInString(company) > MaxShortFieldLength:
		return shared.Validation("matchmaking", op, "company exceeds %d characters", MaxShortFieldLength)
	}

	interests, err := NormalizeTags(p.Interests)
	if err != nil {
		return shared.Validation("matchmaking", op, "interests: %v", err)
	}
	goals, err := NormalizeTags(p.Goals)
	if err != nil {
		return shared.Validation("matchmaking", op, "goals: %v", err)
	}

	availability := dedupe(p.Availability)
	if len(availability) > MaxAvailability {
		return shared.Validation("matchmaking", op, "availability exceeds %d slots", MaxAvailability)
	}
	for _, id := range availability {
		if !shared.IsValidID(id) {
			return shared.Validation("matchmaking", op, "invalid time slot id %q", id)
		}
	}

	m.Headline = headline
	m.Bio = bio
	m.JobTitle = jobTitle
	m.Company = company
	m.Interests = interests
	m.Goals = goals
	m.Availability = availability
	m.UpdatedAt = p.Now
	return nil
}

// IsComparable возвращает false, если у профиля нет ни интересов, ни целей,
// ни доступности. Такой профиль даёт нулевую оценку против любого кандидата.
func (m *MatchProfile) IsComparable() bool {
	return len(m.Interests) > 0 || len(m.Goals) > 0 || len(m.Availability) > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// НОРМАЛИЗАЦИЯ
// ══════════════════════════════════════════════════════════════════════════════

type tagError string

func (e tagError) Error() string { return string(e) }

// NormalizeTags приводит теги к нижнему регистру, убирает пробелы и дубли,
// отбрасывает пустые значения и сортирует результат.
func NormalizeTags(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))

	for _, t := range raw {
		tag := strings.ToLower(strings.Join(strings.Fields(t), " "))
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, tagError("tag \"" + tag + "\" is too long")
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	if len(out) > MaxTags {
		return nil, tagError("too many tags")
	}

	sort.Strings(out)
	return out, nil
}

// dedupe убирает пустые значения и дубли, сохраняя порядок первого вхождения.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
